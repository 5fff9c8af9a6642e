/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v4"
)

// NewSigner creates a signer for GitHub App JWTs from a key reference.
// Supported schemes:
// - file://<path>: a PEM encoded RSA private key on disk.
// - env://<name>: a PEM encoded RSA private key held in an environment variable.
// - gcpkms://<key>: a GCP KMS asymmetric signing key version.
func NewSigner(ctx context.Context, ref string) (ghinstallation.Signer, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("invalid key reference: %s", ref)
	}

	switch scheme {
	case "file":
		pk, err := os.ReadFile(rest)
		if err != nil {
			return nil, fmt.Errorf("could not open file: %w", err)
		}
		return rsaSigner(pk)

	case "env":
		pk := os.Getenv(rest)
		if pk == "" {
			return nil, fmt.Errorf("environment variable %s is empty", rest)
		}
		return rsaSigner([]byte(pk))

	case "gcpkms":
		client, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not create kms client: %w", err)
		}
		return &kmsSigner{ctx: ctx, client: client, key: rest}, nil
	}
	return nil, fmt.Errorf("unknown key type: %s", scheme)
}

func rsaSigner(pem []byte) (ghinstallation.Signer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}
	return ghinstallation.NewRSASigner(jwt.SigningMethodRS256, key), nil
}

// kmsSigningMethod is a jwt.SigningMethod delegating RS256 signatures to KMS.
// The key passed to Sign is the resource name of the key version.
type kmsSigningMethod struct {
	ctx    context.Context
	client *kms.KeyManagementClient
}

func (*kmsSigningMethod) Verify(string, string, interface{}) error {
	return errors.New("not implemented")
}

func (m *kmsSigningMethod) Sign(signingString string, ikey interface{}) (string, error) {
	key, ok := ikey.(string)
	if !ok {
		return "", fmt.Errorf("invalid key reference type: %T", ikey)
	}
	resp, err := m.client.AsymmetricSign(m.ctx, &kmspb.AsymmetricSignRequest{
		Name: key,
		Data: []byte(signingString),
	})
	if err != nil {
		return "", fmt.Errorf("kms sign: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(resp.Signature), nil
}

func (*kmsSigningMethod) Alg() string { return "RS256" }

type kmsSigner struct {
	ctx    context.Context
	client *kms.KeyManagementClient
	key    string
}

// Sign implements ghinstallation.Signer.
func (s *kmsSigner) Sign(claims jwt.Claims) (string, error) {
	method := &kmsSigningMethod{ctx: s.ctx, client: s.client}
	return jwt.NewWithClaims(method, claims).SignedString(s.key)
}
