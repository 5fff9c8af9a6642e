/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package credentials holds the credentials the bridge uses to talk to
// GitHub on behalf of a build, and exchanges them for short-lived tokens.
package credentials

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores that treat a missing credential as an
// error rather than an absent result.
var ErrNotFound = errors.New("credential not found")

// Credential is one of AppCredential or FederatedCredential.
type Credential interface {
	// CredentialID is the identifier jobs use to reference the credential.
	CredentialID() string

	isCredential()
}

// AppCredential authenticates as a GitHub App and mints installation tokens
// for the repository a build targets.
type AppCredential struct {
	ID    string
	AppID int64

	// KeyRef locates the App's private key, see NewSigner.
	KeyRef string

	// APIURL overrides the GitHub REST endpoint, for GitHub Enterprise.
	APIURL string
}

func (c AppCredential) CredentialID() string { return c.ID }
func (AppCredential) isCredential()          {}

// FederatedCredential exchanges the workload identity of the bridge for a
// GitHub token through Octo STS, using the trust policy named Identity.
type FederatedCredential struct {
	ID       string
	Identity string
}

func (c FederatedCredential) CredentialID() string { return c.ID }
func (FederatedCredential) isCredential()          {}

// Store looks up credentials by id.
type Store interface {
	Lookup(ctx context.Context, id string) (Credential, bool, error)
}

// MapStore is an in-memory Store.
type MapStore map[string]Credential

var _ Store = MapStore(nil)

// Lookup implements Store.
func (m MapStore) Lookup(_ context.Context, id string) (Credential, bool, error) {
	c, ok := m[id]
	return c, ok, nil
}

// NewMapStore indexes creds by their id.
func NewMapStore(creds ...Credential) MapStore {
	m := make(MapStore, len(creds))
	for _, c := range creds {
		m[c.CredentialID()] = c
	}
	return m
}
