/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileEntry is the on-disk form of a credential:
//
//	credentials:
//	- id: github-app
//	  type: app
//	  app-id: 12345
//	  key: gcpkms://projects/p/locations/l/keyRings/r/cryptoKeys/k/cryptoKeyVersions/1
//	- id: octo-sts
//	  type: octosts
//	  identity: checks-bridge
type fileEntry struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	AppID    int64  `yaml:"app-id,omitempty"`
	Key      string `yaml:"key,omitempty"`
	APIURL   string `yaml:"api-url,omitempty"`
	Identity string `yaml:"identity,omitempty"`
}

type fileFormat struct {
	Credentials []fileEntry `yaml:"credentials"`
}

// LoadFile reads a YAML credentials file into a MapStore.
func LoadFile(path string) (MapStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes the YAML credentials format into a MapStore.
func Parse(r io.Reader) (MapStore, error) {
	var ff fileFormat
	if err := yaml.NewDecoder(r).Decode(&ff); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}

	store := make(MapStore, len(ff.Credentials))
	for i, e := range ff.Credentials {
		if e.ID == "" {
			return nil, fmt.Errorf("credential #%d: missing id", i)
		}
		if _, dup := store[e.ID]; dup {
			return nil, fmt.Errorf("credential %q: duplicate id", e.ID)
		}
		c, err := e.credential()
		if err != nil {
			return nil, fmt.Errorf("credential %q: %w", e.ID, err)
		}
		store[e.ID] = c
	}
	return store, nil
}

func (e fileEntry) credential() (Credential, error) {
	switch e.Type {
	case "app":
		if e.AppID <= 0 {
			return nil, fmt.Errorf("app-id must be positive")
		}
		if e.Key == "" {
			return nil, fmt.Errorf("key is required")
		}
		return AppCredential{ID: e.ID, AppID: e.AppID, KeyRef: e.Key, APIURL: e.APIURL}, nil
	case "octosts":
		if e.Identity == "" {
			return nil, fmt.Errorf("identity is required")
		}
		return FederatedCredential{ID: e.ID, Identity: e.Identity}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", e.Type)
	}
}
