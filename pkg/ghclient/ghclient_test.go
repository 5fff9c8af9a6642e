/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package ghclient

import (
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		apiURL  string
		want    string
		wantErr bool
	}{{
		name: "default",
		want: "https://api.github.com/",
	}, {
		name:   "enterprise",
		apiURL: "https://ghe.example.com/api/v3",
		want:   "https://ghe.example.com/api/v3/",
	}, {
		name:   "enterprise trailing slash",
		apiURL: "https://ghe.example.com/api/v3/",
		want:   "https://ghe.example.com/api/v3/",
	}, {
		name:    "relative",
		apiURL:  "ghe.example.com",
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.apiURL, http.DefaultClient)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := c.BaseURL.String(); got != tt.want {
				t.Errorf("BaseURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(""); got != DefaultAPIURL {
		t.Errorf("Normalize(\"\") = %q", got)
	}
	if got := Normalize("https://ghe.example.com/api/v3/"); got != "https://ghe.example.com/api/v3" {
		t.Errorf("Normalize() = %q", got)
	}
}
