/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package ghclient constructs go-github clients for github.com and GitHub
// Enterprise API endpoints.
package ghclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v75/github"
)

// DefaultAPIURL is the REST endpoint of github.com.
const DefaultAPIURL = "https://api.github.com"

// New returns a client talking to apiURL through hc. An empty apiURL means
// github.com.
func New(apiURL string, hc *http.Client) (*github.Client, error) {
	client := github.NewClient(hc)
	if apiURL == "" || apiURL == DefaultAPIURL {
		return client, nil
	}
	u, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing API URL %q: %w", apiURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API URL %q must be absolute", apiURL)
	}
	client.BaseURL = u
	return client, nil
}

// Normalize returns apiURL without a trailing slash, or DefaultAPIURL when
// it is empty.
func Normalize(apiURL string) string {
	if apiURL == "" {
		return DefaultAPIURL
	}
	return strings.TrimSuffix(apiURL, "/")
}
