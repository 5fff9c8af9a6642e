/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"regexp"
	"strings"
)

type pathPattern struct {
	pattern *regexp.Regexp
	bucket  string
}

// GitHub API endpoints the bridge calls.
// Based on GitHub REST API documentation: https://docs.github.com/en/rest
var githubAPIPatterns = []pathPattern{{
	// https://docs.github.com/en/rest/checks/runs#create-a-check-run
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/check-runs$`),
	bucket:  "/repos/{org}/{repo}/check-runs",
}, {
	// https://docs.github.com/en/rest/checks/runs#update-a-check-run
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/check-runs/\d+$`),
	bucket:  "/repos/{org}/{repo}/check-runs/{id}",
}, {
	// https://docs.github.com/en/rest/branches/branches#get-a-branch
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/branches/.+$`),
	bucket:  "/repos/{org}/{repo}/branches/{branch}",
}, {
	// https://docs.github.com/en/rest/pulls/pulls#get-a-pull-request
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/pulls/\d+$`),
	bucket:  "/repos/{org}/{repo}/pulls/{number}",
}, {
	// https://docs.github.com/en/rest/apps/apps#get-a-repository-installation-for-the-authenticated-app
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/installation$`),
	bucket:  "/repos/{org}/{repo}/installation",
}, {
	// https://docs.github.com/en/rest/apps/apps#create-an-installation-access-token-for-an-app
	pattern: regexp.MustCompile(`^/app/installations/\d+/access_tokens$`),
	bucket:  "/app/installations/{id}/access_tokens",
}, {
	// https://docs.github.com/en/rest/repos/repos#get-a-repository
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+$`),
	bucket:  "/repos/{org}/{repo}",
}}

// bucketizePath maps a GitHub API path to its endpoint template, or "" when
// the endpoint is not one the bridge calls. GitHub Enterprise Server's
// "/api/v3" prefix is ignored.
func bucketizePath(path string) string {
	path = strings.TrimPrefix(path, "/api/v3")
	for _, p := range githubAPIPatterns {
		if p.pattern.MatchString(path) {
			return p.bucket
		}
	}
	return ""
}
