/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package resolver

import "time"

// ChecksContext is everything needed to address the check runs of one
// build. It is immutable once resolved.
type ChecksContext struct {
	owner       string
	repo        string
	headSHA     string
	token       string
	tokenExpiry time.Time
	url         string
	buildID     string
	apiURL      string
	kind        string
}

// Fields are the resolved values of a ChecksContext.
type Fields struct {
	Owner       string
	Repository  string
	HeadSHA     string
	Token       string
	TokenExpiry time.Time
	URL         string
	BuildID     string
	APIURL      string
	SourceKind  string
}

// NewChecksContext freezes f into a ChecksContext.
func NewChecksContext(f Fields) *ChecksContext {
	return &ChecksContext{
		owner:       f.Owner,
		repo:        f.Repository,
		headSHA:     f.HeadSHA,
		token:       f.Token,
		tokenExpiry: f.TokenExpiry,
		url:         f.URL,
		buildID:     f.BuildID,
		apiURL:      f.APIURL,
		kind:        f.SourceKind,
	}
}

// Repository is the "owner/repo" full name.
func (c *ChecksContext) Repository() string { return c.owner + "/" + c.repo }

func (c *ChecksContext) Owner() string { return c.owner }

// Name is the repository name without its owner.
func (c *ChecksContext) Name() string { return c.repo }

// HeadSHA is the commit check runs are attached to.
func (c *ChecksContext) HeadSHA() string { return c.headSHA }

// Token authenticates API calls. It is empty for anonymous sources.
func (c *ChecksContext) Token() string { return c.token }

// TokenExpiry is when Token stops being valid; zero when unknown.
func (c *ChecksContext) TokenExpiry() time.Time { return c.tokenExpiry }

// URL is where humans can look at the build.
func (c *ChecksContext) URL() string { return c.url }

// BuildID is the identifier of the build, used as the external id of its
// check runs.
func (c *ChecksContext) BuildID() string { return c.buildID }

// APIURL is the REST endpoint of the hosting platform, empty for the
// platform default.
func (c *ChecksContext) APIURL() string { return c.apiURL }

// SourceKind is the scm.Source kind the context was resolved from.
func (c *ChecksContext) SourceKind() string { return c.kind }

// withToken returns a copy of c authenticated with token.
func (c *ChecksContext) withToken(token string, expiry time.Time) *ChecksContext {
	cp := *c
	cp.token, cp.tokenExpiry = token, expiry
	return &cp
}

// expiring reports whether the token is about to expire at now.
func (c *ChecksContext) expiring(now time.Time) bool {
	return !c.tokenExpiry.IsZero() && now.Add(time.Minute).After(c.tokenExpiry)
}
