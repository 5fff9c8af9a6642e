/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/checks-bridge/pkg/credentials"
	"github.com/chainguard-dev/checks-bridge/pkg/ghclient"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/gregjones/httpcache"
)

// GitHubFetcher fetches head revisions from the GitHub REST API. Responses
// are cached and revalidated with ETags, so repeated lookups of an unchanged
// head do not count against the rate limit.
type GitHubFetcher struct {
	creds  credentials.Store
	tokens credentials.TokenProvider
	cache  *httpcache.Transport
}

var _ RevisionFetcher = (*GitHubFetcher)(nil)

// NewGitHubFetcher returns a fetcher authenticating with tokens minted from
// the source's credential. base may be nil.
func NewGitHubFetcher(creds credentials.Store, tokens credentials.TokenProvider, base http.RoundTripper) *GitHubFetcher {
	cache := httpcache.NewMemoryCacheTransport()
	if base != nil {
		cache.Transport = base
	}
	return &GitHubFetcher{creds: creds, tokens: tokens, cache: cache}
}

// Fetch implements RevisionFetcher.
func (g *GitHubFetcher) Fetch(ctx context.Context, src *Source, head Head) (Revision, bool, error) {
	token, err := g.token(ctx, src)
	if err != nil {
		return nil, false, err
	}
	client, err := ghclient.New(src.APIURL, &http.Client{
		Transport: &revalidate{token: token, next: g.cache},
	})
	if err != nil {
		return nil, false, err
	}

	switch h := head.(type) {
	case BranchHead:
		branch, resp, err := client.Repositories.GetBranch(ctx, src.Owner, src.Repository, h.Name, 1)
		if err != nil {
			if isNotFound(resp, err) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("getting branch %s of %s: %w", h.Name, src.FullName(), err)
		}
		if sha := branch.GetCommit().GetSHA(); sha != "" {
			return CommitRevision{Hash: sha}, true, nil
		}
		return nil, false, nil

	case PullRequestHead:
		pr, resp, err := client.PullRequests.Get(ctx, src.Owner, src.Repository, h.Number)
		if err != nil {
			if isNotFound(resp, err) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("getting pull request %d of %s: %w", h.Number, src.FullName(), err)
		}
		return PullRequestRevision{
			PullHash: pr.GetHead().GetSHA(),
			BaseHash: pr.GetBase().GetSHA(),
		}, true, nil
	}
	return nil, false, fmt.Errorf("unsupported head type %T", head)
}

// token returns the token to fetch src with; "" means anonymous.
func (g *GitHubFetcher) token(ctx context.Context, src *Source) (string, error) {
	if src.CredentialsID == "" {
		return "", nil
	}
	cred, ok, err := g.creds.Lookup(ctx, src.CredentialsID)
	if err != nil {
		return "", fmt.Errorf("looking up credential %q: %w", src.CredentialsID, err)
	}
	if !ok {
		clog.FromContext(ctx).Warnf("credential %q of %s not found, fetching anonymously", src.CredentialsID, src.FullName())
		return "", nil
	}
	tok, err := g.tokens.Token(ctx, cred, src.Owner, src.Repository)
	if err != nil {
		return "", &ResolutionError{Reason: ReasonCredentialExchange, Err: err}
	}
	return tok.Value, nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// revalidate authenticates requests and makes the cache below it check
// every stored response against the server's ETag.
type revalidate struct {
	token string
	next  http.RoundTripper
}

func (t *revalidate) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.token != "" {
		req.Header.Set("Authorization", "token "+t.token)
	}
	req.Header.Set("Cache-Control", "max-age=0")
	return t.next.RoundTrip(req)
}
