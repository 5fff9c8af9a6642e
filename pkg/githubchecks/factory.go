/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubchecks publishes check state to the GitHub Checks API.
package githubchecks

import (
	"context"
	"net/http"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/ghclient"
	"github.com/chainguard-dev/checks-bridge/pkg/publisher"
	"github.com/chainguard-dev/checks-bridge/pkg/resolver"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/chainguard-dev/clog"
)

// SourceFinder finds the source of a job.
type SourceFinder interface {
	FindSource(ctx context.Context, job string) (*scm.Source, bool, error)
}

// Resolver resolves the checks context of a build.
type Resolver interface {
	Resolve(ctx context.Context, b *build.Build) (*resolver.ChecksContext, error)
}

// Factory creates Publishers for builds of GitHub sources.
type Factory struct {
	sources  SourceFinder
	resolver Resolver
	runs     RunStore
	base     http.RoundTripper
}

var _ publisher.Factory = (*Factory)(nil)

// NewFactory returns a Factory. base carries the check run calls; nil means
// http.DefaultTransport.
func NewFactory(sources SourceFinder, r Resolver, runs RunStore, base http.RoundTripper) *Factory {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Factory{sources: sources, resolver: r, runs: runs, base: base}
}

// CreatePublisher implements publisher.Factory. It applies to builds whose
// source is on GitHub and whose context carries a token.
func (f *Factory) CreatePublisher(ctx context.Context, b *build.Build) (publisher.Publisher, error) {
	log := clog.FromContext(ctx).With("build", b.ID())

	src, ok, err := f.sources.FindSource(ctx, b.Job)
	if err != nil {
		return nil, err
	}
	if !ok || src.Kind != scm.KindGitHub {
		return nil, nil
	}

	cc, err := f.resolver.Resolve(ctx, b)
	if err != nil {
		return nil, err
	}
	if cc.Token() == "" {
		log.Debugf("no credentials for %s, not publishing checks", cc.Repository())
		return nil, nil
	}

	gh, err := ghclient.New(cc.APIURL(), &http.Client{Transport: f.base})
	if err != nil {
		return nil, err
	}
	return &Publisher{
		cc:     cc,
		client: &client{gh: gh, token: cc.Token()},
		runs:   f.runs,
	}, nil
}
