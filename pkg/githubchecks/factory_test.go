/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubchecks

import (
	"context"
	"errors"
	"testing"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/resolver"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/chainguard-dev/clog/slogtest"
)

type fakeSources map[string]*scm.Source

func (f fakeSources) FindSource(_ context.Context, job string) (*scm.Source, bool, error) {
	s, ok := f[job]
	return s, ok, nil
}

type fakeResolver struct {
	cc  *resolver.ChecksContext
	err error
}

func (f *fakeResolver) Resolve(context.Context, *build.Build) (*resolver.ChecksContext, error) {
	return f.cc, f.err
}

func TestFactory(t *testing.T) {
	sources := fakeSources{
		"gh/main":     {Kind: scm.KindGitHub, Owner: "octo", Repository: "repo"},
		"gitlab/main": {Kind: "gitlab", Owner: "octo", Repository: "repo"},
	}
	withToken := resolver.NewChecksContext(resolver.Fields{Owner: "octo", Repository: "repo", HeadSHA: "abc", Token: "ghs_tok"})
	anonymous := resolver.NewChecksContext(resolver.Fields{Owner: "octo", Repository: "repo", HeadSHA: "abc"})
	boom := &scm.ResolutionError{Reason: scm.ReasonNoRevision}

	tests := []struct {
		name     string
		job      string
		resolver *fakeResolver
		wantPub  bool
		wantErr  error
	}{{
		name:     "github with token",
		job:      "gh/main",
		resolver: &fakeResolver{cc: withToken},
		wantPub:  true,
	}, {
		name:     "github anonymous",
		job:      "gh/main",
		resolver: &fakeResolver{cc: anonymous},
	}, {
		name:     "other platform",
		job:      "gitlab/main",
		resolver: &fakeResolver{cc: withToken},
	}, {
		name:     "no source",
		job:      "freestyle",
		resolver: &fakeResolver{cc: withToken},
	}, {
		name:     "resolution failure",
		job:      "gh/main",
		resolver: &fakeResolver{err: boom},
		wantErr:  boom,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory(sources, tt.resolver, NewMemoryRunStore(), nil)
			p, err := f.CreatePublisher(slogtest.Context(t), &build.Build{Job: tt.job, Number: 1})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreatePublisher() error = %v, want %v", err, tt.wantErr)
			}
			if got := p != nil; got != tt.wantPub {
				t.Errorf("CreatePublisher() present = %v, want %v", got, tt.wantPub)
			}
		})
	}
}
