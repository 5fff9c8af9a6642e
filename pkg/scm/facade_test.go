/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scm

import (
	"context"
	"errors"
	"testing"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/credentials"
	"github.com/chainguard-dev/clog/slogtest"
	"github.com/google/go-cmp/cmp"
)

type fakeMeta struct {
	sources   map[string]*Source
	heads     map[string]Head
	revisions map[string]Revision
	err       error
}

func (f *fakeMeta) Source(_ context.Context, job string) (*Source, bool, error) {
	s, ok := f.sources[job]
	return s, ok, f.err
}

func (f *fakeMeta) Head(_ context.Context, job string) (Head, bool, error) {
	h, ok := f.heads[job]
	return h, ok, f.err
}

func (f *fakeMeta) Revision(_ context.Context, id string) (Revision, bool, error) {
	r, ok := f.revisions[id]
	return r, ok, f.err
}

type fakeFetcher struct {
	rev   Revision
	found bool
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, *Source, Head) (Revision, bool, error) {
	f.calls++
	return f.rev, f.found, f.err
}

func TestFindRevision(t *testing.T) {
	b := &build.Build{Job: "repo/PR-1", Number: 2}
	src := &Source{Kind: KindGitHub, Owner: "octo", Repository: "repo"}
	head := PullRequestHead{Number: 1}

	tests := []struct {
		name       string
		recorded   Revision
		fetcher    *fakeFetcher
		want       Revision
		wantFound  bool
		wantReason Reason
		wantCalls  int
	}{{
		name:      "recorded revision wins",
		recorded:  PullRequestRevision{PullHash: "a1b2c3"},
		fetcher:   &fakeFetcher{rev: PullRequestRevision{PullHash: "ffffff"}, found: true},
		want:      PullRequestRevision{PullHash: "a1b2c3"},
		wantFound: true,
	}, {
		name:      "fetched",
		fetcher:   &fakeFetcher{rev: PullRequestRevision{PullHash: "ffffff"}, found: true},
		want:      PullRequestRevision{PullHash: "ffffff"},
		wantFound: true,
		wantCalls: 1,
	}, {
		name:      "absent upstream",
		fetcher:   &fakeFetcher{},
		wantCalls: 1,
	}, {
		name:       "unreachable",
		fetcher:    &fakeFetcher{err: errors.New("connection reset")},
		wantReason: ReasonUnreachable,
		wantCalls:  1,
	}, {
		name:       "credential exchange failure passes through",
		fetcher:    &fakeFetcher{err: &ResolutionError{Reason: ReasonCredentialExchange}},
		wantReason: ReasonCredentialExchange,
		wantCalls:  1,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := &fakeMeta{revisions: map[string]Revision{}}
			if tt.recorded != nil {
				meta.revisions[b.ID()] = tt.recorded
			}
			f := NewFacade(meta, credentials.MapStore{}, tt.fetcher)

			got, found, err := f.FindRevision(slogtest.Context(t), b, src, head)
			if tt.wantReason != "" {
				if ReasonOf(err) != tt.wantReason {
					t.Fatalf("FindRevision() error = %v, want reason %s", err, tt.wantReason)
				}
			} else if err != nil {
				t.Fatalf("FindRevision() = %v", err)
			}
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("revision (-want +got): %s", diff)
			}
			if tt.fetcher.calls != tt.wantCalls {
				t.Errorf("fetches = %d, want %d", tt.fetcher.calls, tt.wantCalls)
			}
		})
	}
}

func TestFindRevisionWithoutFetcher(t *testing.T) {
	f := NewFacade(&fakeMeta{}, credentials.MapStore{}, nil)
	_, found, err := f.FindRevision(slogtest.Context(t), &build.Build{Job: "j", Number: 1}, &Source{}, BranchHead{Name: "main"})
	if err != nil || found {
		t.Errorf("FindRevision() = %v, %v; want absent", found, err)
	}
}

func TestFindSourceAndHead(t *testing.T) {
	ctx := slogtest.Context(t)
	src := &Source{Kind: KindGitHub, Owner: "octo", Repository: "repo"}
	f := NewFacade(&fakeMeta{
		sources: map[string]*Source{"repo/main": src},
		heads:   map[string]Head{"repo/main": BranchHead{Name: "main"}},
	}, credentials.MapStore{}, nil)

	if got, ok, err := f.FindSource(ctx, "repo/main"); err != nil || !ok || got != src {
		t.Errorf("FindSource() = %v, %v, %v", got, ok, err)
	}
	if _, ok, err := f.FindSource(ctx, "other"); err != nil || ok {
		t.Errorf("FindSource(other) = %v, %v", ok, err)
	}
	if got, ok, err := f.FindHead(ctx, "repo/main"); err != nil || !ok || got != (BranchHead{Name: "main"}) {
		t.Errorf("FindHead() = %v, %v, %v", got, ok, err)
	}

	broken := NewFacade(&fakeMeta{err: errors.New("db closed")}, credentials.MapStore{}, nil)
	if _, _, err := broken.FindSource(ctx, "repo/main"); err == nil {
		t.Error("FindSource() = nil, want error")
	}
	if _, _, err := broken.FindHead(ctx, "repo/main"); err == nil {
		t.Error("FindHead() = nil, want error")
	}
}

func TestFindCredential(t *testing.T) {
	ctx := slogtest.Context(t)
	cred := credentials.FederatedCredential{ID: "sts", Identity: "bridge"}
	f := NewFacade(&fakeMeta{}, credentials.NewMapStore(cred), nil)

	tests := []struct {
		id        string
		wantFound bool
	}{
		{"sts", true},
		{"missing", false},
		{"", false},
	}
	for _, tt := range tests {
		got, found, err := f.FindCredential(ctx, "repo/main", tt.id)
		if err != nil {
			t.Fatalf("FindCredential(%q) = %v", tt.id, err)
		}
		if found != tt.wantFound {
			t.Errorf("FindCredential(%q) found = %v, want %v", tt.id, found, tt.wantFound)
		}
		if found && got != credentials.Credential(cred) {
			t.Errorf("FindCredential(%q) = %v", tt.id, got)
		}
	}
}
