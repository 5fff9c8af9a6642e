/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scm

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/credentials"
	"github.com/chainguard-dev/clog"
)

// MetadataStore holds what the orchestrator recorded about jobs and builds.
type MetadataStore interface {
	Source(ctx context.Context, job string) (*Source, bool, error)
	Head(ctx context.Context, job string) (Head, bool, error)
	Revision(ctx context.Context, buildID string) (Revision, bool, error)
}

// RevisionFetcher asks the hosting platform for the current revision of a
// head. A head the platform does not know is absent, not an error.
type RevisionFetcher interface {
	Fetch(ctx context.Context, src *Source, head Head) (Revision, bool, error)
}

// Facade translates builds into SCM primitives.
type Facade struct {
	meta    MetadataStore
	creds   credentials.Store
	fetcher RevisionFetcher
}

// NewFacade returns a Facade. fetcher may be nil, in which case only the
// revisions recorded by the orchestrator are known.
func NewFacade(meta MetadataStore, creds credentials.Store, fetcher RevisionFetcher) *Facade {
	return &Facade{meta: meta, creds: creds, fetcher: fetcher}
}

// FindSource returns the remote source configured for job.
func (f *Facade) FindSource(ctx context.Context, job string) (*Source, bool, error) {
	src, ok, err := f.meta.Source(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("looking up source of %s: %w", job, err)
	}
	return src, ok, nil
}

// FindHead returns the branch or pull request job builds.
func (f *Facade) FindHead(ctx context.Context, job string) (Head, bool, error) {
	head, ok, err := f.meta.Head(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("looking up head of %s: %w", job, err)
	}
	return head, ok, nil
}

// FindRevision returns the revision b builds. The revision the orchestrator
// recorded for b wins; otherwise the current revision of head is fetched
// from the hosting platform. Failures reaching the platform are returned as
// a ResolutionError with ReasonUnreachable.
func (f *Facade) FindRevision(ctx context.Context, b *build.Build, src *Source, head Head) (Revision, bool, error) {
	log := clog.FromContext(ctx).With("build", b.ID())

	rev, ok, err := f.meta.Revision(ctx, b.ID())
	if err != nil {
		return nil, false, fmt.Errorf("looking up revision of %s: %w", b.ID(), err)
	}
	if ok {
		return rev, true, nil
	}
	if f.fetcher == nil {
		return nil, false, nil
	}

	log.Debugf("no recorded revision, fetching %s of %s", head.HeadName(), src.FullName())
	rev, ok, err = f.fetcher.Fetch(ctx, src, head)
	if err != nil {
		var re *ResolutionError
		if errors.As(err, &re) {
			return nil, false, err
		}
		return nil, false, &ResolutionError{Reason: ReasonUnreachable, Job: b.Job, Err: err}
	}
	return rev, ok, nil
}

// FindCredential returns the credential credentialsID names for job.
func (f *Facade) FindCredential(ctx context.Context, job, credentialsID string) (credentials.Credential, bool, error) {
	if credentialsID == "" {
		return nil, false, nil
	}
	cred, ok, err := f.creds.Lookup(ctx, credentialsID)
	if err != nil {
		return nil, false, fmt.Errorf("looking up credential %q for %s: %w", credentialsID, job, err)
	}
	return cred, ok, nil
}
