/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package resolver derives the ChecksContext of a build: which repository
// and commit its check runs belong to, and the token to publish them with.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/credentials"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Facade is the subset of scm.Facade the resolver needs.
type Facade interface {
	FindSource(ctx context.Context, job string) (*scm.Source, bool, error)
	FindHead(ctx context.Context, job string) (scm.Head, bool, error)
	FindRevision(ctx context.Context, b *build.Build, src *scm.Source, head scm.Head) (scm.Revision, bool, error)
	FindCredential(ctx context.Context, job, credentialsID string) (credentials.Credential, bool, error)
}

var _ Facade = (*scm.Facade)(nil)

// Resolver resolves and memoizes one ChecksContext per build.
type Resolver struct {
	facade Facade
	tokens credentials.TokenProvider

	clock clockwork.Clock

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]*entry
}

// entry is a memoized resolution. cred is nil for anonymous sources.
type entry struct {
	cc   *ChecksContext
	cred credentials.Credential
}

func New(facade Facade, tokens credentials.TokenProvider) *Resolver {
	return &Resolver{
		facade: facade,
		tokens: tokens,
		clock:  clockwork.NewRealClock(),
		cache:  make(map[string]*entry),
	}
}

// Resolve returns the ChecksContext of b. The first successful resolution
// is memoized until Forget. When its token nears expiry only the token is
// minted again; the repository and head SHA never change for a build.
// Concurrent resolutions of a build share one computation. Failures are
// *scm.ResolutionError values, or plain errors when the metadata store
// itself fails.
func (r *Resolver) Resolve(ctx context.Context, b *build.Build) (*ChecksContext, error) {
	id := b.ID()
	if e, ok := r.lookup(id); ok && !e.cc.expiring(r.clock.Now()) {
		return e.cc, nil
	}

	ch := r.group.DoChan(id, func() (interface{}, error) {
		// Shared by every caller waiting on id.
		ctx := context.WithoutCancel(ctx)

		e, ok := r.lookup(id)
		switch {
		case ok && !e.cc.expiring(r.clock.Now()):
			return e.cc, nil
		case ok:
			refreshed, err := r.refresh(ctx, b, e)
			if err != nil {
				return nil, err
			}
			e = refreshed
		default:
			resolved, err := r.resolve(ctx, b)
			if err != nil {
				return nil, err
			}
			e = resolved
		}
		r.mu.Lock()
		r.cache[id] = e
		r.mu.Unlock()
		return e.cc, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ChecksContext), nil
	}
}

// Forget drops the memoized context of a build.
func (r *Resolver) Forget(buildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, buildID)
}

func (r *Resolver) lookup(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[id]
	return e, ok
}

// refresh mints a new token for the memoized resolution e.
func (r *Resolver) refresh(ctx context.Context, b *build.Build, e *entry) (*entry, error) {
	owner, repo := e.cc.Owner(), e.cc.Name()
	tok, err := r.tokens.Token(ctx, e.cred, owner, repo)
	if err != nil {
		return nil, &scm.ResolutionError{Reason: scm.ReasonCredentialExchange, Job: b.Job, Err: err}
	}
	clog.FromContext(ctx).With("build", b.ID()).Debugf("refreshed token for %s", e.cc.Repository())
	return &entry{cc: e.cc.withToken(tok.Value, tok.Expiry), cred: e.cred}, nil
}

func (r *Resolver) resolve(ctx context.Context, b *build.Build) (*entry, error) {
	log := clog.FromContext(ctx).With("build", b.ID())

	src, ok, err := r.facade.FindSource(ctx, b.Job)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &scm.ResolutionError{Reason: scm.ReasonNoSource, Job: b.Job}
	}

	head, ok, err := r.facade.FindHead(ctx, b.Job)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &scm.ResolutionError{Reason: scm.ReasonNoHead, Job: b.Job}
	}

	rev, ok, err := r.facade.FindRevision(ctx, b, src, head)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &scm.ResolutionError{Reason: scm.ReasonNoRevision, Job: b.Job}
	}

	sha, err := scm.HeadSHA(rev)
	if err != nil {
		if re, ok := err.(*scm.ResolutionError); ok {
			re.Job = b.Job
		}
		return nil, err
	}

	var (
		cred   credentials.Credential
		token  string
		expiry time.Time
	)
	if src.CredentialsID == "" {
		log.Debugf("no credentials configured for %s, using anonymous access", src.FullName())
	} else {
		found, ok, err := r.facade.FindCredential(ctx, b.Job, src.CredentialsID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &scm.ResolutionError{
				Reason: scm.ReasonNoCredential,
				Job:    b.Job,
				Err:    fmt.Errorf("credential %q not found", src.CredentialsID),
			}
		}
		cred = found
		tok, err := r.tokens.Token(ctx, cred, src.Owner, src.Repository)
		if err != nil {
			return nil, &scm.ResolutionError{Reason: scm.ReasonCredentialExchange, Job: b.Job, Err: err}
		}
		token, expiry = tok.Value, tok.Expiry
	}

	log.Debugf("resolved %s@%s", src.FullName(), sha)
	cc := NewChecksContext(Fields{
		Owner:       src.Owner,
		Repository:  src.Repository,
		HeadSHA:     sha,
		Token:       token,
		TokenExpiry: expiry,
		URL:         b.URL,
		BuildID:     b.ID(),
		APIURL:      src.APIURL,
		SourceKind:  src.Kind,
	})
	return &entry{cc: cc, cred: cred}, nil
}
