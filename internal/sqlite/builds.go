/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/lifecycle"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/jonboulle/clockwork"
)

var (
	_ build.Lookup       = (*BuildStore)(nil)
	_ scm.MetadataStore  = (*BuildStore)(nil)
	_ lifecycle.Recorder = (*BuildStore)(nil)
)

// BuildStore keeps the builds the bridge has seen along with the source,
// head and revision metadata of their jobs.
type BuildStore struct {
	db    *DB
	clock clockwork.Clock
}

func NewBuildStore(db *DB) *BuildStore {
	return &BuildStore{db: db, clock: clockwork.NewRealClock()}
}

func (s *BuildStore) RecordBuild(ctx context.Context, b *build.Build) error {
	params, err := json.Marshal(b.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters of %s: %w", b.ID(), err)
	}
	causes, err := json.Marshal(b.Causes)
	if err != nil {
		return fmt.Errorf("encode causes of %s: %w", b.ID(), err)
	}

	const query = `
		INSERT INTO builds (id, job, number, url, parameters, causes, result, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			url = excluded.url,
			parameters = excluded.parameters,
			causes = excluded.causes,
			result = excluded.result
	`
	if _, err := s.db.Writer.ExecContext(ctx, query,
		b.ID(), b.Job, b.Number, b.URL, string(params), string(causes), string(b.Result),
		s.clock.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("record build %s: %w", b.ID(), err)
	}
	return nil
}

// Lookup returns the build with the given "job#number" id. ctx must run as
// build.System.
func (s *BuildStore) Lookup(ctx context.Context, id string) (*build.Build, bool, error) {
	if !build.IsSystem(ctx) {
		return nil, false, fmt.Errorf("lookup build %q as %q: %w", id, build.Principal(ctx), build.ErrForbidden)
	}
	const query = `
		SELECT job, number, url, parameters, causes, result
		FROM builds
		WHERE id = ?
	`
	var (
		b              build.Build
		params, causes string
		result         string
	)
	err := s.db.Reader.QueryRowContext(ctx, query, id).Scan(&b.Job, &b.Number, &b.URL, &params, &causes, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup build %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(params), &b.Parameters); err != nil {
		return nil, false, fmt.Errorf("decode parameters of %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(causes), &b.Causes); err != nil {
		return nil, false, fmt.Errorf("decode causes of %q: %w", id, err)
	}
	b.Result = build.Result(result)
	return &b, true, nil
}

func (s *BuildStore) RecordSource(ctx context.Context, job string, src *scm.Source) error {
	const query = `
		INSERT INTO sources (job, kind, owner, repository, credentials_id, api_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job) DO UPDATE SET
			kind = excluded.kind,
			owner = excluded.owner,
			repository = excluded.repository,
			credentials_id = excluded.credentials_id,
			api_url = excluded.api_url
	`
	if _, err := s.db.Writer.ExecContext(ctx, query,
		job, src.Kind, src.Owner, src.Repository, src.CredentialsID, src.APIURL,
	); err != nil {
		return fmt.Errorf("record source of %s: %w", job, err)
	}
	return nil
}

func (s *BuildStore) Source(ctx context.Context, job string) (*scm.Source, bool, error) {
	const query = `
		SELECT kind, owner, repository, credentials_id, api_url
		FROM sources
		WHERE job = ?
	`
	var src scm.Source
	err := s.db.Reader.QueryRowContext(ctx, query, job).Scan(&src.Kind, &src.Owner, &src.Repository, &src.CredentialsID, &src.APIURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("source of %s: %w", job, err)
	}
	return &src, true, nil
}

func (s *BuildStore) RecordHead(ctx context.Context, job string, head scm.Head) error {
	rec := scm.RecordHead(head)
	if rec.Kind == "" {
		return fmt.Errorf("record head of %s: unsupported head %T", job, head)
	}
	const query = `
		INSERT INTO heads (job, kind, name, number, branch, target)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			number = excluded.number,
			branch = excluded.branch,
			target = excluded.target
	`
	if _, err := s.db.Writer.ExecContext(ctx, query,
		job, rec.Kind, rec.Name, rec.Number, rec.Branch, rec.Target,
	); err != nil {
		return fmt.Errorf("record head of %s: %w", job, err)
	}
	return nil
}

func (s *BuildStore) Head(ctx context.Context, job string) (scm.Head, bool, error) {
	const query = `
		SELECT kind, name, number, branch, target
		FROM heads
		WHERE job = ?
	`
	var rec scm.HeadRecord
	err := s.db.Reader.QueryRowContext(ctx, query, job).Scan(&rec.Kind, &rec.Name, &rec.Number, &rec.Branch, &rec.Target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("head of %s: %w", job, err)
	}
	head, err := rec.Head()
	if err != nil {
		return nil, false, fmt.Errorf("head of %s: %w", job, err)
	}
	return head, true, nil
}

func (s *BuildStore) RecordRevision(ctx context.Context, buildID string, rev scm.Revision) error {
	rec := scm.RecordRevision(rev)
	if rec.Kind == "" {
		return fmt.Errorf("record revision of %s: unsupported revision %T", buildID, rev)
	}
	const query = `
		INSERT INTO revisions (build_id, kind, hash, pull_hash, base_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (build_id) DO UPDATE SET
			kind = excluded.kind,
			hash = excluded.hash,
			pull_hash = excluded.pull_hash,
			base_hash = excluded.base_hash
	`
	if _, err := s.db.Writer.ExecContext(ctx, query,
		buildID, rec.Kind, rec.Hash, rec.PullHash, rec.BaseHash,
	); err != nil {
		return fmt.Errorf("record revision of %s: %w", buildID, err)
	}
	return nil
}

func (s *BuildStore) Revision(ctx context.Context, buildID string) (scm.Revision, bool, error) {
	const query = `
		SELECT kind, hash, pull_hash, base_hash
		FROM revisions
		WHERE build_id = ?
	`
	var rec scm.RevisionRecord
	err := s.db.Reader.QueryRowContext(ctx, query, buildID).Scan(&rec.Kind, &rec.Hash, &rec.PullHash, &rec.BaseHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("revision of %s: %w", buildID, err)
	}
	rev, err := rec.Revision()
	if err != nil {
		return nil, false, fmt.Errorf("revision of %s: %w", buildID, err)
	}
	return rev, true, nil
}
