/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/chainguard-dev/checks-bridge/pkg/githubchecks"
	"github.com/jonboulle/clockwork"
)

var _ githubchecks.RunStore = (*RunStore)(nil)

// RunStore records the GitHub check run created for each build and check
// name.
type RunStore struct {
	db    *DB
	clock clockwork.Clock
}

func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db, clock: clockwork.NewRealClock()}
}

func (s *RunStore) Get(ctx context.Context, buildID, name string) (githubchecks.Run, bool, error) {
	const query = `SELECT run_id, status FROM check_runs WHERE build_id = ? AND name = ?`
	run, err := scanRun(s.db.Reader.QueryRowContext(ctx, query, buildID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return githubchecks.Run{}, false, nil
	}
	if err != nil {
		return githubchecks.Run{}, false, fmt.Errorf("check run of %s/%s: %w", buildID, name, err)
	}
	return run, true, nil
}

func (s *RunStore) Put(ctx context.Context, buildID, name string, run githubchecks.Run) error {
	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := scanRun(tx.QueryRowContext(ctx, `SELECT run_id, status FROM check_runs WHERE build_id = ? AND name = ?`, buildID, name))
	switch {
	case err == nil:
		if existing.ID != run.ID {
			return fmt.Errorf("%s/%s has run %d: %w", buildID, name, existing.ID, githubchecks.ErrRunRecorded)
		}
		if !existing.Status.Before(run.Status) {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE check_runs SET status = ? WHERE build_id = ? AND name = ?`,
			run.Status.String(), buildID, name,
		); err != nil {
			return fmt.Errorf("advance check run of %s/%s: %w", buildID, name, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO check_runs (build_id, name, run_id, status, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			buildID, name, run.ID, run.Status.String(), s.clock.Now().UnixNano(),
		); err != nil {
			return fmt.Errorf("record check run of %s/%s: %w", buildID, name, err)
		}
	default:
		return fmt.Errorf("check run of %s/%s: %w", buildID, name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit check run of %s/%s: %w", buildID, name, err)
	}
	return nil
}

func scanRun(row *sql.Row) (githubchecks.Run, error) {
	var (
		run    githubchecks.Run
		status string
	)
	if err := row.Scan(&run.ID, &status); err != nil {
		return githubchecks.Run{}, err
	}
	st, err := checks.ParseStatus(status)
	if err != nil {
		return githubchecks.Run{}, err
	}
	run.Status = st
	return run, nil
}

func (s *RunStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.Writer.ExecContext(ctx, `DELETE FROM check_runs WHERE recorded_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune check runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune check runs: %w", err)
	}
	return int(n), nil
}
