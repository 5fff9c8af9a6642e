/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubchecks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/jonboulle/clockwork"
)

// ErrRunRecorded is returned by RunStore.Put when a different check run id
// is already recorded for the build and check name.
var ErrRunRecorded = errors.New("check run already recorded")

// Run is the check run created for a build and check name.
type Run struct {
	ID int64
	// Status is the latest status published to the run.
	Status checks.Status
}

// RunStore remembers the remote id of the check run created for each
// (build, check name), so that later publishes update it.
type RunStore interface {
	Get(ctx context.Context, buildID, name string) (Run, bool, error)
	// Put records run. Recording the same id again advances its status and
	// never moves it back; a different id fails with ErrRunRecorded.
	Put(ctx context.Context, buildID, name string, run Run) error
	// Prune forgets the runs recorded before the given time.
	Prune(ctx context.Context, before time.Time) (int, error)
}

type runKey struct {
	buildID, name string
}

type runEntry struct {
	run      Run
	recorded time.Time
}

// MemoryRunStore is a RunStore held in memory.
type MemoryRunStore struct {
	clock clockwork.Clock

	mu   sync.Mutex
	runs map[runKey]runEntry
}

var _ RunStore = (*MemoryRunStore)(nil)

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		clock: clockwork.NewRealClock(),
		runs:  make(map[runKey]runEntry),
	}
}

func (s *MemoryRunStore) Get(_ context.Context, buildID, name string) (Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.runs[runKey{buildID, name}]
	return e.run, ok, nil
}

func (s *MemoryRunStore) Put(_ context.Context, buildID, name string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := runKey{buildID, name}
	if e, ok := s.runs[k]; ok {
		if e.run.ID != run.ID {
			return ErrRunRecorded
		}
		if e.run.Status.Before(run.Status) {
			e.run.Status = run.Status
			s.runs[k] = e
		}
		return nil
	}
	s.runs[k] = runEntry{run: run, recorded: s.clock.Now()}
	return nil
}

func (s *MemoryRunStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.runs {
		if e.recorded.Before(before) {
			delete(s.runs, k)
			n++
		}
	}
	return n, nil
}
