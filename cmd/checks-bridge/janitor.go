/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/checks-bridge/pkg/githubchecks"
	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// startJanitor prunes check run ids older than retention on the cron
// schedule spec. A zero retention keeps them forever.
func startJanitor(ctx context.Context, runs githubchecks.RunStore, spec string, retention time.Duration, clock clockwork.Clock) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		pruneRuns(ctx, runs, retention, clock)
	}); err != nil {
		return nil, fmt.Errorf("parsing prune schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func pruneRuns(ctx context.Context, runs githubchecks.RunStore, retention time.Duration, clock clockwork.Clock) int {
	if retention <= 0 {
		return 0
	}
	n, err := runs.Prune(ctx, clock.Now().Add(-retention))
	if err != nil {
		clog.ErrorContextf(ctx, "pruning check runs: %v", err)
		return 0
	}
	if n > 0 {
		clog.InfoContextf(ctx, "pruned %d check runs older than %v", n, retention)
	}
	return n
}
