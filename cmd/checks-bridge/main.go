/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command checks-bridge reports CI builds to GitHub as check runs, and
// schedules a rerun when a user re-requests one.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/checks-bridge/internal/config"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "checks-bridge",
		Short:         "Publish CI builds as GitHub check runs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Path of the SQLite database (overrides DB_PATH)")

	load := func(ctx context.Context) (*config.Config, error) {
		cfg, err := config.Load(ctx)
		if err != nil {
			return nil, err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newResolveCmd(load),
		newMigrateCmd(load),
	)
	return root
}

type loadFunc func(ctx context.Context) (*config.Config, error)
