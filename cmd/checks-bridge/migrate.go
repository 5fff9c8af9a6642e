/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"

	"github.com/chainguard-dev/checks-bridge/internal/sqlite"
	"github.com/spf13/cobra"
)

func newMigrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			db, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening %s: %w", cfg.DBPath, err)
			}
			defer db.Close()

			version, err := sqlite.Migrate(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", cfg.DBPath, version)
			return nil
		},
	}
}
