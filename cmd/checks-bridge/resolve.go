/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/chainguard-dev/checks-bridge/internal/sqlite"
	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/spf13/cobra"
)

func newResolveCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve JOB#NUMBER",
		Short: "Resolve the repository, commit and credentials a build reports to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			db, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening %s: %w", cfg.DBPath, err)
			}
			defer db.Close()

			a, err := newApp(cmd.Context(), cfg, db, nil)
			if err != nil {
				return err
			}
			return a.resolve(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

// resolve prints the checks context of the build with the given id. The
// token itself is never printed.
func (a *app) resolve(ctx context.Context, w io.Writer, id string) error {
	b, ok, err := a.builds.Lookup(build.AsSystem(ctx), id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no build %q", id)
	}
	cc, err := a.resolver.Resolve(ctx, b)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "repository: %s\n", cc.Repository())
	fmt.Fprintf(w, "head_sha:   %s\n", cc.HeadSHA())
	fmt.Fprintf(w, "url:        %s\n", cc.URL())
	if cc.Token() == "" {
		fmt.Fprintf(w, "token:      anonymous\n")
	} else {
		fmt.Fprintf(w, "token:      expires %s\n", cc.TokenExpiry().Format(time.RFC3339))
	}
	return nil
}
