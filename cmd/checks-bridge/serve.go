/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chainguard-dev/checks-bridge/internal/sqlite"
	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/httpmetrics"
	mce "github.com/chainguard-dev/checks-bridge/pkg/httpmetrics/cloudevents"
	"github.com/chainguard-dev/checks-bridge/pkg/lifecycle"
	"github.com/chainguard-dev/checks-bridge/pkg/webhook"
	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

const eventSource = "checks-bridge"

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the lifecycle event and webhook endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), load)
		},
	}
}

func runServe(ctx context.Context, load loadFunc) error {
	cfg, err := load(ctx)
	if err != nil {
		return err
	}
	if cfg.Target() == "" {
		return errors.New("one of ORCHESTRATOR_URI or K_SINK is required")
	}
	if len(cfg.WebhookSecrets) == 0 {
		clog.WarnContextf(ctx, "no WEBHOOK_SECRET configured, every webhook delivery will be rejected")
	}

	go httpmetrics.ServeMetrics(ctx)
	if cfg.EnableTracing {
		defer httpmetrics.SetupTracer(ctx)()
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DBPath, err)
	}
	defer db.Close()
	if _, err := sqlite.Migrate(db); err != nil {
		return err
	}

	ceclient, err := mce.NewClientHTTP("rerun", cfg.Target())
	if err != nil {
		return fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	a, err := newApp(ctx, cfg, db, build.NewEventScheduler(ceclient, eventSource, cfg.Target()))
	if err != nil {
		return err
	}

	janitor, err := startJanitor(ctx, a.runs, cfg.RunPruneSchedule, cfg.RunRetention, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer janitor.Stop()

	h, err := newRouter(ctx, a)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           h,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			clog.ErrorContextf(ctx, "shutting down: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func newRouter(ctx context.Context, a *app) (http.Handler, error) {
	events, err := mce.NewReceiveHandler(ctx, "events", a.dispatch)
	if err != nil {
		return nil, fmt.Errorf("creating event receiver: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", a.healthz)
	r.Method(http.MethodPost, "/events", events)
	if a.webhook != nil {
		r.Method(http.MethodPost, "/webhook", httpmetrics.Handler("webhook", a.webhook))
	}
	return r, nil
}

// dispatch routes a received event to the component handling its type.
func (a *app) dispatch(ctx context.Context, event cloudevents.Event) error {
	switch event.Type() {
	case lifecycle.QueuedEventType, lifecycle.StartedEventType, lifecycle.CompletedEventType:
		return a.receiver.Handle(ctx, event)
	case webhook.CheckRunEventType:
		if a.events == nil {
			return nil
		}
		return a.events.Handle(ctx, event)
	}
	clog.FromContext(ctx).Debugf("ignoring event of type %s", event.Type())
	return nil
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.Ping(r.Context()); err != nil {
		clog.FromContext(r.Context()).Errorf("health check: %v", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
