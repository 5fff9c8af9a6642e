/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the bridge's settings from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

// Config is the environment of the checks-bridge server.
type Config struct {
	Port   int    `env:"PORT, default=8080"`
	DBPath string `env:"DB_PATH, default=checks-bridge.db"`

	// CheckName is the name of the check run every build reports.
	CheckName string `env:"CHECK_NAME, default=build"`

	// CredentialsFile is a YAML file of the credentials jobs may name.
	CredentialsFile string `env:"CREDENTIALS_FILE"`

	// OrchestratorURI receives the rerun requests. When empty the
	// requests go to the CloudEvents broker named by K_SINK.
	OrchestratorURI string `env:"ORCHESTRATOR_URI"`
	Sink            string `env:"K_SINK"`

	// GitHubAPIURL is the REST endpoint for sources that do not name one.
	GitHubAPIURL string `env:"GITHUB_API_URL, default=https://api.github.com"`

	// EnableTracing exports spans to the OTEL_EXPORTER_OTLP_* endpoint.
	EnableTracing bool `env:"ENABLE_TRACING, default=false"`

	// DeliveryTTL is how long webhook delivery ids are remembered. Zero
	// disables deduplication.
	DeliveryTTL time.Duration `env:"DELIVERY_TTL, default=1h"`

	// RunRetention is how long check run ids are kept, and RunPruneSchedule
	// the cron spec of the janitor that drops older ones.
	RunRetention     time.Duration `env:"RUN_RETENTION, default=720h"`
	RunPruneSchedule string        `env:"RUN_PRUNE_SCHEDULE, default=@hourly"`

	// Note: any environment variable starting with "WEBHOOK_SECRET" will be
	// loaded as a webhook secret to be checked.
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// WebhookSecrets holds the values of every WEBHOOK_SECRET* variable.
	WebhookSecrets [][]byte
}

// Target is where rerun requests are sent.
func (c *Config) Target() string {
	if c.OrchestratorURI != "" {
		return c.OrchestratorURI
	}
	return c.Sink
}

// Load reads the Config from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper(), os.Environ())
}

func load(ctx context.Context, l envconfig.Lookuper, environ []string) (*Config, error) {
	var c Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &c,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if c.Port <= 0 {
		return nil, fmt.Errorf("PORT must be positive, got %d", c.Port)
	}
	if c.CheckName == "" {
		return nil, fmt.Errorf("CHECK_NAME must not be empty")
	}
	if c.DeliveryTTL < 0 || c.RunRetention < 0 {
		return nil, fmt.Errorf("durations must not be negative")
	}
	c.WebhookSecrets = webhookSecrets(ctx, environ)
	return &c, nil
}

// webhookSecrets collects the non-empty WEBHOOK_SECRET* variables.
func webhookSecrets(ctx context.Context, environ []string) [][]byte {
	var secrets [][]byte
	for _, e := range environ {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(k, "WEBHOOK_SECRET") && v != "" {
			clog.InfoContextf(ctx, "loading secret: %q", k)
			secrets = append(secrets, []byte(v))
		}
	}
	return secrets
}
