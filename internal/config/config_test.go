/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"testing"
	"time"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sethvargo/go-envconfig"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{{
		name: "defaults",
		env:  map[string]string{},
		want: &Config{
			Port:             8080,
			DBPath:           "checks-bridge.db",
			CheckName:        "build",
			GitHubAPIURL:     "https://api.github.com",
			DeliveryTTL:      time.Hour,
			RunRetention:     30 * 24 * time.Hour,
			RunPruneSchedule: "@hourly",
		},
	}, {
		name: "overrides",
		env: map[string]string{
			"PORT":             "9090",
			"DB_PATH":          "/data/bridge.db",
			"CHECK_NAME":       "ci/test",
			"CREDENTIALS_FILE": "/etc/bridge/credentials.yaml",
			"ORCHESTRATOR_URI": "https://orchestrator.example.com/events",
			"GITHUB_API_URL":   "https://github.example.com/api/v3",
			"DELIVERY_TTL":     "0s",
			"RUN_RETENTION":    "24h",
		},
		want: &Config{
			Port:             9090,
			DBPath:           "/data/bridge.db",
			CheckName:        "ci/test",
			CredentialsFile:  "/etc/bridge/credentials.yaml",
			OrchestratorURI:  "https://orchestrator.example.com/events",
			GitHubAPIURL:     "https://github.example.com/api/v3",
			RunRetention:     24 * time.Hour,
			RunPruneSchedule: "@hourly",
		},
	}, {
		name:    "bad port",
		env:     map[string]string{"PORT": "0"},
		wantErr: true,
	}, {
		name:    "bad duration",
		env:     map[string]string{"DELIVERY_TTL": "soon"},
		wantErr: true,
	}, {
		name:    "negative retention",
		env:     map[string]string{"RUN_RETENTION": "-1h"},
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(slogtest.Context(t), envconfig.MapLookuper(tt.env), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("load() = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTarget(t *testing.T) {
	c := &Config{Sink: "http://broker"}
	if got, want := c.Target(), "http://broker"; got != want {
		t.Errorf("Target() = %q, wanted %q", got, want)
	}
	c.OrchestratorURI = "http://orchestrator"
	if got, want := c.Target(), "http://orchestrator"; got != want {
		t.Errorf("Target() = %q, wanted %q", got, want)
	}
}

func TestWebhookSecrets(t *testing.T) {
	environ := []string{
		"WEBHOOK_SECRET=foo",
		"PATH=/usr/bin",
		"WEBHOOK_SECRET_2=bar",
		"WEBHOOK_SECRET_EMPTY=",
		"MALFORMED",
	}
	got := webhookSecrets(slogtest.Context(t), environ)
	want := [][]byte{[]byte("foo"), []byte("bar")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("webhookSecrets() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "foo")
	t.Setenv("CHECK_NAME", "from-env")

	c, err := Load(slogtest.Context(t))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.CheckName != "from-env" {
		t.Errorf("CheckName = %q, wanted %q", c.CheckName, "from-env")
	}
	if c.WebhookSecret != "foo" {
		t.Errorf("WebhookSecret = %q, wanted %q", c.WebhookSecret, "foo")
	}
	if len(c.WebhookSecrets) == 0 {
		t.Error("no webhook secrets loaded")
	}
}
