/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chainguard-dev/checks-bridge/internal/config"
	"github.com/chainguard-dev/checks-bridge/internal/sqlite"
	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/credentials"
	"github.com/chainguard-dev/checks-bridge/pkg/ghclient"
	"github.com/chainguard-dev/checks-bridge/pkg/githubchecks"
	"github.com/chainguard-dev/checks-bridge/pkg/httpmetrics"
	"github.com/chainguard-dev/checks-bridge/pkg/lifecycle"
	"github.com/chainguard-dev/checks-bridge/pkg/publisher"
	"github.com/chainguard-dev/checks-bridge/pkg/resolver"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/chainguard-dev/checks-bridge/pkg/webhook"
	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"
)

// app holds the wired components of the bridge.
type app struct {
	db       *sqlite.DB
	builds   *sqlite.BuildStore
	runs     *sqlite.RunStore
	resolver *resolver.Resolver
	receiver *lifecycle.Receiver
	webhook  *webhook.Server
	events   *webhook.EventHandler
}

// newApp wires the bridge on top of db. scheduler may be nil when reruns
// are not served.
func newApp(ctx context.Context, cfg *config.Config, db *sqlite.DB, scheduler build.Scheduler) (*app, error) {
	creds := credentials.NewMapStore()
	if cfg.CredentialsFile != "" {
		var err error
		if creds, err = credentials.LoadFile(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		clog.InfoContextf(ctx, "loaded %d credentials from %s", len(creds), cfg.CredentialsFile)
	}
	addGitHubHost(cfg.GitHubAPIURL)
	for _, c := range creds {
		if ac, ok := c.(credentials.AppCredential); ok {
			addGitHubHost(ac.APIURL)
		}
	}

	tokens := credentials.NewProvider(httpmetrics.Transport)
	builds := sqlite.NewBuildStore(db)
	runs := sqlite.NewRunStore(db)

	facade := scm.NewFacade(builds, creds, scm.NewGitHubFetcher(creds, tokens, httpmetrics.Transport))
	res := resolver.New(facade, tokens)
	registry := publisher.NewRegistry(githubchecks.NewFactory(facade, res, runs, httpmetrics.Transport))
	listener := lifecycle.NewListener(registry, res, cfg.CheckName)

	a := &app{
		db:       db,
		builds:   builds,
		runs:     runs,
		resolver: res,
		receiver: lifecycle.NewReceiver(withDefaultAPIURL(builds, cfg.GitHubAPIURL), listener),
	}
	if scheduler != nil {
		deliveries := webhook.NewDeliveryCache(clockwork.NewRealClock(), cfg.DeliveryTTL)
		sub := webhook.NewSubscriber(builds, scheduler)
		a.webhook = webhook.NewServer(sub, cfg.WebhookSecrets, deliveries)
		a.events = webhook.NewEventHandler(sub, deliveries)
	}
	return a, nil
}

func addGitHubHost(apiURL string) {
	if apiURL == "" {
		return
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		httpmetrics.AddGitHubHost(u.Host)
	}
}

// defaultAPIURL fills in the REST endpoint of sources recorded without one.
type defaultAPIURL struct {
	lifecycle.Recorder
	apiURL string
}

func withDefaultAPIURL(rec lifecycle.Recorder, apiURL string) lifecycle.Recorder {
	apiURL = ghclient.Normalize(apiURL)
	if apiURL == ghclient.DefaultAPIURL {
		return rec
	}
	return defaultAPIURL{Recorder: rec, apiURL: apiURL}
}

func (d defaultAPIURL) RecordSource(ctx context.Context, job string, src *scm.Source) error {
	if src.APIURL == "" {
		cp := *src
		cp.APIURL = d.apiURL
		src = &cp
	}
	return d.Recorder.RecordSource(ctx, job, src)
}
