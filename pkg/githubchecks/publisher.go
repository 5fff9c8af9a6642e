/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubchecks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/chainguard-dev/checks-bridge/pkg/publisher"
	"github.com/chainguard-dev/checks-bridge/pkg/resolver"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// Publisher converges the check runs of one build on GitHub.
type Publisher struct {
	cc     *resolver.ChecksContext
	client *client
	runs   RunStore
}

var _ publisher.Publisher = (*Publisher)(nil)

// Publish implements publisher.Publisher. Failures are logged and dropped.
func (p *Publisher) Publish(ctx context.Context, d checks.Details) {
	log := clog.FromContext(ctx).With(
		"repo", p.cc.Repository(),
		"sha", p.cc.HeadSHA(),
		"build", p.cc.BuildID(),
		"check", d.Name(),
	)
	ctx = clog.WithLogger(ctx, log)

	if d.Status() == checks.StatusNone {
		log.Debugf("status %s, nothing to publish", d.Status())
		return
	}

	body, batches := request(d, p.cc.BuildID(), p.cc.URL())

	run, ok, err := p.runs.Get(ctx, p.cc.BuildID(), d.Name())
	if err != nil {
		log.Errorf("failed to look up check run id: %v", err)
		ok = false
	}
	if ok && regresses(run.Status, d.Status()) {
		log.Warnf("check run %d is already %s, dropping %s", run.ID, run.Status, d.Status())
		return
	}

	id := run.ID
	switch {
	case ok:
		if _, resp, err := p.client.update(ctx, p.cc.Owner(), p.cc.Name(), id, body); err != nil {
			p.logFailure(ctx, "update", d, body, resp, err)
			return
		}
	default:
		if d.Status() != checks.StatusQueued {
			log.Warnf("no check run recorded for %s, creating a new one", d.Status())
		}
		body.HeadSHA = p.cc.HeadSHA()
		created, resp, err := p.client.create(ctx, p.cc.Owner(), p.cc.Name(), body)
		if err != nil {
			p.logFailure(ctx, "create", d, body, resp, err)
			return
		}
		id = created.GetID()
	}
	if err := p.runs.Put(ctx, p.cc.BuildID(), d.Name(), Run{ID: id, Status: d.Status()}); err != nil {
		log.Errorf("failed to record check run %d: %v", id, err)
	}
	log.Infof("published check run %d: %s", id, d.Status())

	for i, batch := range batches {
		more := &checkRunRequest{
			Output: &wireOutput{
				Title:       body.Output.Title,
				Summary:     body.Output.Summary,
				Annotations: batch,
			},
		}
		if _, resp, err := p.client.update(ctx, p.cc.Owner(), p.cc.Name(), id, more); err != nil {
			p.logFailure(ctx, fmt.Sprintf("annotate (batch %d of %d)", i+2, len(batches)+1), d, more, resp, err)
			return
		}
	}
}

// regresses reports whether publishing next after last would move the check
// run backwards. A completed run is final.
func regresses(last, next checks.Status) bool {
	return next.Before(last) || (last == checks.StatusCompleted && next == checks.StatusCompleted)
}

func (p *Publisher) logFailure(ctx context.Context, op string, d checks.Details, body *checkRunRequest, resp *github.Response, err error) {
	var annotations []string
	if body.Output != nil {
		for _, a := range body.Output.Annotations {
			annotations = append(annotations, a.String())
		}
	}

	// Only the reason phrase of API errors is logged.
	reason := err.Error()
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && resp != nil {
		reason = resp.Status
	}

	clog.FromContext(ctx).With(
		"name", d.Name(),
		"status", d.Status().String(),
		"conclusion", d.Conclusion().String(),
		"annotations", strings.Join(annotations, "; "),
	).Errorf("failed to %s check run: %s", op, reason)
}
