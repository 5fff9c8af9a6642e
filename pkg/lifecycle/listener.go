/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package lifecycle turns build lifecycle transitions into check run
// updates.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/chainguard-dev/checks-bridge/pkg/publisher"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"
)

// Publishers selects the publisher of a build.
type Publishers interface {
	PublisherFor(ctx context.Context, b *build.Build) (publisher.Publisher, error)
}

// Forgetter drops what was memoized for a build once it is over.
type Forgetter interface {
	Forget(buildID string)
}

// Listener publishes a check run per build as the build moves through
// queued, started and completed. Each transition publishes once; nothing is
// retried.
type Listener struct {
	publishers Publishers
	forget     Forgetter
	checkName  string
	clock      clockwork.Clock
}

// NewListener returns a Listener publishing check runs named checkName.
func NewListener(publishers Publishers, forget Forgetter, checkName string) *Listener {
	return &Listener{
		publishers: publishers,
		forget:     forget,
		checkName:  checkName,
		clock:      clockwork.NewRealClock(),
	}
}

func (l *Listener) OnQueued(ctx context.Context, b *build.Build) {
	l.publish(ctx, b, checks.NewDetailsBuilder(l.checkName).
		WithStatus(checks.StatusQueued))
}

func (l *Listener) OnStarted(ctx context.Context, b *build.Build) {
	l.publish(ctx, b, checks.NewDetailsBuilder(l.checkName).
		WithStatus(checks.StatusInProgress).
		WithStartedAt(l.clock.Now()))
}

func (l *Listener) OnCompleted(ctx context.Context, b *build.Build, result build.Result) {
	defer l.forget.Forget(b.ID())

	conclusion := Conclusion(result)
	details := checks.NewDetailsBuilder(l.checkName).
		WithStatus(checks.StatusCompleted).
		WithConclusion(conclusion).
		WithCompletedAt(l.clock.Now())

	output, err := checks.NewOutputBuilder(title(result), summary(b, result)).Build()
	if err != nil {
		clog.FromContext(ctx).Errorf("failed to build output for %s: %v", b.ID(), err)
	} else {
		details = details.WithOutput(output)
	}
	l.publish(ctx, b, details)
}

func (l *Listener) publish(ctx context.Context, b *build.Build, db *checks.DetailsBuilder) {
	log := clog.FromContext(ctx).With("build", b.ID())

	if b.URL != "" {
		db = db.WithDetailsURL(b.URL)
	}
	details, err := db.Build()
	if err != nil {
		log.Errorf("failed to build check details: %v", err)
		return
	}

	p, err := l.publishers.PublisherFor(ctx, b)
	if err != nil {
		if reason := scm.ReasonOf(err); reason != "" {
			log.With("reason", string(reason)).Warnf("cannot resolve checks context: %v", err)
		} else {
			log.Warnf("cannot create publisher: %v", err)
		}
	}
	if p == nil {
		p = publisher.Null
	}
	p.Publish(ctx, details)
}

// Conclusion maps the result of a build to the conclusion of its check run.
func Conclusion(r build.Result) checks.Conclusion {
	switch r {
	case build.ResultSuccess:
		return checks.ConclusionSuccess
	case build.ResultUnstable:
		return checks.ConclusionNeutral
	case build.ResultFailure:
		return checks.ConclusionFailure
	case build.ResultAborted:
		return checks.ConclusionCanceled
	case build.ResultNotBuilt:
		return checks.ConclusionSkipped
	default:
		return checks.ConclusionTimeOut
	}
}

func title(r build.Result) string {
	switch r {
	case build.ResultSuccess:
		return "Success"
	case build.ResultUnstable:
		return "Unstable"
	case build.ResultFailure:
		return "Failure"
	case build.ResultAborted:
		return "Aborted"
	case build.ResultNotBuilt:
		return "Not built"
	default:
		return "Unknown result"
	}
}

func summary(b *build.Build, r build.Result) string {
	var sb strings.Builder
	result := string(r)
	if result == "" {
		result = "UNKNOWN"
	}
	if b.URL != "" {
		fmt.Fprintf(&sb, "[%s](%s) finished with result **%s**.\n", b.ID(), b.URL, result)
	} else {
		fmt.Fprintf(&sb, "%s finished with result **%s**.\n", b.ID(), result)
	}
	for _, c := range b.Causes {
		fmt.Fprintf(&sb, "\n- %s", c.ShortDescription())
	}
	return sb.String()
}
