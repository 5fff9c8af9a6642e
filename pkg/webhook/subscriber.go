/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package webhook turns GitHub check_run "rerequested" events into reruns
// of the build that created the check run.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// ErrMalformedEvent is returned for payloads that are not check_run events.
var ErrMalformedEvent = errors.New("malformed check_run event")

// Outcome is what became of an event that was handled without error.
type Outcome int

const (
	// OutcomeIgnored is an event whose action does not trigger anything.
	OutcomeIgnored Outcome = iota
	// OutcomeNoBuild is a rerun request for a build that does not exist.
	OutcomeNoBuild
	// OutcomeScheduled is a rerun request that scheduled a build.
	OutcomeScheduled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeNoBuild:
		return "no_build"
	case OutcomeScheduled:
		return "scheduled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

const actionRerequested = "rerequested"

// Subscriber schedules reruns for rerequested check runs.
type Subscriber struct {
	lookup    build.Lookup
	scheduler build.Scheduler
}

func NewSubscriber(lookup build.Lookup, scheduler build.Scheduler) *Subscriber {
	return &Subscriber{lookup: lookup, scheduler: scheduler}
}

// OnEvent handles the JSON payload of a check_run event. The build is
// looked up by the check run's external id with system privileges, and
// rescheduled with its original parameters. Malformed payloads fail with
// ErrMalformedEvent.
func (s *Subscriber) OnEvent(ctx context.Context, payload []byte) (Outcome, error) {
	var ev github.CheckRunEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch {
	case ev.Action == nil:
		return OutcomeIgnored, fmt.Errorf("%w: missing action", ErrMalformedEvent)
	case ev.CheckRun == nil:
		return OutcomeIgnored, fmt.Errorf("%w: missing check_run", ErrMalformedEvent)
	case ev.GetRepo().GetFullName() == "":
		return OutcomeIgnored, fmt.Errorf("%w: missing repository.full_name", ErrMalformedEvent)
	}

	repo := ev.GetRepo().GetFullName()
	log := clog.FromContext(ctx).With("repo", repo, "action", ev.GetAction(), "check_run", ev.GetCheckRun().GetID())

	if ev.GetAction() != actionRerequested {
		log.Debugf("ignoring check_run action %q", ev.GetAction())
		return OutcomeIgnored, nil
	}

	branch := ev.GetCheckRun().GetCheckSuite().GetHeadBranch()
	if branch == "" {
		log.Debugf("check suite has no head branch")
	}

	externalID := ev.GetCheckRun().GetExternalID()
	if externalID == "" {
		log.Warnf("rerun requested on %s for a check run without external_id", repo)
		return OutcomeNoBuild, nil
	}

	b, ok, err := s.lookup.Lookup(build.AsSystem(ctx), externalID)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("looking up build %q: %w", externalID, err)
	}
	if !ok {
		log.Warnf("no build %q found for rerun request on %s", externalID, repo)
		return OutcomeNoBuild, nil
	}

	cause := build.RerunCause(ev.GetSender().GetLogin(), branch)
	ticket, err := s.scheduler.Schedule(ctx, b.Job, maps.Clone(b.Parameters), cause)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("scheduling rerun of %s: %w", b.ID(), err)
	}
	log.With("ticket", ticket.ID).Infof("scheduled rerun of %s: %s", b.ID(), cause.ShortDescription())
	return OutcomeScheduled, nil
}
