/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package build

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// RerunEventType is the type of the CloudEvents sent to the orchestrator to
// enqueue a build.
const RerunEventType = "dev.chainguard.ci.build.rerun"

// RerunRequest is the payload of a RerunEventType event.
type RerunRequest struct {
	Job        string            `json:"job"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Cause      Cause             `json:"cause"`
}

// EventScheduler schedules builds by sending CloudEvents to the orchestrator.
type EventScheduler struct {
	client cloudevents.Client
	source string
	target string

	newID func() string
}

var _ Scheduler = (*EventScheduler)(nil)

// NewEventScheduler returns a Scheduler that delivers rerun requests to the
// orchestrator listening at target. Events are stamped with source.
func NewEventScheduler(client cloudevents.Client, source, target string) *EventScheduler {
	return &EventScheduler{
		client: client,
		source: source,
		target: target,
		newID:  func() string { return uuid.New().String() },
	}
}

// Schedule implements Scheduler.
func (s *EventScheduler) Schedule(ctx context.Context, job string, params map[string]string, cause Cause) (Ticket, error) {
	if job == "" {
		return Ticket{}, fmt.Errorf("schedule: empty job name")
	}

	event := cloudevents.NewEvent()
	event.SetID(s.newID())
	event.SetType(RerunEventType)
	event.SetSource(s.source)
	event.SetSubject(job)
	if err := event.SetData(cloudevents.ApplicationJSON, RerunRequest{
		Job:        job,
		Parameters: params,
		Cause:      cause,
	}); err != nil {
		return Ticket{}, fmt.Errorf("encoding rerun request: %w", err)
	}

	if s.target != "" {
		ctx = cloudevents.ContextWithTarget(ctx, s.target)
	}
	if ceresult := s.client.Send(ctx, event); cloudevents.IsUndelivered(ceresult) || cloudevents.IsNACK(ceresult) {
		return Ticket{}, fmt.Errorf("delivering rerun of %s: %w", job, ceresult)
	}

	clog.FromContext(ctx).With("job", job, "event-id", event.ID()).
		Infof("scheduled build: %s", cause.ShortDescription())
	return Ticket{ID: event.ID(), Job: job}, nil
}
