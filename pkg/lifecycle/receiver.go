/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lifecycle

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/scm"
	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Event types the orchestrator emits.
const (
	QueuedEventType    = "dev.chainguard.ci.build.queued"
	StartedEventType   = "dev.chainguard.ci.build.started"
	CompletedEventType = "dev.chainguard.ci.build.completed"
)

// EventData is the payload of lifecycle events.
type EventData struct {
	Build build.Build `json:"build"`

	// Source, Head and Revision describe what the build checks out. They are
	// recorded when present so later events and reruns can resolve them.
	Source   *scm.Source         `json:"source,omitempty"`
	Head     *scm.HeadRecord     `json:"head,omitempty"`
	Revision *scm.RevisionRecord `json:"revision,omitempty"`
}

// Recorder stores what lifecycle events say about builds.
type Recorder interface {
	RecordBuild(ctx context.Context, b *build.Build) error
	RecordSource(ctx context.Context, job string, src *scm.Source) error
	RecordHead(ctx context.Context, job string, head scm.Head) error
	RecordRevision(ctx context.Context, buildID string, rev scm.Revision) error
}

// Receiver handles lifecycle CloudEvents.
type Receiver struct {
	rec      Recorder
	listener *Listener
}

func NewReceiver(rec Recorder, listener *Listener) *Receiver {
	return &Receiver{rec: rec, listener: listener}
}

// Handle records the event's metadata and drives the listener. Events of
// other types are ignored. Errors are returned only for events that could
// not be decoded or recorded.
func (r *Receiver) Handle(ctx context.Context, event cloudevents.Event) error {
	switch event.Type() {
	case QueuedEventType, StartedEventType, CompletedEventType:
	default:
		clog.FromContext(ctx).With("type", event.Type()).Debugf("ignoring event")
		return nil
	}

	var data EventData
	if err := event.DataAs(&data); err != nil {
		return fmt.Errorf("decoding %s event %s: %w", event.Type(), event.ID(), err)
	}
	b := &data.Build
	if b.Job == "" || b.Number <= 0 {
		return fmt.Errorf("%s event %s: missing build job or number", event.Type(), event.ID())
	}
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("build", b.ID(), "type", event.Type()))

	if err := r.record(ctx, &data); err != nil {
		return err
	}

	switch event.Type() {
	case QueuedEventType:
		r.listener.OnQueued(ctx, b)
	case StartedEventType:
		r.listener.OnStarted(ctx, b)
	case CompletedEventType:
		r.listener.OnCompleted(ctx, b, b.Result)
	}
	return nil
}

func (r *Receiver) record(ctx context.Context, data *EventData) error {
	b := &data.Build
	if err := r.rec.RecordBuild(ctx, b); err != nil {
		return fmt.Errorf("recording build: %w", err)
	}
	if data.Source != nil {
		if err := r.rec.RecordSource(ctx, b.Job, data.Source); err != nil {
			return fmt.Errorf("recording source: %w", err)
		}
	}
	if data.Head != nil {
		head, err := data.Head.Head()
		if err != nil {
			return fmt.Errorf("decoding head: %w", err)
		}
		if err := r.rec.RecordHead(ctx, b.Job, head); err != nil {
			return fmt.Errorf("recording head: %w", err)
		}
	}
	if data.Revision != nil {
		rev, err := data.Revision.Revision()
		if err != nil {
			return fmt.Errorf("decoding revision: %w", err)
		}
		if err := r.rec.RecordRevision(ctx, b.ID(), rev); err != nil {
			return fmt.Errorf("recording revision: %w", err)
		}
	}
	return nil
}
