/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Details is the platform-agnostic state of one check run at one point in
// its lifecycle. It is immutable once built.
type Details struct {
	name        string
	status      Status
	detailsURL  string
	startedAt   time.Time
	completedAt time.Time
	conclusion  Conclusion
	output      *Output
	actions     []Action
}

// Name identifies the check within a commit.
func (d Details) Name() string           { return d.name }
func (d Details) Status() Status         { return d.status }
func (d Details) Conclusion() Conclusion { return d.conclusion }

func (d Details) DetailsURL() (string, bool) { return d.detailsURL, d.detailsURL != "" }

func (d Details) StartedAt() (time.Time, bool)   { return d.startedAt, !d.startedAt.IsZero() }
func (d Details) CompletedAt() (time.Time, bool) { return d.completedAt, !d.completedAt.IsZero() }

// Output returns a copy of the output, if any.
func (d Details) Output() (Output, bool) {
	if d.output == nil {
		return Output{}, false
	}
	return *d.output, true
}

// Actions returns a copy of the actions, in order.
func (d Details) Actions() []Action { return slices.Clone(d.actions) }

// DetailsBuilder accumulates the fields of a Details value.
//
//	d, err := checks.NewDetailsBuilder("build").
//		WithStatus(checks.StatusCompleted).
//		WithConclusion(checks.ConclusionSuccess).
//		Build()
type DetailsBuilder struct {
	d Details
}

// NewDetailsBuilder starts a Details value for the named check.
func NewDetailsBuilder(name string) *DetailsBuilder {
	return &DetailsBuilder{d: Details{name: name}}
}

func (b *DetailsBuilder) WithName(name string) *DetailsBuilder {
	b.d.name = name
	return b
}

func (b *DetailsBuilder) WithStatus(status Status) *DetailsBuilder {
	b.d.status = status
	return b
}

func (b *DetailsBuilder) WithConclusion(conclusion Conclusion) *DetailsBuilder {
	b.d.conclusion = conclusion
	return b
}

func (b *DetailsBuilder) WithDetailsURL(url string) *DetailsBuilder {
	b.d.detailsURL = url
	return b
}

func (b *DetailsBuilder) WithStartedAt(t time.Time) *DetailsBuilder {
	b.d.startedAt = t
	return b
}

func (b *DetailsBuilder) WithCompletedAt(t time.Time) *DetailsBuilder {
	b.d.completedAt = t
	return b
}

func (b *DetailsBuilder) WithOutput(o Output) *DetailsBuilder {
	b.d.output = &o
	return b
}

// WithActions appends actions, keeping their order.
func (b *DetailsBuilder) WithActions(actions ...Action) *DetailsBuilder {
	b.d.actions = append(b.d.actions, actions...)
	return b
}

// Build validates and returns the details.
//
// A conclusion is required when the status is COMPLETED, and forbidden for
// any other status.
func (b *DetailsBuilder) Build() (Details, error) {
	d := b.d
	if strings.TrimSpace(d.name) == "" {
		return Details{}, fmt.Errorf("%w: check name is required", ErrInvalidArgument)
	}
	if d.status < StatusNone || d.status > StatusCompleted {
		return Details{}, fmt.Errorf("%w: unknown status %d", ErrInvalidArgument, d.status)
	}
	if d.conclusion < ConclusionNone || d.conclusion > ConclusionSuccess {
		return Details{}, fmt.Errorf("%w: unknown conclusion %d", ErrInvalidArgument, d.conclusion)
	}
	if d.status == StatusCompleted && d.conclusion == ConclusionNone {
		return Details{}, fmt.Errorf("%w: a completed check requires a conclusion", ErrInvalidArgument)
	}
	if d.status != StatusCompleted && d.conclusion != ConclusionNone {
		return Details{}, fmt.Errorf("%w: conclusion %s requires status COMPLETED, got %s", ErrInvalidArgument, d.conclusion, d.status)
	}

	if d.output != nil {
		o := *d.output
		o.annotations = slices.Clone(o.annotations)
		o.images = slices.Clone(o.images)
		d.output = &o
	}
	d.actions = slices.Clone(d.actions)
	return d, nil
}
