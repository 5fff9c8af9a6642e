/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package publisher selects, per build, the adapter that reports check
// state to the build's hosting platform.
package publisher

import (
	"context"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/chainguard-dev/clog"
)

// Publisher pushes the current state of a check. Publishing failures are
// logged by the implementation and never surface to the caller.
type Publisher interface {
	Publish(ctx context.Context, details checks.Details)
}

// Factory creates the Publisher for a build when it is applicable to it.
// A nil Publisher with a nil error means "not applicable".
type Factory interface {
	CreatePublisher(ctx context.Context, b *build.Build) (Publisher, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, b *build.Build) (Publisher, error)

func (f FactoryFunc) CreatePublisher(ctx context.Context, b *build.Build) (Publisher, error) {
	return f(ctx, b)
}

// Null drops everything.
var Null Publisher = nullPublisher{}

type nullPublisher struct{}

func (nullPublisher) Publish(ctx context.Context, details checks.Details) {
	clog.FromContext(ctx).Debugf("no publisher applicable, dropping %s (%s)", details.Name(), details.Status())
}

// Registry is an ordered list of factories.
type Registry struct {
	factories []Factory
}

func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: factories}
}

// PublisherFor returns the publisher of the first factory applicable to b,
// or Null. When an applicable factory fails, Null is returned along with the
// failure so the caller can report it.
func (r *Registry) PublisherFor(ctx context.Context, b *build.Build) (Publisher, error) {
	for _, f := range r.factories {
		p, err := f.CreatePublisher(ctx, b)
		if err != nil {
			return Null, err
		}
		if p != nil {
			return p, nil
		}
	}
	return Null, nil
}
