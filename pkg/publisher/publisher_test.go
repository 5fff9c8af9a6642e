/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/chainguard-dev/clog/slogtest"
)

type recorder struct {
	name    string
	details []checks.Details
}

func (r *recorder) Publish(_ context.Context, d checks.Details) {
	r.details = append(r.details, d)
}

func fixed(p Publisher, err error) Factory {
	return FactoryFunc(func(context.Context, *build.Build) (Publisher, error) {
		return p, err
	})
}

func TestPublisherFor(t *testing.T) {
	first := &recorder{name: "first"}
	second := &recorder{name: "second"}
	boom := errors.New("boom")

	tests := []struct {
		name      string
		factories []Factory
		want      Publisher
		wantErr   error
	}{{
		name: "no factories",
		want: Null,
	}, {
		name:      "none applicable",
		factories: []Factory{fixed(nil, nil), fixed(nil, nil)},
		want:      Null,
	}, {
		name:      "first applicable wins",
		factories: []Factory{fixed(nil, nil), fixed(first, nil), fixed(second, nil)},
		want:      first,
	}, {
		name:      "failure yields null with error",
		factories: []Factory{fixed(nil, boom), fixed(second, nil)},
		want:      Null,
		wantErr:   boom,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRegistry(tt.factories...).PublisherFor(slogtest.Context(t), &build.Build{Job: "j", Number: 1})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PublisherFor() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PublisherFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullPublisher(t *testing.T) {
	d, err := checks.NewDetailsBuilder("build").WithStatus(checks.StatusQueued).Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	// Must not panic or block.
	Null.Publish(slogtest.Context(t), d)
}
