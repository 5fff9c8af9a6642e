/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package cloudevents builds CloudEvents clients and receivers that record
// HTTP metrics.
package cloudevents

import (
	"context"
	"net/http"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	metrics "github.com/chainguard-dev/checks-bridge/pkg/httpmetrics"
)

// NewClientHTTP returns a client sending over the metrics transport. Events
// go to target unless a context target overrides it.
func NewClientHTTP(name, target string, opts ...cehttp.Option) (cloudevents.Client, error) {
	// If we don't specify a client, NewClientHTTP will use http.DefaultClient
	// and may clobber its Transport.
	copt := []cehttp.Option{
		cehttp.WithClient(http.Client{Transport: metrics.Transport}),
		cloudevents.WithMiddleware(func(next http.Handler) http.Handler {
			return metrics.Handler(name, next)
		}),
	}
	if target != "" {
		copt = append(copt, cehttp.WithTarget(target))
	}
	return cloudevents.NewClientHTTP(append(copt, opts...)...)
}

// NewReceiveHandler returns an http.Handler delivering the events it
// receives to fn, which has one of the signatures cloudevents.Client's
// StartReceiver accepts.
func NewReceiveHandler(ctx context.Context, name string, fn any) (http.Handler, error) {
	p, err := cloudevents.NewHTTP()
	if err != nil {
		return nil, err
	}
	h, err := cloudevents.NewHTTPReceiveHandler(ctx, p, fn)
	if err != nil {
		return nil, err
	}
	return metrics.Handler(name, h), nil
}
