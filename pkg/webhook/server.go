/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

const (
	checkRunEvent = "check_run"

	// maxPayloadSize is the size GitHub caps webhook payloads at.
	maxPayloadSize = 25 << 20
)

// Server receives GitHub webhook deliveries over HTTP.
type Server struct {
	sub        *Subscriber
	secrets    [][]byte
	deliveries *DeliveryCache
}

// NewServer returns a Server accepting deliveries signed with any of
// secrets. deliveries may be nil to disable deduplication.
func NewServer(sub *Subscriber, secrets [][]byte, deliveries *DeliveryCache) *Server {
	return &Server{sub: sub, secrets: secrets, deliveries: deliveries}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx)

	// https://docs.github.com/en/webhooks/using-webhooks/validating-webhook-deliveries
	payload, err := ValidatePayload(r, s.secrets)
	if err != nil {
		log.Errorf("failed to verify webhook: %v", err)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, "failed to verify webhook: %v", err)
		return
	}

	// https://docs.github.com/en/webhooks/webhook-events-and-payloads#delivery-headers
	t := github.WebHookType(r)
	if t == "" {
		log.Errorf("missing X-GitHub-Event header")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	delivery := github.DeliveryID(r)
	log = log.With("event-type", t, "delivery", delivery)
	ctx = clog.WithLogger(ctx, log)

	if t != checkRunEvent {
		log.Debugf("ignoring %s event", t)
		// Use 202 Accepted to as an ACK, but no action taken.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	status := s.handle(ctx, delivery, payload)
	w.WriteHeader(status)
}

// handle runs a check_run payload through the subscriber and returns the
// HTTP status to answer with.
func (s *Server) handle(ctx context.Context, delivery string, payload []byte) int {
	log := clog.FromContext(ctx)

	if !s.deliveries.Claim(delivery) {
		log.Infof("ignoring redelivery")
		mEvents.WithLabelValues("duplicate").Inc()
		return http.StatusAccepted
	}

	outcome, err := s.sub.OnEvent(ctx, payload)
	switch {
	case errors.Is(err, ErrMalformedEvent):
		log.Errorf("rejecting event: %v", err)
		mEvents.WithLabelValues("malformed").Inc()
		return http.StatusBadRequest
	case err != nil:
		// Let GitHub's manual redelivery through.
		s.deliveries.Release(delivery)
		log.Errorf("failed to handle event: %v", err)
		mEvents.WithLabelValues("error").Inc()
		return http.StatusInternalServerError
	}

	mEvents.WithLabelValues(outcome.String()).Inc()
	if outcome == OutcomeScheduled {
		return http.StatusOK
	}
	return http.StatusAccepted
}

// ValidatePayload validates the payload of a webhook request for a given set of secrets.
// If any of the secrets are valid, the payload is returned with no error.
func ValidatePayload(r *http.Request, secrets [][]byte) ([]byte, error) {
	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(github.SHA1SignatureHeader)
	}
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPayloadSize {
		return nil, fmt.Errorf("payload exceeds %d bytes", maxPayloadSize)
	}

	for _, secret := range secrets {
		payload, err := github.ValidatePayloadFromBody(contentType, bytes.NewReader(body), signature, secret)
		if err == nil {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("failed to validate payload")
}
