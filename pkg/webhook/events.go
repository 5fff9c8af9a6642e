/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// CheckRunEventType is the type the github-events trampoline gives
// forwarded check_run deliveries.
const CheckRunEventType = "dev.chainguard.github.check_run"

// eventData is the payload of events forwarded by the trampoline.
type eventData struct {
	When    time.Time       `json:"when"`
	Headers *eventHeaders   `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body"`
}

type eventHeaders struct {
	HookID     string `json:"hook_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Event      string `json:"event,omitempty"`
}

// EventHandler consumes check_run deliveries forwarded as CloudEvents.
type EventHandler struct {
	sub        *Subscriber
	deliveries *DeliveryCache
}

func NewEventHandler(sub *Subscriber, deliveries *DeliveryCache) *EventHandler {
	return &EventHandler{sub: sub, deliveries: deliveries}
}

// Handle processes one event. Malformed events are logged and dropped;
// failures to schedule are returned so the sender sees a NACK.
func (h *EventHandler) Handle(ctx context.Context, event cloudevents.Event) error {
	if event.Type() != CheckRunEventType {
		return nil
	}

	var data eventData
	if err := event.DataAs(&data); err != nil {
		clog.FromContext(ctx).Errorf("failed to decode event %s: %v", event.ID(), err)
		mEvents.WithLabelValues("malformed").Inc()
		return nil
	}
	delivery := event.ID()
	if data.Headers != nil && data.Headers.DeliveryID != "" {
		delivery = data.Headers.DeliveryID
	}
	log := clog.FromContext(ctx).With("delivery", delivery, "subject", event.Subject())
	ctx = clog.WithLogger(ctx, log)

	if !h.deliveries.Claim(delivery) {
		log.Infof("ignoring redelivery")
		mEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	outcome, err := h.sub.OnEvent(ctx, data.Body)
	switch {
	case errors.Is(err, ErrMalformedEvent):
		log.Errorf("dropping event: %v", err)
		mEvents.WithLabelValues("malformed").Inc()
		return nil
	case err != nil:
		h.deliveries.Release(delivery)
		mEvents.WithLabelValues("error").Inc()
		return fmt.Errorf("handling delivery %s: %w", delivery, err)
	}
	mEvents.WithLabelValues(outcome.String()).Inc()
	return nil
}
