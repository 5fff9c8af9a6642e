/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checks_bridge_webhook_events_total",
		Help: "The number of check_run events handled, by outcome.",
	},
	[]string{"outcome"},
)
