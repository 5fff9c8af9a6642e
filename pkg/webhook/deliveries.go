/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DeliveryCache remembers GitHub delivery ids for a while, so that
// redeliveries of a webhook schedule at most one rerun.
type DeliveryCache struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

func NewDeliveryCache(clock clockwork.Clock, ttl time.Duration) *DeliveryCache {
	return &DeliveryCache{
		clock:     clock,
		ttl:       ttl,
		seen:      make(map[string]time.Time),
		lastSweep: clock.Now(),
	}
}

// Claim records id and reports whether this is its first delivery within
// the TTL. The empty id is never deduplicated.
func (c *DeliveryCache) Claim(id string) bool {
	if id == "" || c == nil || c.ttl <= 0 {
		return true
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) > c.ttl {
		for k, at := range c.seen {
			if now.Sub(at) > c.ttl {
				delete(c.seen, k)
			}
		}
		c.lastSweep = now
	}
	if at, ok := c.seen[id]; ok && now.Sub(at) <= c.ttl {
		return false
	}
	c.seen[id] = now
	return true
}

// Release forgets id so that a redelivery is processed again.
func (c *DeliveryCache) Release(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, id)
}

// Len is the number of remembered deliveries.
func (c *DeliveryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
