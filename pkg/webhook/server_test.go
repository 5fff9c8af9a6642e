/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chainguard-dev/checks-bridge/pkg/build"
	"github.com/google/go-github/v75/github"
	"github.com/jonboulle/clockwork"
)

func sendevent(t *testing.T, client *http.Client, url, eventType, delivery string, payload []byte, secret []byte) *http.Response {
	t.Helper()

	// Compute the signature
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	sig := fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))

	r, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("http.NewRequest() = %v", err)
	}
	r.Header.Add("Content-Type", "application/json")
	r.Header.Add(github.SHA256SignatureHeader, sig)
	if eventType != "" {
		r.Header.Add(github.EventTypeHeader, eventType)
	}
	r.Header.Add("X-Github-Hook-ID", "1234")
	r.Header.Add(github.DeliveryIDHeader, delivery)

	resp, err := client.Do(r)
	if err != nil {
		t.Fatalf("error sending event: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestServer(t *testing.T) {
	secret := []byte("hunter2")
	rerun := checkRunPayload(t, "rerequested", "repo/PR-1#2", "feature")

	tests := []struct {
		name      string
		secrets   [][]byte
		eventType string
		payload   []byte
		lookup    *fakeLookup
		schedErr  error
		want      int
		scheduled int
	}{{
		name:      "rerun scheduled",
		secrets:   [][]byte{[]byte("badsecret"), secret},
		eventType: "check_run",
		payload:   rerun,
		want:      http.StatusOK,
		scheduled: 1,
	}, {
		name:      "bad signature",
		secrets:   [][]byte{[]byte("badsecret")},
		eventType: "check_run",
		payload:   rerun,
		want:      http.StatusForbidden,
	}, {
		name:      "no secrets",
		eventType: "check_run",
		payload:   rerun,
		want:      http.StatusForbidden,
	}, {
		name:    "missing event type",
		secrets: [][]byte{secret},
		payload: rerun,
		want:    http.StatusBadRequest,
	}, {
		name:      "other event",
		secrets:   [][]byte{secret},
		eventType: "push",
		payload:   rerun,
		want:      http.StatusAccepted,
	}, {
		name:      "other action",
		secrets:   [][]byte{secret},
		eventType: "check_run",
		payload:   checkRunPayload(t, "created", "repo/PR-1#2", "feature"),
		want:      http.StatusAccepted,
	}, {
		name:      "unknown build",
		secrets:   [][]byte{secret},
		eventType: "check_run",
		payload:   checkRunPayload(t, "rerequested", "repo/PR-9#1", "feature"),
		want:      http.StatusAccepted,
	}, {
		name:      "malformed",
		secrets:   [][]byte{secret},
		eventType: "check_run",
		payload:   []byte(`{"action":"rerequested"}`),
		want:      http.StatusBadRequest,
	}, {
		name:      "schedule failure",
		secrets:   [][]byte{secret},
		eventType: "check_run",
		payload:   rerun,
		schedErr:  errors.New("orchestrator down"),
		want:      http.StatusInternalServerError,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &fakeLookup{builds: map[string]*build.Build{"repo/PR-1#2": prBuild()}}
			sched := &fakeScheduler{err: tt.schedErr}
			srv := httptest.NewServer(NewServer(NewSubscriber(lookup, sched), tt.secrets, nil))
			defer srv.Close()

			resp := sendevent(t, srv.Client(), srv.URL, tt.eventType, "5678", tt.payload, secret)
			if resp.StatusCode != tt.want {
				t.Errorf("status: got = %v, wanted %d", resp.Status, tt.want)
			}
			if sched.count() != tt.scheduled {
				t.Errorf("scheduled %d builds, wanted %d", sched.count(), tt.scheduled)
			}
		})
	}
}

func TestServerRedelivery(t *testing.T) {
	secret := []byte("hunter2")
	clock := clockwork.NewFakeClock()
	lookup := &fakeLookup{builds: map[string]*build.Build{"repo/PR-1#2": prBuild()}}
	sched := &fakeScheduler{}
	srv := httptest.NewServer(NewServer(NewSubscriber(lookup, sched), [][]byte{secret}, NewDeliveryCache(clock, time.Hour)))
	defer srv.Close()

	payload := checkRunPayload(t, "rerequested", "repo/PR-1#2", "feature")

	if resp := sendevent(t, srv.Client(), srv.URL, "check_run", "5678", payload, secret); resp.StatusCode != http.StatusOK {
		t.Fatalf("first delivery: got = %v", resp.Status)
	}
	if resp := sendevent(t, srv.Client(), srv.URL, "check_run", "5678", payload, secret); resp.StatusCode != http.StatusAccepted {
		t.Errorf("redelivery: got = %v, wanted %d", resp.Status, http.StatusAccepted)
	}
	if sched.count() != 1 {
		t.Errorf("scheduled %d builds, wanted 1", sched.count())
	}

	// A distinct delivery of the same event is a fresh request from the user.
	if resp := sendevent(t, srv.Client(), srv.URL, "check_run", "9999", payload, secret); resp.StatusCode != http.StatusOK {
		t.Errorf("second click: got = %v, wanted %d", resp.Status, http.StatusOK)
	}

	// Once the TTL passes the original delivery id is forgotten.
	clock.Advance(2 * time.Hour)
	if resp := sendevent(t, srv.Client(), srv.URL, "check_run", "5678", payload, secret); resp.StatusCode != http.StatusOK {
		t.Errorf("late redelivery: got = %v, wanted %d", resp.Status, http.StatusOK)
	}
	if sched.count() != 3 {
		t.Errorf("scheduled %d builds, wanted 3", sched.count())
	}
}

func TestServerFailureReleasesDelivery(t *testing.T) {
	secret := []byte("hunter2")
	lookup := &fakeLookup{builds: map[string]*build.Build{"repo/PR-1#2": prBuild()}}
	sched := &fakeScheduler{err: errors.New("orchestrator down")}
	deliveries := NewDeliveryCache(clockwork.NewFakeClock(), time.Hour)
	srv := httptest.NewServer(NewServer(NewSubscriber(lookup, sched), [][]byte{secret}, deliveries))
	defer srv.Close()

	payload := checkRunPayload(t, "rerequested", "repo/PR-1#2", "feature")
	if resp := sendevent(t, srv.Client(), srv.URL, "check_run", "5678", payload, secret); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("failed delivery: got = %v", resp.Status)
	}
	if deliveries.Len() != 0 {
		t.Errorf("failed delivery still remembered")
	}

	sched.mu.Lock()
	sched.err = nil
	sched.mu.Unlock()
	if resp := sendevent(t, srv.Client(), srv.URL, "check_run", "5678", payload, secret); resp.StatusCode != http.StatusOK {
		t.Errorf("redelivery after failure: got = %v, wanted %d", resp.Status, http.StatusOK)
	}
}

func TestValidatePayloadTooLarge(t *testing.T) {
	secret := []byte("hunter2")
	payload := bytes.Repeat([]byte("a"), maxPayloadSize+1)

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(github.SHA256SignatureHeader, "sha256="+hex.EncodeToString(mac.Sum(nil)))

	if _, err := ValidatePayload(r, [][]byte{secret}); err == nil {
		t.Error("ValidatePayload() = nil, wanted error")
	}
}
