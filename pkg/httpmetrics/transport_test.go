/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"
)

func TestTransport(t *testing.T) {
	var mux sync.Mutex
	requestSeen := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		close(requestSeen)
		mux.Lock()
		defer mux.Unlock()
	}))
	defer s.Close()

	// Cause the request to "hang" so the in-flight gauge can be observed.
	mux.Lock()

	grp := errgroup.Group{}
	grp.Go(func() error {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, s.URL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set(CeTypeHeader, "testce")
		resp, err := (&http.Client{Transport: Transport}).Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("want OK, got %s", resp.Status)
		}
		return nil
	})

	<-requestSeen
	inFlight := prometheus.Labels{
		"method":        http.MethodGet,
		"host":          "other",
		"service_name":  "unknown",
		"revision_name": "unknown",
		"ce_type":       "testce",
	}
	if got := testutil.ToFloat64(mReqInFlight.With(inFlight)); got != 1 {
		t.Errorf("want metric in-flight = 1, got %f", got)
	}

	mux.Unlock()
	if err := grp.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(mReqCount.With(prometheus.Labels{
		"method":        http.MethodGet,
		"code":          "200",
		"host":          "other",
		"path":          "",
		"service_name":  "unknown",
		"revision_name": "unknown",
		"ce_type":       "testce",
	})); got != 1 {
		t.Errorf("want metric count = 1, got %f", got)
	}
	if got := testutil.ToFloat64(mReqInFlight.With(inFlight)); got != 0 {
		t.Errorf("want metric in-flight = 0, got %f", got)
	}
}

func TestGitHubRateLimits(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Resource", "core")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4000")
		w.Header().Set("X-RateLimit-Reset", "1735689600")
		w.WriteHeader(http.StatusCreated)
	}))
	defer s.Close()

	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatal(err)
	}
	prev := buckets
	defer func() { buckets = prev }()
	buckets = map[string]string{}
	AddGitHubHost(u.Host)

	resp, err := (&http.Client{Transport: WrapTransport(http.DefaultTransport)}).Post(s.URL+"/repos/octo/repo/check-runs", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	core := prometheus.Labels{"resource": "core"}
	if got := testutil.ToFloat64(mGitHubRateLimitRemaining.With(core)); got != 4000 {
		t.Errorf("remaining: got = %f, want = 4000", got)
	}
	if got := testutil.ToFloat64(mGitHubRateLimit.With(core)); got != 5000 {
		t.Errorf("limit: got = %f, want = 5000", got)
	}
	if got := testutil.ToFloat64(mGitHubRateLimitUsed.With(core)); got != 0.2 {
		t.Errorf("used: got = %f, want = 0.2", got)
	}
	if got := testutil.ToFloat64(mReqCount.With(prometheus.Labels{
		"method":        http.MethodPost,
		"code":          "201",
		"host":          githubBucket,
		"path":          "/repos/{org}/{repo}/check-runs",
		"service_name":  "unknown",
		"revision_name": "unknown",
		"ce_type":       "",
	})); got != 1 {
		t.Errorf("want metric count = 1, got %f", got)
	}
}

func TestExtractInnerTransport(t *testing.T) {
	inner := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("unused")
	})
	wrapped := WrapTransport(inner)
	if _, ok := ExtractInnerTransport(wrapped).(roundTripFunc); !ok {
		t.Errorf("ExtractInnerTransport() = %T, want roundTripFunc", ExtractInnerTransport(wrapped))
	}
	if got := ExtractInnerTransport(http.DefaultTransport); got != http.DefaultTransport {
		t.Errorf("ExtractInnerTransport() = %v, want the unwrapped transport", got)
	}
}

func TestMapErrorToLabel(t *testing.T) {
	for _, c := range []struct{ err, label string }{
		{"dial tcp: connect: connection refused", "connection-refused"},
		{"net/http: TLS handshake timeout", "tls-handshake-timeout"},
		{"read tcp: i/o timeout", "io-timeout"},
		{"boom", "unknown-error"},
	} {
		if got := mapErrorToLabel(errors.New(c.err)); got != c.label {
			t.Errorf("mapErrorToLabel(%q) = %q, want %q", c.err, got, c.label)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
