/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestServerMetrics(t *testing.T) {
	handler := "test"
	mux := http.NewServeMux()
	mux.Handle("GET /", Handler(handler, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want Accepted, got %s", resp.Status)
	}

	// Sample a metric to make sure labels are being properly applied.
	if got := testutil.ToFloat64(counter.With(prometheus.Labels{
		"handler":       handler,
		"method":        http.MethodGet,
		"code":          "202",
		"service_name":  "unknown",
		"revision_name": "unknown",
		"ce_type":       "",
	})); got != 1 {
		t.Errorf("want metric count = 1, got %f", got)
	}
}

func TestBucketize(t *testing.T) {
	prevBuckets, prevSuffixes := buckets, bucketSuffixes
	defer func() { buckets, bucketSuffixes = prevBuckets, prevSuffixes }()

	SetBuckets(map[string]string{
		"api.github.com": githubBucket,
		"github.com":     "GitHub",
	})
	SetBucketSuffixes(map[string]string{
		"googleapis.com": "Google API",
	})
	AddGitHubHost("github.example.com")

	for _, c := range []struct{ host, bucket string }{
		{"api.github.com", githubBucket},
		{"github.example.com", githubBucket},
		{"github.com", "GitHub"},
		{"cloudkms.googleapis.com", "Google API"},
		{"googleapis.com", "other"}, // only as a suffix
		{"example.com", "other"},
	} {
		if got := bucketize(t.Context(), c.host); got != c.bucket {
			t.Errorf("bucketize(%q) = %q, want %q", c.host, got, c.bucket)
		}
	}
}
