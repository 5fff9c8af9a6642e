/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const githubBucket = "GH API"

var (
	mReqCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_request_count",
			Help: "The total number of HTTP requests",
		},
		[]string{"code", "method", "host", "path", "service_name", "revision_name", "ce_type"},
	)
	mReqInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_client_request_in_flight",
			Help: "The number of outgoing HTTP requests currently inflight",
		},
		[]string{"method", "host", "service_name", "revision_name", "ce_type"},
	)
	mReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "The duration of HTTP requests",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"code", "method", "host", "path", "service_name", "revision_name", "ce_type"},
	)
	seenHostMap = sync.Map{}
)

var (
	buckets        = map[string]string{"api.github.com": githubBucket}
	bucketSuffixes = map[string]string{}
)

// SetBuckets replaces the exact host buckets. Call before issuing requests.
func SetBuckets(b map[string]string) { buckets = b }

// SetBucketSuffixes replaces the host suffix buckets. Call before issuing requests.
func SetBucketSuffixes(bs map[string]string) { bucketSuffixes = bs }

// AddGitHubHost buckets host as a GitHub API endpoint, so that its paths and
// rate limits are recorded. Call before issuing requests.
func AddGitHubHost(host string) { buckets[host] = githubBucket }

// Transport is an http.RoundTripper that records metrics for each request.
var Transport = WrapTransport(http.DefaultTransport)

type MetricsTransport struct {
	http.RoundTripper

	inner http.RoundTripper
}

// WrapTransport wraps an http.RoundTripper with instrumentation.
func WrapTransport(t http.RoundTripper) http.RoundTripper {
	return &MetricsTransport{
		RoundTripper: instrumentRoundTripperCounter(
			instrumentRoundTripperInFlight(
				instrumentRoundTripperDuration(
					instrumentGitHubRateLimits(
						otelhttp.NewTransport(t))))),
		inner: t,
	}
}

// ExtractInnerTransport returns the transport rt wraps, or rt itself.
func ExtractInnerTransport(rt http.RoundTripper) http.RoundTripper {
	if mt, ok := rt.(*MetricsTransport); ok {
		return mt.inner
	}
	return rt
}

func mapErrorToLabel(err error) string {
	switch msg := err.Error(); {
	case strings.Contains(msg, "no route to host"):
		return "no-route-to-host"
	case strings.Contains(msg, "i/o timeout"):
		return "io-timeout"
	case strings.Contains(msg, "TLS handshake timeout"):
		return "tls-handshake-timeout"
	case strings.Contains(msg, "connection refused"):
		return "connection-refused"
	case strings.Contains(msg, "context deadline exceeded"):
		return "deadline-exceeded"
	case strings.Contains(msg, "unexpected EOF"):
		return "unexpected-eof"
	}
	return "unknown-error"
}

func labels(r *http.Request) prometheus.Labels {
	host := bucketize(r.Context(), r.URL.Host)
	path := ""
	if host == githubBucket {
		path = bucketizePath(r.URL.Path)
	}
	return prometheus.Labels{
		"method":        r.Method,
		"host":          host,
		"path":          path,
		"service_name":  env.KnativeServiceName,
		"revision_name": env.KnativeRevisionName,
		"ce_type":       r.Header.Get(CeTypeHeader),
	}
}

func instrumentRoundTripperCounter(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		l := labels(r)
		resp, err := next.RoundTrip(r)
		if err == nil {
			l["code"] = strconv.Itoa(resp.StatusCode)
		} else {
			l["code"] = mapErrorToLabel(err)
		}
		mReqCount.With(l).Inc()
		return resp, err
	}
}

func instrumentRoundTripperInFlight(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		l := labels(r)
		delete(l, "path")
		g := mReqInFlight.With(l)
		g.Inc()
		defer g.Dec()
		return next.RoundTrip(r)
	}
}

func instrumentRoundTripperDuration(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		if err == nil {
			l := labels(r)
			l["code"] = strconv.Itoa(resp.StatusCode)
			mReqDuration.With(l).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

func bucketize(ctx context.Context, host string) string {
	// Check the exact matches first.
	if b, ok := buckets[host]; ok {
		return b
	}
	// Then check the suffixes.
	for k, v := range bucketSuffixes {
		if strings.HasSuffix(host, "."+k) {
			return v
		}
	}

	v, _ := seenHostMap.LoadOrStore(host, &atomic.Int64{})
	if seen := v.(*atomic.Int64).Add(1); (seen-1)%10 == 0 {
		clog.WarnContext(ctx, `bucketing host as "other", use httpmetrics.SetBuckets`, "host", host, "seen", seen)
	}
	return "other"
}

var (
	mGitHubRateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_remaining",
			Help: "The number of requests remaining in the current rate limit window",
		},
		[]string{"resource"},
	)
	mGitHubRateLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit",
			Help: "The number of requests allowed during the rate limit window",
		},
		[]string{"resource"},
	)
	mGitHubRateLimitReset = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_reset",
			Help: "The timestamp at which the current rate limit window resets",
		},
		[]string{"resource"},
	)
	mGitHubRateLimitUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_used",
			Help: "The fraction of the rate limit window used",
		},
		[]string{"resource"},
	)
)

// instrumentGitHubRateLimits records the rate limit headers of GitHub API responses.
// See https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api
func instrumentGitHubRateLimits(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)
		if err != nil || buckets[r.URL.Host] != githubBucket {
			return resp, err
		}

		resource := resp.Header.Get("X-RateLimit-Resource")
		if resource == "" {
			// Conditional requests answered with 304 carry no rate limit.
			return resp, err
		}
		val := func(key string) float64 {
			i, err := strconv.Atoi(resp.Header.Get(key))
			if err != nil {
				return 0
			}
			return float64(i)
		}
		l := prometheus.Labels{"resource": resource}
		remaining := val("X-RateLimit-Remaining")
		limit := val("X-RateLimit-Limit")
		mGitHubRateLimitRemaining.With(l).Set(remaining)
		mGitHubRateLimit.With(l).Set(limit)
		mGitHubRateLimitReset.With(l).Set(val("X-RateLimit-Reset"))
		if limit > 0 {
			mGitHubRateLimitUsed.With(l).Set((limit - remaining) / limit)
		}
		return resp, err
	}
}
