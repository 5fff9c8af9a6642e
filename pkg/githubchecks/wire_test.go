/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubchecks

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/chainguard-dev/checks-bridge/pkg/checks"
)

func TestWireConclusion(t *testing.T) {
	tests := []struct {
		in   checks.Conclusion
		want string
	}{
		{checks.ConclusionNone, ""},
		{checks.ConclusionActionRequired, "action_required"},
		{checks.ConclusionSkipped, "skipped"},
		{checks.ConclusionCanceled, "cancelled"},
		{checks.ConclusionTimeOut, "timed_out"},
		{checks.ConclusionFailure, "failure"},
		{checks.ConclusionNeutral, "neutral"},
		{checks.ConclusionSuccess, "success"},
	}
	for _, tt := range tests {
		if got := wireConclusion(tt.in); got != tt.want {
			t.Errorf("wireConclusion(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWireStatus(t *testing.T) {
	tests := []struct {
		in   checks.Status
		want string
	}{
		{checks.StatusNone, ""},
		{checks.StatusQueued, "queued"},
		{checks.StatusInProgress, "in_progress"},
		{checks.StatusCompleted, "completed"},
	}
	for _, tt := range tests {
		if got := wireStatus(tt.in); got != tt.want {
			t.Errorf("wireStatus(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWireTime(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 59, 5_000_000, time.FixedZone("PST", -8*3600))
	b, err := json.Marshal(wireTime(ts))
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}
	if got, want := string(b), `"2025-01-01T07:59:59.005Z"`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestTruncate(t *testing.T) {
	short := "all good"
	if got := truncate(short); got != short {
		t.Errorf("truncate(short) = %q", got)
	}

	for _, unit := range []string{"a", "é", "🙂"} {
		long := strings.Repeat(unit, maxOutputLength)
		got := truncate(long)
		if len(got) > maxOutputLength {
			t.Errorf("truncate(%q...) length = %d, want <= %d", unit, len(got), maxOutputLength)
		}
		if !strings.HasSuffix(got, truncationMessage) {
			t.Errorf("truncate(%q...) lacks the truncation notice", unit)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q...) split a rune", unit)
		}
	}
}

func TestRequestOmitsConclusionUnlessCompleted(t *testing.T) {
	d, err := checks.NewDetailsBuilder("build").
		WithStatus(checks.StatusQueued).
		WithStartedAt(time.Now()).
		WithCompletedAt(time.Now()).
		Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	req, rest := request(d, "id", "url")
	if req.Conclusion != "" || req.CompletedAt != nil || req.StartedAt != nil {
		t.Errorf("queued request = %+v, want no conclusion or timestamps", req)
	}
	if len(rest) != 0 {
		t.Errorf("rest = %v, want none", rest)
	}
}
