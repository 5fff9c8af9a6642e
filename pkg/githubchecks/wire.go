/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubchecks

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/chainguard-dev/checks-bridge/pkg/checks"
	"github.com/google/go-github/v75/github"
)

// Docs for Check Run API: https://docs.github.com/en/rest/checks/runs?apiVersion=2022-11-28

const (
	mediaType = "application/vnd.github.antiope-preview+json"

	maxOutputLength   = 65535
	truncationMessage = "\n\n⚠️ _Summary has been truncated_"

	// GitHub accepts at most this many annotations per request.
	maxAnnotations = 50

	timeFormat = "2006-01-02T15:04:05.000Z"
)

func wireStatus(s checks.Status) string {
	switch s {
	case checks.StatusQueued:
		return "queued"
	case checks.StatusInProgress:
		return "in_progress"
	case checks.StatusCompleted:
		return "completed"
	}
	return ""
}

func wireConclusion(c checks.Conclusion) string {
	switch c {
	case checks.ConclusionActionRequired:
		return "action_required"
	case checks.ConclusionSkipped:
		return "skipped"
	case checks.ConclusionCanceled:
		return "cancelled"
	case checks.ConclusionTimeOut:
		return "timed_out"
	case checks.ConclusionFailure:
		return "failure"
	case checks.ConclusionNeutral:
		return "neutral"
	case checks.ConclusionSuccess:
		return "success"
	}
	return ""
}

func wireLevel(l checks.AnnotationLevel) string {
	switch l {
	case checks.AnnotationLevelNotice:
		return "notice"
	case checks.AnnotationLevelWarning:
		return "warning"
	case checks.AnnotationLevelFailure:
		return "failure"
	}
	return ""
}

// wireTime is a timestamp in UTC with millisecond precision.
type wireTime time.Time

func (t wireTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timeFormat) + `"`), nil
}

func timePtr(t time.Time) *wireTime {
	w := wireTime(t)
	return &w
}

type checkRunRequest struct {
	Name        string       `json:"name,omitempty"`
	HeadSHA     string       `json:"head_sha,omitempty"`
	DetailsURL  string       `json:"details_url,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
	Status      string       `json:"status,omitempty"`
	StartedAt   *wireTime    `json:"started_at,omitempty"`
	Conclusion  string       `json:"conclusion,omitempty"`
	CompletedAt *wireTime    `json:"completed_at,omitempty"`
	Output      *wireOutput  `json:"output,omitempty"`
	Actions     []wireAction `json:"actions,omitempty"`
}

type wireOutput struct {
	Title       string           `json:"title"`
	Summary     string           `json:"summary"`
	Text        string           `json:"text,omitempty"`
	Annotations []wireAnnotation `json:"annotations,omitempty"`
	Images      []wireImage      `json:"images,omitempty"`
}

type wireAnnotation struct {
	Path            string `json:"path"`
	StartLine       int    `json:"start_line"`
	EndLine         int    `json:"end_line"`
	StartColumn     *int   `json:"start_column,omitempty"`
	EndColumn       *int   `json:"end_column,omitempty"`
	AnnotationLevel string `json:"annotation_level"`
	Message         string `json:"message"`
	Title           string `json:"title,omitempty"`
	RawDetails      string `json:"raw_details,omitempty"`
}

func (a wireAnnotation) String() string {
	return fmt.Sprintf("%s:%d-%d [%s] %s", a.Path, a.StartLine, a.EndLine, a.AnnotationLevel, a.Message)
}

type wireImage struct {
	Alt      string `json:"alt"`
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption,omitempty"`
}

type wireAction struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Identifier  string `json:"identifier"`
}

// truncate caps s at the output length GitHub accepts, cutting on a rune
// boundary and appending a notice.
func truncate(s string) string {
	if len(s) <= maxOutputLength {
		return s
	}
	cut := maxOutputLength - len(truncationMessage)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMessage
}

func toWireAnnotations(as []checks.Annotation) []wireAnnotation {
	out := make([]wireAnnotation, 0, len(as))
	for _, a := range as {
		w := wireAnnotation{
			Path:            a.Path(),
			StartLine:       a.StartLine(),
			EndLine:         a.EndLine(),
			AnnotationLevel: wireLevel(a.Level()),
			Message:         a.Message(),
		}
		if c, ok := a.StartColumn(); ok {
			w.StartColumn = &c
		}
		if c, ok := a.EndColumn(); ok {
			w.EndColumn = &c
		}
		if t, ok := a.Title(); ok {
			w.Title = t
		}
		if r, ok := a.RawDetails(); ok {
			w.RawDetails = r
		}
		out = append(out, w)
	}
	return out
}

// request shapes d into a check run request. Only the first batch of
// annotations is included; the remaining batches are returned separately.
func request(d checks.Details, externalID, detailsURL string) (*checkRunRequest, [][]wireAnnotation) {
	req := &checkRunRequest{
		Name:       d.Name(),
		ExternalID: externalID,
		DetailsURL: detailsURL,
		Status:     wireStatus(d.Status()),
	}
	if u, ok := d.DetailsURL(); ok {
		req.DetailsURL = u
	}

	switch d.Status() {
	case checks.StatusInProgress:
		if t, ok := d.StartedAt(); ok {
			req.StartedAt = timePtr(t)
		}
	case checks.StatusCompleted:
		req.Conclusion = wireConclusion(d.Conclusion())
		if t, ok := d.CompletedAt(); ok {
			req.CompletedAt = timePtr(t)
		}
	}

	for _, a := range d.Actions() {
		req.Actions = append(req.Actions, wireAction{
			Label:       a.Label(),
			Description: a.Description(),
			Identifier:  a.Identifier(),
		})
	}

	o, ok := d.Output()
	if !ok {
		return req, nil
	}
	req.Output = &wireOutput{
		Title:   o.Title(),
		Summary: truncate(o.Summary()),
	}
	if text, ok := o.Text(); ok {
		req.Output.Text = truncate(text)
	}
	for _, img := range o.Images() {
		w := wireImage{Alt: img.Alt(), ImageURL: img.ImageURL()}
		if c, ok := img.Caption(); ok {
			w.Caption = c
		}
		req.Output.Images = append(req.Output.Images, w)
	}

	var batches [][]wireAnnotation
	all := toWireAnnotations(o.Annotations())
	for len(all) > 0 {
		n := min(len(all), maxAnnotations)
		batches = append(batches, all[:n])
		all = all[n:]
	}
	if len(batches) == 0 {
		return req, nil
	}
	req.Output.Annotations = batches[0]
	return req, batches[1:]
}

// client issues check run calls with the headers the checks API expects.
type client struct {
	gh    *github.Client
	token string
}

func (c *client) create(ctx context.Context, owner, repo string, body *checkRunRequest) (*github.CheckRun, *github.Response, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("repos/%s/%s/check-runs", owner, repo), body)
}

func (c *client) update(ctx context.Context, owner, repo string, id int64, body *checkRunRequest) (*github.CheckRun, *github.Response, error) {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("repos/%s/%s/check-runs/%d", owner, repo, id), body)
}

func (c *client) do(ctx context.Context, method, path string, body *checkRunRequest) (*github.CheckRun, *github.Response, error) {
	req, err := c.gh.NewRequest(method, path, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("Authorization", "token "+c.token)

	run := new(github.CheckRun)
	resp, err := c.gh.Do(ctx, req, run)
	if err != nil {
		return nil, resp, err
	}
	return run, resp, nil
}
