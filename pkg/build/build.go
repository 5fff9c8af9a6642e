/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package build describes the builds of the CI orchestrator as seen by the
// checks bridge, along with the collaborator interfaces the orchestrator
// provides: looking builds up and scheduling new ones.
package build

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Result is the outcome of a finished build. The zero value means the
// outcome is unknown.
type Result string

const (
	ResultUnknown  Result = ""
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
	ResultFailure  Result = "FAILURE"
	ResultAborted  Result = "ABORTED"
	ResultNotBuilt Result = "NOT_BUILT"
)

// Build is a handle on one build of a job.
type Build struct {
	// Job is the full name of the job, e.g. "repo/PR-1".
	Job string `json:"job"`

	// Number is the build number within the job.
	Number int `json:"number"`

	// URL is where humans can look at the build.
	URL string `json:"url,omitempty"`

	// Parameters are the parameters the build ran with.
	Parameters map[string]string `json:"parameters,omitempty"`

	// Causes records why the build was started.
	Causes []Cause `json:"causes,omitempty"`

	Result Result `json:"result,omitempty"`
}

// ID is the identifier of the build, written as the external id of every
// check run published for it.
func (b *Build) ID() string {
	return fmt.Sprintf("%s#%d", b.Job, b.Number)
}

func (b *Build) String() string { return b.ID() }

// Clone returns a deep copy of the build.
func (b *Build) Clone() *Build {
	c := *b
	c.Parameters = maps.Clone(b.Parameters)
	c.Causes = slices.Clone(b.Causes)
	return &c
}

// CauseType identifies the kind of a Cause.
type CauseType string

const (
	CauseRerun CauseType = "rerun"
)

// Cause records why a build was scheduled.
type Cause struct {
	Type   CauseType `json:"type"`
	User   string    `json:"user,omitempty"`
	Branch string    `json:"branch,omitempty"`
}

// RerunCause is the cause attached to builds scheduled because a user asked
// the hosting platform to re-run a check.
func RerunCause(login, branch string) Cause {
	return Cause{
		Type:   CauseRerun,
		User:   login,
		Branch: branch,
	}
}

// ShortDescription renders the cause for display.
func (c Cause) ShortDescription() string {
	switch c.Type {
	case CauseRerun:
		if c.Branch == "" {
			return fmt.Sprintf("Rerun requested by %s", c.User)
		}
		return fmt.Sprintf("Rerun requested by %s on %s", c.User, c.Branch)
	default:
		return string(c.Type)
	}
}

// Ticket identifies a build request accepted by a Scheduler.
type Ticket struct {
	ID  string
	Job string
}

// Scheduler enqueues new builds.
type Scheduler interface {
	Schedule(ctx context.Context, job string, params map[string]string, cause Cause) (Ticket, error)
}

// ErrForbidden is returned by a Lookup asked to browse builds by a principal
// other than System.
var ErrForbidden = errors.New("principal may not browse builds")

// Lookup finds builds by the identifier returned from Build.ID.
// Implementations only serve contexts running as System; see AsSystem.
type Lookup interface {
	Lookup(ctx context.Context, id string) (*Build, bool, error)
}
