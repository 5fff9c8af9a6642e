/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every validation failure in this package.
var ErrInvalidArgument = errors.New("invalid argument")

// Status is the lifecycle state of a single check run.
//
// The values are ordered: a check run only ever moves forward, and the
// hosting platform rejects regressions.
type Status int

const (
	StatusNone Status = iota
	StatusQueued
	StatusInProgress
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusQueued:
		return "QUEUED"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for st := StatusNone; st <= StatusCompleted; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusNone, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

// Before reports whether s comes earlier than other in the check run lifecycle.
func (s Status) Before(other Status) bool { return s < other }

// Conclusion is the final outcome of a completed check run.
type Conclusion int

const (
	ConclusionNone Conclusion = iota
	ConclusionActionRequired
	ConclusionSkipped
	ConclusionCanceled
	ConclusionTimeOut
	ConclusionFailure
	ConclusionNeutral
	ConclusionSuccess
)

func (c Conclusion) String() string {
	switch c {
	case ConclusionNone:
		return "NONE"
	case ConclusionActionRequired:
		return "ACTION_REQUIRED"
	case ConclusionSkipped:
		return "SKIPPED"
	case ConclusionCanceled:
		return "CANCELED"
	case ConclusionTimeOut:
		return "TIME_OUT"
	case ConclusionFailure:
		return "FAILURE"
	case ConclusionNeutral:
		return "NEUTRAL"
	case ConclusionSuccess:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// AnnotationLevel is the severity of an annotation.
type AnnotationLevel int

const (
	AnnotationLevelNotice AnnotationLevel = iota + 1
	AnnotationLevelWarning
	AnnotationLevelFailure
)

func (l AnnotationLevel) String() string {
	switch l {
	case AnnotationLevelNotice:
		return "NOTICE"
	case AnnotationLevelWarning:
		return "WARNING"
	case AnnotationLevelFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

func (l AnnotationLevel) valid() bool {
	return l >= AnnotationLevelNotice && l <= AnnotationLevelFailure
}
