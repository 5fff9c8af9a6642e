/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scm

import (
	"errors"
	"fmt"
)

// Reason classifies a ResolutionError.
type Reason string

const (
	ReasonNoSource            Reason = "NoSource"
	ReasonNoHead              Reason = "NoHead"
	ReasonNoRevision          Reason = "NoRevision"
	ReasonUnsupportedRevision Reason = "UnsupportedRevision"
	// ReasonNoCredential means a credential id is declared but unknown to
	// the store. A source without a credential id is anonymous, not an error.
	ReasonNoCredential Reason = "NoCredential"
	// ReasonCredentialExchange means the credential exists but could not be
	// exchanged for a token.
	ReasonCredentialExchange Reason = "CredentialExchange"
	// ReasonUnreachable wraps failures talking to the hosting platform.
	ReasonUnreachable Reason = "Unreachable"
)

// ResolutionError reports why the checks context of a build could not be
// resolved.
type ResolutionError struct {
	Reason Reason
	// Job is the job being resolved, when known.
	Job string
	Err error
}

func (e *ResolutionError) Error() string {
	msg := "checks context"
	if e.Job != "" {
		msg += " of " + e.Job
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is matches another *ResolutionError with the same Reason, so that
// errors.Is(err, &ResolutionError{Reason: ReasonNoSource}) works.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Reason == e.Reason
}

// ReasonOf returns the Reason of the ResolutionError in err's chain, or "".
func ReasonOf(err error) Reason {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
