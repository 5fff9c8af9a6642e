/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits imposed by the Checks API on action buttons.
const (
	maxActionLabel       = 20
	maxActionDescription = 40
	maxActionIdentifier  = 20
)

// Action renders a button on the check run page. When the button is
// clicked the platform sends the identifier back through a webhook.
type Action struct {
	label       string
	description string
	identifier  string
}

// NewAction validates and returns an Action.
func NewAction(label, description, identifier string) (Action, error) {
	for _, f := range []struct {
		name, value string
		max         int
	}{
		{"label", label, maxActionLabel},
		{"description", description, maxActionDescription},
		{"identifier", identifier, maxActionIdentifier},
	} {
		if strings.TrimSpace(f.value) == "" {
			return Action{}, fmt.Errorf("%w: action %s is required", ErrInvalidArgument, f.name)
		}
		if n := utf8.RuneCountInString(f.value); n > f.max {
			return Action{}, fmt.Errorf("%w: action %s is %d characters, at most %d allowed", ErrInvalidArgument, f.name, n, f.max)
		}
	}
	return Action{label: label, description: description, identifier: identifier}, nil
}

func (a Action) Label() string       { return a.label }
func (a Action) Description() string { return a.description }
func (a Action) Identifier() string  { return a.identifier }
