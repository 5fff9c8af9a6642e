/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"fmt"
	"strings"
)

// Annotation points at a range of lines in a file of the checked commit.
type Annotation struct {
	path        string
	startLine   int
	endLine     int
	level       AnnotationLevel
	message     string
	startColumn int
	endColumn   int
	title       string
	rawDetails  string
}

func (a Annotation) Path() string               { return a.path }
func (a Annotation) StartLine() int             { return a.startLine }
func (a Annotation) EndLine() int               { return a.endLine }
func (a Annotation) Level() AnnotationLevel     { return a.level }
func (a Annotation) Message() string            { return a.message }
func (a Annotation) Title() (string, bool)      { return a.title, a.title != "" }
func (a Annotation) RawDetails() (string, bool) { return a.rawDetails, a.rawDetails != "" }

// StartColumn returns the first column of the annotation, if one was set.
func (a Annotation) StartColumn() (int, bool) { return a.startColumn, a.startColumn > 0 }

// EndColumn returns the last column of the annotation, if one was set.
func (a Annotation) EndColumn() (int, bool) { return a.endColumn, a.endColumn > 0 }

// AnnotationBuilder accumulates the fields of an Annotation.
type AnnotationBuilder struct {
	a Annotation
}

// NewAnnotationBuilder starts an annotation with its required fields.
func NewAnnotationBuilder(path string, startLine, endLine int, level AnnotationLevel, message string) *AnnotationBuilder {
	return &AnnotationBuilder{a: Annotation{
		path:      path,
		startLine: startLine,
		endLine:   endLine,
		level:     level,
		message:   message,
	}}
}

// WithColumns sets the column range. Columns are only accepted on
// single-line annotations; Build fails otherwise.
func (b *AnnotationBuilder) WithColumns(start, end int) *AnnotationBuilder {
	b.a.startColumn, b.a.endColumn = start, end
	return b
}

func (b *AnnotationBuilder) WithStartColumn(col int) *AnnotationBuilder {
	b.a.startColumn = col
	return b
}

func (b *AnnotationBuilder) WithEndColumn(col int) *AnnotationBuilder {
	b.a.endColumn = col
	return b
}

func (b *AnnotationBuilder) WithTitle(title string) *AnnotationBuilder {
	b.a.title = title
	return b
}

func (b *AnnotationBuilder) WithRawDetails(details string) *AnnotationBuilder {
	b.a.rawDetails = details
	return b
}

// Build validates and returns the annotation.
func (b *AnnotationBuilder) Build() (Annotation, error) {
	a := b.a
	switch {
	case strings.TrimSpace(a.path) == "":
		return Annotation{}, fmt.Errorf("%w: annotation path is required", ErrInvalidArgument)
	case strings.TrimSpace(a.message) == "":
		return Annotation{}, fmt.Errorf("%w: annotation message is required", ErrInvalidArgument)
	case !a.level.valid():
		return Annotation{}, fmt.Errorf("%w: unknown annotation level %d", ErrInvalidArgument, a.level)
	case a.startLine < 1:
		return Annotation{}, fmt.Errorf("%w: start line must be positive, got %d", ErrInvalidArgument, a.startLine)
	case a.endLine < a.startLine:
		return Annotation{}, fmt.Errorf("%w: end line %d is before start line %d", ErrInvalidArgument, a.endLine, a.startLine)
	case a.startColumn < 0 || a.endColumn < 0:
		return Annotation{}, fmt.Errorf("%w: columns must not be negative", ErrInvalidArgument)
	}

	if a.startColumn > 0 || a.endColumn > 0 {
		if a.startLine != a.endLine {
			return Annotation{}, fmt.Errorf("%w: columns are only valid when start line (%d) equals end line (%d)",
				ErrInvalidArgument, a.startLine, a.endLine)
		}
		if a.startColumn > 0 && a.endColumn > 0 && a.endColumn < a.startColumn {
			return Annotation{}, fmt.Errorf("%w: end column %d is before start column %d",
				ErrInvalidArgument, a.endColumn, a.startColumn)
		}
	}
	return a, nil
}
