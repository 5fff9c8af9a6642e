/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"fmt"
	"slices"
	"strings"
)

// Image is a picture attached to a check run output.
type Image struct {
	alt      string
	imageURL string
	caption  string
}

// NewImage validates and returns an Image. The caption is optional.
func NewImage(alt, imageURL, caption string) (Image, error) {
	if strings.TrimSpace(alt) == "" {
		return Image{}, fmt.Errorf("%w: image alt text is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(imageURL) == "" {
		return Image{}, fmt.Errorf("%w: image URL is required", ErrInvalidArgument)
	}
	return Image{alt: alt, imageURL: imageURL, caption: caption}, nil
}

func (i Image) Alt() string             { return i.alt }
func (i Image) ImageURL() string        { return i.imageURL }
func (i Image) Caption() (string, bool) { return i.caption, i.caption != "" }

// Output is the rich content shown on the check run page.
type Output struct {
	title       string
	summary     string
	text        string
	annotations []Annotation
	images      []Image
}

func (o Output) Title() string        { return o.title }
func (o Output) Summary() string      { return o.summary }
func (o Output) Text() (string, bool) { return o.text, o.text != "" }

// Annotations returns a copy of the annotations, in order.
func (o Output) Annotations() []Annotation { return slices.Clone(o.annotations) }

// Images returns a copy of the images, in order.
func (o Output) Images() []Image { return slices.Clone(o.images) }

// OutputBuilder accumulates the fields of an Output.
type OutputBuilder struct {
	title, summary, text string
	annotations          []Annotation
	images               []Image
}

// NewOutputBuilder starts an output with its required title and summary.
func NewOutputBuilder(title, summary string) *OutputBuilder {
	return &OutputBuilder{title: title, summary: summary}
}

func (b *OutputBuilder) WithText(text string) *OutputBuilder {
	b.text = text
	return b
}

// WithAnnotations appends annotations, keeping their order.
func (b *OutputBuilder) WithAnnotations(annotations ...Annotation) *OutputBuilder {
	b.annotations = append(b.annotations, annotations...)
	return b
}

// WithImages appends images, keeping their order.
func (b *OutputBuilder) WithImages(images ...Image) *OutputBuilder {
	b.images = append(b.images, images...)
	return b
}

// Build validates and returns the output. The returned value does not share
// any backing storage with the builder.
func (b *OutputBuilder) Build() (Output, error) {
	if strings.TrimSpace(b.title) == "" {
		return Output{}, fmt.Errorf("%w: output title is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(b.summary) == "" {
		return Output{}, fmt.Errorf("%w: output summary is required", ErrInvalidArgument)
	}
	return Output{
		title:       b.title,
		summary:     b.summary,
		text:        b.text,
		annotations: slices.Clone(b.annotations),
		images:      slices.Clone(b.images),
	}, nil
}
