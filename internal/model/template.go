package model

import (
	"errors"
	"fmt"
	"time"
)

type TemplateType string

const (
	TemplateText         TemplateType = "text"
	TemplateImage        TemplateType = "image"
	TemplateImageCaption TemplateType = "image_caption"
	TemplateVideo        TemplateType = "video"
	TemplateVideoCaption TemplateType = "video_caption"
	TemplateAudio        TemplateType = "audio"
	TemplateFile         TemplateType = "file"
	TemplateSequence     TemplateType = "sequence"
)

func (t TemplateType) Valid() bool {
	switch t {
	case TemplateText, TemplateImage, TemplateImageCaption, TemplateVideo,
		TemplateVideoCaption, TemplateAudio, TemplateFile, TemplateSequence:
		return true
	}
	return false
}

// Content is the payload of a non-sequence template (or of a single
// sequence step). Which fields are meaningful depends on the template type:
// text uses Text, media types use URL plus the optional caption/file fields.
type Content struct {
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// SequenceStep is one entry of a sequence template. Delay applies before
// the step is sent, except for the first step of a sequence.
type SequenceStep struct {
	Type      TemplateType `json:"type"`
	Content   Content      `json:"content"`
	Delay     int          `json:"delay"`
	DelayUnit DelayUnit    `json:"delayUnit"`
}

// DelayDuration converts the step delay into a time.Duration.
func (s SequenceStep) DelayDuration() time.Duration {
	return s.DelayUnit.Duration(s.Delay)
}

// Template is an immutable content snapshot referenced by dispatches.
// Steps is populated only when Type is sequence; Content otherwise.
type Template struct {
	ID        string
	OwnerID   string
	Name      string
	Type      TemplateType
	Content   Content
	Steps     []SequenceStep
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrUnknownTemplateType = errors.New("unknown template type")
	ErrEmptyContent        = errors.New("template content is empty")
)

// Validate checks the tagged content against the declared type. The store
// rejects malformed templates here so the runner only ever sees well-formed
// content.
func (t *Template) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTemplateType, t.Type)
	}
	if t.Type == TemplateSequence {
		return validateSequence(t.Steps)
	}
	return validateContent(t.Type, t.Content)
}

func validateContent(typ TemplateType, c Content) error {
	switch typ {
	case TemplateText:
		if c.Text == "" {
			return ErrEmptyContent
		}
	default:
		if c.URL == "" {
			return fmt.Errorf("%w: media url required for %q", ErrEmptyContent, typ)
		}
	}
	return nil
}

func validateSequence(steps []SequenceStep) error {
	if len(steps) < 2 {
		return errors.New("sequence requires at least 2 steps")
	}
	kinds := map[TemplateType]struct{}{}
	for i, step := range steps {
		if step.Type == TemplateSequence {
			return fmt.Errorf("step %d: sequences cannot nest", i)
		}
		if !step.Type.Valid() {
			return fmt.Errorf("step %d: %w: %q", i, ErrUnknownTemplateType, step.Type)
		}
		if step.Delay < 0 {
			return fmt.Errorf("step %d: delay must be >= 0", i)
		}
		if err := validateContent(step.Type, step.Content); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		kinds[step.Type] = struct{}{}
	}
	if len(kinds) < 2 {
		return errors.New("sequence requires at least 2 distinct step types")
	}
	return nil
}
