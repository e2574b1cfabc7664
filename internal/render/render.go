// Package render substitutes per-contact variables into template content.
// Rendering is pure: it never mutates its input and has no side effects.
package render

import (
	"strings"

	"github.com/example/dispatch-engine/internal/model"
)

// Vars builds the substitution table for one contact. The contact's own
// name wins over the dispatch-level default; first/last name are split on
// the first space. Extra keys are merged last and may shadow the built-ins.
func Vars(c model.ContactData, defaultName string) map[string]string {
	name := c.Name
	if name == "" {
		name = defaultName
	}
	first, last := splitName(name)

	vars := map[string]string{
		"firstName":      first,
		"lastName":       last,
		"fullName":       name,
		"formattedPhone": c.FormattedPhone,
		"phone":          c.Phone,
	}
	for k, v := range c.Extra {
		vars[k] = v
	}
	return vars
}

// String replaces every {{key}} placeholder in s with its value from vars.
// Unknown placeholders are left untouched.
func String(s string, vars map[string]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}

// Value renders v recursively: strings are substituted, slices and
// string-keyed maps are walked, everything else passes through unchanged.
func Value(v any, vars map[string]string) any {
	switch t := v.(type) {
	case string:
		return String(t, vars)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Value(item, vars)
		}
		return out
	default:
		return v
	}
}

// Content renders every textual field of a template content payload.
func Content(c model.Content, vars map[string]string) model.Content {
	c.Text = String(c.Text, vars)
	c.Caption = String(c.Caption, vars)
	c.FileName = String(c.FileName, vars)
	return c
}

// Steps renders a sequence's steps for one contact.
func Steps(steps []model.SequenceStep, vars map[string]string) []model.SequenceStep {
	out := make([]model.SequenceStep, len(steps))
	for i, step := range steps {
		step.Content = Content(step.Content, vars)
		out[i] = step
	}
	return out
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
