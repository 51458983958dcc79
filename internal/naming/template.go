// Package naming builds library filenames from a user-configurable
// html/template (its entity escaping undone on output), falling back to a
// built-in default whenever the configured template fails to parse or
// execute.
package naming

import (
	"bytes"
	"context"
	"html"
	"html/template"

	"github.com/oshokin/trackgrab/internal/logger"
)

// DefaultTrackFilenameTemplate reproduces the "<artists> - <title>"
// format as a template; it's the fallback used whenever the configured
// template is empty or invalid.
const DefaultTrackFilenameTemplate = "{{.artists}} - {{.title}}"

// TrackFilenameBuilder renders a track's tag set into a filename stem
// (without directory or extension).
type TrackFilenameBuilder struct {
	configured *template.Template
	fallback   *template.Template
}

// NewTrackFilenameBuilder parses rawTemplate once at startup; a parse
// failure is logged and the builder falls back to the default template
// for every call rather than failing startup outright.
func NewTrackFilenameBuilder(ctx context.Context, rawTemplate string) *TrackFilenameBuilder {
	fallback := template.Must(template.New("default-track-filename").Parse(DefaultTrackFilenameTemplate))

	if rawTemplate == "" {
		return &TrackFilenameBuilder{fallback: fallback}
	}

	configured, err := template.New("track-filename").Parse(rawTemplate)
	if err != nil {
		logger.Errorf(ctx, "failed to parse track filename template, falling back to default: %v", err)
		return &TrackFilenameBuilder{fallback: fallback}
	}

	return &TrackFilenameBuilder{configured: configured, fallback: fallback}
}

// Build executes the builder's template against tags and returns the
// rendered filename stem with any HTML entity escaping the template
// engine introduced (it's text, not markup) undone.
func (b *TrackFilenameBuilder) Build(ctx context.Context, tags map[string]string) string {
	var buf bytes.Buffer

	textBuilder := b.configured
	if textBuilder != nil {
		if err := textBuilder.Execute(&buf, tags); err != nil {
			logger.Errorf(ctx, "failed to execute track filename template, using default: %v", err)
			buf.Reset()

			textBuilder = nil
		}
	}

	if textBuilder == nil {
		_ = b.fallback.Execute(&buf, tags) //nolint:errcheck // default template is always valid.
	}

	return html.UnescapeString(buf.String())
}
