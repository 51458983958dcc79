package naming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTrackFilenameBuilder_CustomTemplate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	builder := NewTrackFilenameBuilder(ctx, "{{.artists}} -- {{.title}}")

	result := builder.Build(ctx, map[string]string{"artists": "Test Artist", "title": "Test Track"})
	assert.Equal(t, "Test Artist -- Test Track", result)
}

func TestNewTrackFilenameBuilder_EmptyTemplateUsesDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	builder := NewTrackFilenameBuilder(ctx, "")

	result := builder.Build(ctx, map[string]string{"artists": "Test Artist", "title": "Test Track"})
	assert.Equal(t, "Test Artist - Test Track", result)
}

func TestNewTrackFilenameBuilder_InvalidTemplateFallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	builder := NewTrackFilenameBuilder(ctx, "{{.invalidTemplate")

	result := builder.Build(ctx, map[string]string{"artists": "Test Artist", "title": "Test Track"})
	assert.Equal(t, "Test Artist - Test Track", result)
}

func TestTrackFilenameBuilder_UnescapesHTMLEntities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	builder := NewTrackFilenameBuilder(ctx, "{{.artists}} & {{.title}}")

	result := builder.Build(ctx, map[string]string{"artists": "Simon & Garfunkel", "title": "Mrs. Robinson"})
	assert.Equal(t, "Simon & Garfunkel & Mrs. Robinson", result)
}
