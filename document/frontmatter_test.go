package document_test

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/docstore/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	meta, body := document.ParseFrontmatter([]byte("---\ntitle: Hello\ntags:\n  - a\n  - b\n---\nBody text\n"))
	require.NotNil(t, meta)
	assert.Equal(t, "Hello", meta["title"])
	assert.Equal(t, []any{"a", "b"}, meta["tags"])
	assert.Equal(t, "Body text\n", string(body))
}

func TestParseFrontmatterWithoutBlock(t *testing.T) {
	for _, content := range []string{
		"plain text",
		"---\nnever closed",
		"--- not a fence\n---\n",
		"---\ntags: [a, b\n---\nbody",
	} {
		meta, body := document.ParseFrontmatter([]byte(content))
		assert.Nil(t, meta, content)
		assert.Equal(t, content, string(body))
	}
}

func TestRenderFrontmatterRoundTrip(t *testing.T) {
	rendered, err := document.RenderFrontmatter(yaml.MapSlice{
		{Key: "title", Value: "Example Domain"},
		{Key: "source_url", Value: "https://example.com"},
	}, []byte("# Example\n"))
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Example Domain\nsource_url: https://example.com\n---\n\n# Example\n", string(rendered))

	meta, body := document.ParseFrontmatter(rendered)
	assert.Equal(t, "Example Domain", meta["title"])
	assert.Equal(t, "\n# Example\n", string(body))

	plain, err := document.RenderFrontmatter(nil, []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, "body", string(plain))
}
