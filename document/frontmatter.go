package document

import (
	"bytes"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/docstore/errors"
)

var fence = []byte("---")

// ParseFrontmatter splits a leading YAML block fenced by "---" lines from the
// body. Content without a well-formed block is returned whole with nil meta.
func ParseFrontmatter(content []byte) (map[string]any, []byte) {
	rest, ok := cutFenceLine(content)
	if !ok {
		return nil, content
	}

	for offset := 0; offset < len(rest); {
		lineEnd := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		next := len(rest)
		if lineEnd >= 0 {
			line = rest[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		} else {
			line = rest[offset:]
		}

		if bytes.Equal(bytes.TrimRight(line, "\r"), fence) {
			var meta map[string]any
			if err := yaml.Unmarshal(rest[:offset], &meta); err != nil {
				return nil, content
			}
			return meta, rest[next:]
		}
		offset = next
	}
	return nil, content
}

func cutFenceLine(content []byte) ([]byte, bool) {
	if rest, ok := bytes.CutPrefix(content, []byte("---\n")); ok {
		return rest, true
	}
	if rest, ok := bytes.CutPrefix(content, []byte("---\r\n")); ok {
		return rest, true
	}
	return nil, false
}

// RenderFrontmatter prefixes body with meta as a fenced YAML block, keeping
// the order of meta.
func RenderFrontmatter(meta yaml.MapSlice, body []byte) ([]byte, error) {
	if len(meta) == 0 {
		return body, nil
	}

	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to render frontmatter")
	}

	var buf bytes.Buffer
	buf.Write(fence)
	buf.WriteByte('\n')
	buf.Write(header)
	buf.Write(fence)
	buf.WriteString("\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
