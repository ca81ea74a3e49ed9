package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valter-silva-au/comms-triage/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrNoFrontmatter marks a document without a frontmatter header. The body
// is still returned so callers can salvage the content.
var ErrNoFrontmatter = errors.New("no frontmatter delimiter found")

// ErrMalformedMeta marks a document whose frontmatter is not valid YAML.
// This is a data error: retrying the read will not fix it.
var ErrMalformedMeta = errors.New("malformed frontmatter")

// ParseDocument splits a vault document into its typed frontmatter header
// and markdown body. This is the only codec for vault metadata; nothing
// else interprets the header bytes.
func ParseDocument(content string) (models.DocMeta, string, error) {
	var meta models.DocMeta

	if !strings.HasPrefix(content, "---\n") {
		return meta, content, ErrNoFrontmatter
	}

	rest := content[4:] // Skip opening "---\n"
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		// Try end-of-file delimiter.
		if strings.HasSuffix(rest, "\n---") {
			idx = len(rest) - 4
		} else {
			return meta, content, ErrNoFrontmatter
		}
	}

	header := rest[:idx]
	// idx+4 skips past "\n---\n"; trim any leading newlines separating
	// the closing delimiter from the body content.
	body := strings.TrimLeft(rest[idx+4:], "\n")

	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return meta, body, fmt.Errorf("%w: %v", ErrMalformedMeta, err)
	}

	return meta, body, nil
}

// RenderDocument produces the canonical on-disk form: YAML frontmatter
// between --- fences followed by the markdown body.
func RenderDocument(meta models.DocMeta, body string) (string, error) {
	header, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n\n")
	sb.WriteString(body)

	return sb.String(), nil
}
