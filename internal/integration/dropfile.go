// Package integration contains the source adapters that bridge external
// channels into the triage engine. Both shipped adapters are file backed:
// inbound messages arrive as markdown drop files with YAML frontmatter and
// outbound replies are rendered the same way into an outbox directory.
package integration

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// splitDropFile separates a drop file into its YAML frontmatter and body.
// The frontmatter is delimited by "---" lines.
func splitDropFile(content string) (string, string, error) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content, fmt.Errorf("no frontmatter delimiter found")
	}

	rest := content[4:]
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		// Try end-of-file delimiter.
		if strings.HasSuffix(rest, "\n---") {
			idx = len(rest) - 4
		} else {
			return "", content, fmt.Errorf("no closing frontmatter delimiter found")
		}
	}

	fmStr := rest[:idx]
	body := strings.TrimLeft(rest[idx+4:], "\n")
	return fmStr, body, nil
}

// renderDropFile produces a markdown string with YAML frontmatter.
func renderDropFile(fm any, body string) (string, error) {
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fmBytes)
	sb.WriteString("---\n\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// dropDateFormats are accepted values for the date frontmatter key, most
// specific first.
var dropDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDropDate parses a frontmatter date, falling back to the given
// default when the value is empty or unrecognized.
func parseDropDate(value string, fallback time.Time) time.Time {
	for _, layout := range dropDateFormats {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return fallback
}

// dropStatusPending reports whether a frontmatter status marks a file as
// still waiting to be picked up. Unknown values count as pending so a
// typoed status is surfaced rather than silently dropped.
func dropStatusPending(status string) bool {
	switch strings.ToLower(status) {
	case "processed", "sent", "archived":
		return false
	}
	return true
}
