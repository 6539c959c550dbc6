// Package parser reads note files: Markdown with optional YAML frontmatter.
package parser

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	ID          string
	Title       string
	// Modified is zero when the frontmatter carries no usable time.
	Modified time.Time
}

// Parse extracts frontmatter and body from raw Markdown bytes. The title is
// the frontmatter "title", else the first H1 heading. Parse never fails on
// malformed frontmatter; the whole input is treated as body instead.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		ID:          stringField(fm, "id"),
		Title:       deriveTitle(fm, body),
		Modified:    timeField(fm, "modified"),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}

	return fm, body
}

func stringField(fm map[string]any, key string) string {
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		// Unquoted numeric ids decode as integers.
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func timeField(fm map[string]any, key string) time.Time {
	switch v := fm[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
