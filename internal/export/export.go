// Package export moves notes to and from Markdown files with YAML frontmatter.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/starford/quill/internal/models"
)

const filePerms = 0o644

// Lister returns the notes to export.
type Lister interface {
	List(ctx context.Context) ([]models.Note, error)
}

type frontmatter struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Modified string `yaml:"modified"`
}

// Render returns the Markdown representation of n.
func Render(n models.Note) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		ID:       n.ID,
		Title:    n.Title,
		Modified: n.ModifiedAt().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("export: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(n.Content)
	if !strings.HasSuffix(n.Content, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// fileName maps a note id to a file inside dir. Ids are minted as decimal
// timestamps, but ids written through the API may contain anything.
func fileName(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return clean + ".md"
}

// ToDir writes one <id>.md file per note into dir, creating it if needed.
// Each file is replaced atomically. It returns the number of files written.
func ToDir(ctx context.Context, src Lister, dir string) (int, error) {
	notes, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("export: mkdir: %w", err)
	}
	for i, n := range notes {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		data, err := Render(n)
		if err != nil {
			return i, err
		}
		path := filepath.Join(dir, fileName(n.ID))
		if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			return i, fmt.Errorf("export: write %s: %w", path, err)
		}
		// atomic.WriteFile creates new files 0600.
		if err := os.Chmod(path, filePerms); err != nil {
			return i, fmt.Errorf("export: chmod %s: %w", path, err)
		}
	}
	return len(notes), nil
}
