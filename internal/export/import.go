package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
)

// Importer writes notes read from files.
type Importer interface {
	Import(ctx context.Context, n models.Note) (models.Note, error)
}

// Skipped records a file that was not imported.
type Skipped struct {
	Path string
	Err  error
}

// FromDir reads every *.md file directly inside dir and imports it. Files
// written by ToDir keep their id and modification time. A file without
// frontmatter takes its title from the first H1 heading. Files that cannot
// be read or that fail validation are reported in skipped and do not stop
// the run.
func FromDir(ctx context.Context, dst Importer, dir string) (imported int, skipped []Skipped, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil, fmt.Errorf("export: read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return imported, skipped, err
		}
		path := filepath.Join(dir, e.Name())
		if err := importFile(ctx, dst, path); err != nil {
			skipped = append(skipped, Skipped{Path: path, Err: err})
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

func importFile(ctx context.Context, dst Importer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	n := models.Note{
		ID:      res.ID,
		Title:   res.Title,
		Content: res.Body,
	}
	if !res.Modified.IsZero() {
		n.Timestamp = res.Modified.UnixMilli()
	}
	_, err = dst.Import(ctx, n)
	return err
}
