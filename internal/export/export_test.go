package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/quill/internal/models"
)

type staticLister []models.Note

func (s staticLister) List(context.Context) ([]models.Note, error) { return s, nil }

func TestRender(t *testing.T) {
	n := models.Note{ID: "1700000000000", Title: "Hello: world", Content: "body text", Timestamp: 1700000000000}
	data, err := Render(n)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "---\n") || !strings.HasSuffix(s, "body text\n") {
		t.Fatalf("unexpected layout:\n%s", s)
	}

	parts := bytes.SplitN(data, []byte("---\n"), 3)
	var fm frontmatter
	if err := yaml.Unmarshal(parts[1], &fm); err != nil {
		t.Fatalf("frontmatter not valid YAML: %v", err)
	}
	if fm.ID != n.ID || fm.Title != n.Title || fm.Modified != "2023-11-14T22:13:20Z" {
		t.Errorf("frontmatter = %+v", fm)
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"1700000000000": "1700000000000.md",
		"../etc/passwd": "___etc_passwd.md",
		"a b":           "a_b.md",
	}
	for id, want := range cases {
		if got := fileName(id); got != want {
			t.Errorf("fileName(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	notes := staticLister{
		{ID: "1", Title: "one", Content: "first", Timestamp: 1},
		{ID: "2", Title: "two", Content: "second\n", Timestamp: 2},
	}
	n, err := ToDir(context.Background(), notes, dir)
	if err != nil {
		t.Fatalf("ToDir: %v", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2.md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(string(data), "\nsecond\n") {
		t.Errorf("content = %q", data)
	}
	info, err := os.Stat(filepath.Join(dir, "2.md"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("perm = %o, want 644", perm)
	}

	// Re-export overwrites in place.
	if _, err := ToDir(context.Background(), notes[:1], dir); err != nil {
		t.Fatalf("second ToDir: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestFromDir_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := staticLister{
		{ID: "1700000000000", Title: "one", Content: "first", Timestamp: 1700000000000},
		{ID: "1700000005000", Title: "two: colon", Content: "# heading\n\nsecond", Timestamp: 1700000005000},
	}
	if _, err := ToDir(context.Background(), src, dir); err != nil {
		t.Fatalf("ToDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plain.md"), []byte("# Plain\n\nno frontmatter\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.md"), []byte("no title here"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("# ignored\nx"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := &recordingImporter{}
	imported, skipped, err := FromDir(context.Background(), dst, dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	if imported != 3 {
		t.Errorf("imported = %d, want 3", imported)
	}
	if len(skipped) != 1 || filepath.Base(skipped[0].Path) != "empty.md" {
		t.Errorf("skipped = %+v", skipped)
	}

	byID := map[string]models.Note{}
	for _, n := range dst.notes {
		byID[n.ID] = n
	}
	for _, want := range src {
		got := byID[want.ID]
		if got.Title != want.Title || strings.TrimSpace(got.Content) != want.Content || got.Timestamp != want.Timestamp {
			t.Errorf("round trip %s: got %+v", want.ID, got)
		}
	}
	if got := byID[""]; got.Title != "Plain" {
		t.Errorf("plain file = %+v", got)
	}
}

type recordingImporter struct {
	notes []models.Note
}

func (r *recordingImporter) Import(_ context.Context, n models.Note) (models.Note, error) {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Content) == "" {
		return models.Note{}, errors.New("invalid")
	}
	r.notes = append(r.notes, n)
	return n, nil
}
