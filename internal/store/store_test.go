package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "quill-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := db.Upsert(ctx, models.Note{ID: "1", Title: "t", Content: "c", Timestamp: 1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	notes, err := db.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("len = %d after reopen, want 1", len(notes))
	}
}

func TestOpen_BadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db")); err == nil {
		t.Fatal("expected error for unreachable path")
	}
}

func TestListAll_Empty(t *testing.T) {
	db := testDB(t)
	notes, err := db.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Errorf("notes = %#v, want empty non-nil slice", notes)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, models.Note{ID: "42", Title: "Old", Content: "old body", Timestamp: 10})
	_ = db.Upsert(ctx, models.Note{ID: "42", Title: "New", Content: "new body", Timestamp: 20})

	notes, _ := db.ListAll(ctx)
	if len(notes) != 1 {
		t.Fatalf("len = %d, want 1", len(notes))
	}
	want := models.Note{ID: "42", Title: "New", Content: "new body", Timestamp: 20}
	if notes[0] != want {
		t.Errorf("got %+v, want %+v", notes[0], want)
	}
}

func TestCreate_ConflictKeepsExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Create(ctx, models.Note{ID: "7", Title: "First", Content: "a", Timestamp: 7}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := db.Create(ctx, models.Note{ID: "7", Title: "Second", Content: "b", Timestamp: 8})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	n, _ := db.Get(ctx, "7")
	if n.Title != "First" {
		t.Errorf("existing note overwritten: %+v", n)
	}
	if err := db.Create(ctx, models.Note{Title: "t", Content: "c"}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestUpsert_EmptyID(t *testing.T) {
	db := testDB(t)
	if err := db.Upsert(context.Background(), models.Note{Title: "t", Content: "c"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, models.Note{ID: "a", Title: "A", Content: "B", Timestamp: 5})

	n, err := db.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.Title != "A" || n.Content != "B" || n.Timestamp != 5 {
		t.Errorf("got %+v", n)
	}

	if _, err := db.Get(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing id err = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, models.Note{ID: "x", Title: "t", Content: "c", Timestamp: 1})

	if err := db.Remove(ctx, "x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	notes, _ := db.ListAll(ctx)
	if len(notes) != 0 {
		t.Errorf("len = %d after remove, want 0", len(notes))
	}
}

func TestRemove_MissingIsNoop(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, models.Note{ID: "keep", Title: "t", Content: "c", Timestamp: 1})

	if err := db.Remove(ctx, "ghost"); err != nil {
		t.Fatalf("Remove missing id: %v", err)
	}
	notes, _ := db.ListAll(ctx)
	if len(notes) != 1 || notes[0].ID != "keep" {
		t.Errorf("store changed: %+v", notes)
	}
}

func TestUpsertsAndRemovesCount(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ids := []string{"1", "2", "3", "4", "5"}
	for i, id := range ids {
		_ = db.Upsert(ctx, models.Note{ID: id, Title: "t", Content: "c", Timestamp: int64(i)})
	}
	for _, id := range ids[:2] {
		_ = db.Remove(ctx, id)
	}
	notes, _ := db.ListAll(ctx)
	if len(notes) != len(ids)-2 {
		t.Errorf("len = %d, want %d", len(notes), len(ids)-2)
	}
}

func TestUnavailable_WrapsOpenError(t *testing.T) {
	cause := errors.New("disk gone")
	var s Store = Unavailable{Err: cause}
	ctx := context.Background()

	if _, err := s.ListAll(ctx); !errors.Is(err, cause) {
		t.Errorf("ListAll err = %v", err)
	}
	if err := s.Create(ctx, models.Note{ID: "1"}); !errors.Is(err, cause) {
		t.Errorf("Create err = %v", err)
	}
	if err := s.Upsert(ctx, models.Note{ID: "1"}); !errors.Is(err, cause) {
		t.Errorf("Upsert err = %v", err)
	}
	if err := s.Remove(ctx, "1"); !errors.Is(err, cause) {
		t.Errorf("Remove err = %v", err)
	}
	if _, err := s.Get(ctx, "1"); !errors.Is(err, cause) {
		t.Errorf("Get err = %v", err)
	}
}
