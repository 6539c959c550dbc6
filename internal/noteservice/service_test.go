package noteservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/testutil"
)

func fixedClock(ms ...int64) func() time.Time {
	i := 0
	return func() time.Time {
		v := ms[len(ms)-1]
		if i < len(ms) {
			v = ms[i]
		}
		i++
		return time.UnixMilli(v)
	}
}

func TestSave_CreatesOneRecord(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, WithClock(fixedClock(1000)))
	ctx := context.Background()

	n, err := svc.Save(ctx, "", "A", "B")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n.ID != "1000" || n.Timestamp != 1000 {
		t.Errorf("id/timestamp = %q/%d, want 1000/1000", n.ID, n.Timestamp)
	}

	notes, _ := svc.List(ctx)
	want := []models.Note{{ID: "1000", Title: "A", Content: "B", Timestamp: 1000}}
	if diff := cmp.Diff(want, notes); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_EditReplacesSameID(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, WithClock(fixedClock(1000, 2000)))
	ctx := context.Background()

	created, _ := svc.Save(ctx, "", "Old", "old")
	edited, err := svc.Save(ctx, created.ID, "New", "new")
	if err != nil {
		t.Fatalf("Save edit: %v", err)
	}
	if edited.ID != created.ID {
		t.Errorf("edit changed id: %q -> %q", created.ID, edited.ID)
	}

	notes, _ := svc.List(ctx)
	want := []models.Note{{ID: "1000", Title: "New", Content: "new", Timestamp: 2000}}
	if diff := cmp.Diff(want, notes); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_RejectsEmptyFields(t *testing.T) {
	cases := []struct{ name, title, content string }{
		{"empty title", "", "body"},
		{"empty content", "title", ""},
		{"whitespace only", "   ", "\n\t"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.TestDB(t)
			svc := NewService(db)
			ctx := context.Background()

			_, err := svc.Save(ctx, "", tc.title, tc.content)
			if !errors.Is(err, apperr.ErrInvalidNote) {
				t.Fatalf("err = %v, want ErrInvalidNote", err)
			}
			if !IsInvalid(err) {
				t.Error("IsInvalid should report true")
			}
			notes, _ := svc.List(ctx)
			if len(notes) != 0 {
				t.Errorf("store changed: %+v", notes)
			}
		})
	}
}

func TestSave_TrimsInput(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db)
	n, err := svc.Save(context.Background(), "", "  Title ", "\ncontent\n")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n.Title != "Title" || n.Content != "content" {
		t.Errorf("got %q/%q", n.Title, n.Content)
	}
}

func TestMintID_UniqueWithinSameMillisecond(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, WithClock(fixedClock(500)))
	ctx := context.Background()

	seen := map[string]struct{}{}
	for range 5 {
		n, err := svc.Save(ctx, "", "t", "c")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, dup := seen[n.ID]; dup {
			t.Fatalf("duplicate id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	notes, _ := svc.List(ctx)
	if len(notes) != 5 {
		t.Errorf("len = %d, want 5", len(notes))
	}
}

func TestList_SortedNewestFirst(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	for _, n := range []models.Note{
		{ID: "a", Title: "t", Content: "c", Timestamp: 5},
		{ID: "b", Title: "t", Content: "c", Timestamp: 20},
		{ID: "c", Title: "t", Content: "c", Timestamp: 1},
	} {
		if err := db.Upsert(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	svc := NewService(db)
	notes, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []int64
	for _, n := range notes {
		got = append(got, n.Timestamp)
	}
	if diff := cmp.Diff([]int64{20, 5, 1}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestDelete_MissingIsSilent(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	_, _ = svc.Save(ctx, "", "keep", "me")

	if err := svc.Delete(ctx, "does-not-exist"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	notes, _ := svc.List(ctx)
	if len(notes) != 1 {
		t.Errorf("len = %d, want 1", len(notes))
	}
}

func TestSortNewestFirst_TieBreak(t *testing.T) {
	notes := []models.Note{
		{ID: "1", Timestamp: 7},
		{ID: "3", Timestamp: 7},
		{ID: "2", Timestamp: 9},
	}
	SortNewestFirst(notes)
	var ids []string
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"2", "3", "1"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_KeepsIDAndTimestamp(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, WithClock(fixedClock(9000)))
	ctx := context.Background()

	kept, err := svc.Import(ctx, models.Note{ID: "abc", Title: " T ", Content: "C\n", Timestamp: 42})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	minted, err := svc.Import(ctx, models.Note{Title: "x", Content: "y"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if diff := cmp.Diff(models.Note{ID: "abc", Title: "T", Content: "C", Timestamp: 42}, kept); diff != "" {
		t.Errorf("kept mismatch (-want +got):\n%s", diff)
	}
	if minted.ID != "9000" || minted.Timestamp != 9000 {
		t.Errorf("minted = %+v", minted)
	}
	if _, err := svc.Import(ctx, models.Note{Title: "only"}); !errors.Is(err, apperr.ErrInvalidNote) {
		t.Errorf("err = %v, want ErrInvalidNote", err)
	}
}

func TestSave_CreateNeverOverwritesOtherProcessNote(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	// Two services over one database stand in for two processes whose
	// clocks hand out the same millisecond.
	a := NewService(db, WithClock(fixedClock(5000)))
	b := NewService(db, WithClock(fixedClock(5000)))

	first, err := a.Save(ctx, "", "from a", "x")
	if err != nil {
		t.Fatalf("a.Save: %v", err)
	}
	second, err := b.Save(ctx, "", "from b", "y")
	if err != nil {
		t.Fatalf("b.Save: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("ids collide: %s", first.ID)
	}
	if second.ID != "5001" {
		t.Errorf("second id = %s, want 5001", second.ID)
	}

	notes, _ := a.List(ctx)
	if len(notes) != 2 {
		t.Fatalf("notes = %+v, want 2 records", notes)
	}
	got, _ := a.Get(ctx, first.ID)
	if got.Title != "from a" {
		t.Errorf("first note overwritten: %+v", got)
	}
}
