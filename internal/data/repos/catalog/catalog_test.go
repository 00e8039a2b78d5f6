package catalog

import (
	"context"
	"testing"

	"github.com/yungbote/coursehub-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursehub-backend/internal/domain"
)

func TestCatalogRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewCatalogRepo(db, testutil.Logger(t))

	item := &types.CatalogItem{
		ID:    "course_go",
		Kind:  types.KindCourse,
		Slug:  "go",
		Title: "Go",
		Lessons: []types.CatalogLesson{
			{ID: "go-2", Position: 2, Title: "Third"},
			{ID: "go-0", Position: 0, Title: "First"},
			{ID: "go-1", Position: 1, Title: "Second"},
		},
	}
	if err := repo.Upsert(ctx, tx, item); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.GetBySlug(ctx, tx, types.KindCourse, "go")
	if err != nil || got == nil {
		t.Fatalf("GetBySlug: err=%v item=%+v", err, got)
	}
	ids := got.LessonIDs()
	if len(ids) != 3 || ids[0] != "go-0" || ids[1] != "go-1" || ids[2] != "go-2" {
		t.Fatalf("GetBySlug: lessons not in position order: %v", ids)
	}

	if other, err := repo.GetBySlug(ctx, tx, types.KindWorkshop, "go"); err != nil || other != nil {
		t.Fatalf("GetBySlug (wrong kind): err=%v item=%+v", err, other)
	}

	item.Title = "Go, revised"
	item.Lessons = []types.CatalogLesson{{ID: "go-0", Position: 0, Title: "Only"}}
	if err := repo.Upsert(ctx, tx, item); err != nil {
		t.Fatalf("Upsert (replace): %v", err)
	}
	got, err = repo.GetByID(ctx, tx, "course_go")
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v", err)
	}
	if got.Title != "Go, revised" || len(got.Lessons) != 1 {
		t.Fatalf("GetByID: unexpected item %+v", got)
	}

	testutil.SeedCourse(t, ctx, tx, "rust", 2, true)
	rows, err := repo.GetByIDs(ctx, tx, []string{"course_go", "course_rust", "course_none"})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
}
