package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, u *types.User) *types.User {
	tb.Helper()
	if u.ID == "" {
		u.ID = "user_" + uuid.NewString()
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedCourse creates a course catalog entry with n lessons named <slug>-l0..l(n-1).
func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string, n int, isFree bool) *types.CatalogItem {
	tb.Helper()
	c := &types.CatalogItem{
		ID:     "course_" + slug,
		Kind:   types.KindCourse,
		Slug:   slug,
		Title:  "Course " + slug,
		IsFree: isFree,
	}
	for i := 0; i < n; i++ {
		c.Lessons = append(c.Lessons, types.CatalogLesson{
			ID:       fmt.Sprintf("%s-l%d", slug, i),
			CourseID: c.ID,
			Position: i,
			Title:    fmt.Sprintf("Lesson %d", i+1),
		})
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedLessonProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, courseID, lessonID string, completed bool) *types.LessonProgress {
	tb.Helper()
	now := time.Now().UTC()
	lp := &types.LessonProgress{
		ID:             uuid.New(),
		UserID:         userID,
		CourseID:       courseID,
		LessonID:       lessonID,
		Completed:      completed,
		LastAccessedAt: now,
	}
	if completed {
		lp.CompletedAt = &now
		lp.ProgressPercentage = 100
	}
	if err := tx.WithContext(ctx).Create(lp).Error; err != nil {
		tb.Fatalf("seed lesson progress: %v", err)
	}
	return lp
}

func PtrInt(v int) *int { return &v }

func PtrFloat(v float64) *float64 { return &v }

func PtrString(v string) *string { return &v }
