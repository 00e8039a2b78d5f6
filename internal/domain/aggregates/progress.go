// Package aggregates declares the write boundary for learner progress. Every write that
// touches lesson rows also recomputes the course rollup inside the same transaction,
// and writers for one (user, course) pair are serialized.
package aggregates

import (
	"context"
	"time"

	"github.com/yungbote/coursehub-backend/internal/domain/learning"
)

// CourseProgressAggregate owns lesson completion state and the course rollup derived from it.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeRetryable, CodeInternal.
type CourseProgressAggregate interface {
	// RecordLessonProgress merges a partial lesson update, then recomputes the course rollup
	// from every lesson row of the course.
	RecordLessonProgress(ctx context.Context, in RecordLessonProgressInput) (RecordLessonProgressResult, error)

	// ResetProgress deletes lesson and course rows for one course, or for all courses when
	// CourseID is nil.
	ResetProgress(ctx context.Context, in ResetProgressInput) (ResetProgressResult, error)
}

// LessonProgressPatch carries only the fields a caller wants to change. A nil field is
// left untouched.
type LessonProgressPatch struct {
	Completed          *bool
	CompletedAt        *time.Time
	WatchTime          *float64
	TotalDuration      *float64
	ProgressPercentage *int
	Metadata           map[string]any
}

type RecordLessonProgressInput struct {
	UserID             string
	CourseID           string
	LessonID           string
	Patch              LessonProgressPatch
	TotalCourseLessons *int
	At                 time.Time
}

type RecordLessonProgressResult struct {
	Lesson               *learning.LessonProgress
	Course               *learning.CourseProgress
	LessonNewlyCompleted bool
	CourseNewlyCompleted bool
	LessonWriteAttempts  int
}

type ResetProgressInput struct {
	UserID   string
	CourseID *string
}

type ResetProgressResult struct {
	DeletedLessons int64
	DeletedCourses int64
}

func (r ResetProgressResult) Total() int64 { return r.DeletedLessons + r.DeletedCourses }
