package aggregates

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/yungbote/coursehub-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/domain/learning"
	"github.com/yungbote/coursehub-backend/internal/platform/dbctx"
	"github.com/yungbote/coursehub-backend/internal/platform/keylock"
	"gorm.io/datatypes"
)

const (
	opLessonWrite     = "progress.lesson_write"
	opCourseAggregate = "progress.course_aggregate"
	opReset           = "progress.reset"
)

type CourseProgressAggregateDeps struct {
	Write   WriteDeps
	Lessons repos.LessonProgressRepo
	Courses repos.CourseProgressRepo
	Locks   keylock.Locker
	Now     func() time.Time
}

type courseProgressAggregate struct {
	deps CourseProgressAggregateDeps
}

func NewCourseProgressAggregate(deps CourseProgressAggregateDeps) domainagg.CourseProgressAggregate {
	deps.Write = deps.Write.normalized()
	if deps.Locks == nil {
		deps.Locks = keylock.NewLocal()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &courseProgressAggregate{deps: deps}
}

func lockKey(userID, courseID string) string {
	return "progress:" + keylock.Key(userID, courseID)
}

func (a *courseProgressAggregate) RecordLessonProgress(ctx context.Context, in domainagg.RecordLessonProgressInput) (domainagg.RecordLessonProgressResult, error) {
	var out domainagg.RecordLessonProgressResult
	in.UserID = strings.TrimSpace(in.UserID)
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.LessonID = strings.TrimSpace(in.LessonID)
	if in.UserID == "" || in.CourseID == "" || in.LessonID == "" {
		return out, MapError(opLessonWrite, ValidationError("userId, courseId and lessonId are required"))
	}
	if in.At.IsZero() {
		in.At = a.deps.Now()
	}
	in.At = in.At.UTC()

	unlock, err := a.deps.Locks.Lock(ctx, lockKey(in.UserID, in.CourseID))
	if err != nil {
		return out, MapError(opCourseAggregate, err)
	}
	defer unlock()

	// The lesson row is written on its own so it is durable before aggregation. Only this
	// write is retried, and only once.
	var lesson *learning.LessonProgress
	var newly bool
	write := func(dbc dbctx.Context) error {
		l, n, err := a.writeLesson(dbc, in)
		lesson, newly = l, n
		return err
	}
	out.LessonWriteAttempts = 1
	err = executeWrite(ctx, a.deps.Write, opLessonWrite, write)
	if err != nil && domainagg.IsRetryable(err) && ctx.Err() == nil {
		if a.deps.Write.Log != nil {
			a.deps.Write.Log.Warn("lesson progress write failed, retrying once", "user_id", in.UserID, "course_id", in.CourseID, "lesson_id", in.LessonID, "error", err)
		}
		out.LessonWriteAttempts = 2
		err = executeWrite(ctx, a.deps.Write, opLessonWrite, write)
	}
	if err != nil {
		return out, err
	}
	out.Lesson = lesson
	out.LessonNewlyCompleted = newly

	err = executeWrite(ctx, a.deps.Write, opCourseAggregate, func(dbc dbctx.Context) error {
		course, newlyDone, err := a.aggregateCourse(dbc, in)
		out.Course = course
		out.CourseNewlyCompleted = newlyDone
		return err
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func (a *courseProgressAggregate) writeLesson(dbc dbctx.Context, in domainagg.RecordLessonProgressInput) (*learning.LessonProgress, bool, error) {
	tx := dbc.Tx
	existing, err := a.deps.Lessons.Get(dbc.Ctx, tx, in.UserID, in.CourseID, in.LessonID)
	if err != nil {
		return nil, false, err
	}
	row := existing
	if row == nil {
		row = &learning.LessonProgress{
			UserID:   in.UserID,
			CourseID: in.CourseID,
			LessonID: in.LessonID,
		}
	}
	wasCompleted := row.Completed
	if err := MergeLessonPatch(row, in.Patch, in.At); err != nil {
		return nil, false, err
	}
	if err := a.deps.Lessons.Upsert(dbc.Ctx, tx, row); err != nil {
		return nil, false, err
	}
	return row, !wasCompleted && row.Completed, nil
}

// MergeLessonPatch applies patch to row. Completion is monotonic: once completed the row
// stays completed, keeps its first completedAt and its percentage never drops.
func MergeLessonPatch(row *learning.LessonProgress, patch domainagg.LessonProgressPatch, at time.Time) error {
	wasCompleted := row.Completed
	prevPct := row.ProgressPercentage

	if patch.WatchTime != nil {
		w := *patch.WatchTime
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return ValidationError("watchTime must be a finite non-negative number")
		}
		row.WatchTime = w
	}
	if patch.TotalDuration != nil {
		d := *patch.TotalDuration
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return ValidationError("totalDuration must be a finite non-negative number")
		}
		row.TotalDuration = &d
	}
	if patch.ProgressPercentage != nil {
		row.ProgressPercentage = ClampPercent(*patch.ProgressPercentage)
	}
	if patch.Completed != nil && *patch.Completed {
		row.Completed = true
	}
	if row.Completed && row.CompletedAt == nil {
		ts := at
		if patch.CompletedAt != nil {
			ts = patch.CompletedAt.UTC()
		}
		row.CompletedAt = &ts
	}
	if wasCompleted && row.ProgressPercentage < prevPct {
		row.ProgressPercentage = prevPct
	}
	if len(patch.Metadata) > 0 {
		merged := map[string]any{}
		if len(row.Metadata) > 0 {
			_ = json.Unmarshal(row.Metadata, &merged)
		}
		for k, v := range patch.Metadata {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return ValidationError("metadata is not serializable")
		}
		row.Metadata = datatypes.JSON(raw)
	}
	row.LastAccessedAt = at
	return nil
}

func (a *courseProgressAggregate) aggregateCourse(dbc dbctx.Context, in domainagg.RecordLessonProgressInput) (*learning.CourseProgress, bool, error) {
	tx := dbc.Tx
	lessons, err := a.deps.Lessons.ListByCourse(dbc.Ctx, tx, in.UserID, in.CourseID)
	if err != nil {
		return nil, false, err
	}
	completed := 0
	for _, l := range lessons {
		if l.Completed {
			completed++
		}
	}
	existing, err := a.deps.Courses.Get(dbc.Ctx, tx, in.UserID, in.CourseID)
	if err != nil {
		return nil, false, err
	}

	stored := 0
	if existing != nil {
		stored = existing.TotalLessons
	}
	total := ResolveTotalLessons(in.TotalCourseLessons, stored, len(lessons))
	pct := CoursePercent(completed, total)

	row := existing
	if row == nil {
		row = &learning.CourseProgress{
			UserID:    in.UserID,
			CourseID:  in.CourseID,
			StartedAt: in.At,
		}
	}
	wasDone := row.CompletedAt != nil
	row.TotalLessons = total
	row.CompletedLessons = completed
	row.ProgressPercentage = pct
	row.LastAccessedAt = in.At
	row.CurrentLessonID = in.LessonID
	if pct == 100 && row.CompletedAt == nil {
		ts := in.At
		row.CompletedAt = &ts
	}
	if err := a.deps.Courses.Upsert(dbc.Ctx, tx, row); err != nil {
		return nil, false, err
	}
	return row, !wasDone && row.CompletedAt != nil, nil
}

// ResolveTotalLessons picks the supplied count, then the stored count, then the observed
// count, and never returns less than observed.
func ResolveTotalLessons(supplied *int, stored, observed int) int {
	total := observed
	switch {
	case supplied != nil && *supplied > 0:
		total = *supplied
	case stored > 0:
		total = stored
	}
	if observed > total {
		total = observed
	}
	return total
}

func CoursePercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return ClampPercent(int(math.Round(float64(completed) / float64(total) * 100)))
}

func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (a *courseProgressAggregate) ResetProgress(ctx context.Context, in domainagg.ResetProgressInput) (domainagg.ResetProgressResult, error) {
	var out domainagg.ResetProgressResult
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return out, MapError(opReset, ValidationError("userId is required"))
	}
	if in.CourseID != nil {
		courseID := strings.TrimSpace(*in.CourseID)
		if courseID == "" {
			return out, MapError(opReset, ValidationError("courseId must not be blank"))
		}
		in.CourseID = &courseID
		unlock, err := a.deps.Locks.Lock(ctx, lockKey(in.UserID, courseID))
		if err != nil {
			return out, MapError(opReset, err)
		}
		defer unlock()
	}

	err := executeWrite(ctx, a.deps.Write, opReset, func(dbc dbctx.Context) error {
		var err error
		if in.CourseID != nil {
			if out.DeletedLessons, err = a.deps.Lessons.DeleteByCourse(dbc.Ctx, dbc.Tx, in.UserID, *in.CourseID); err != nil {
				return err
			}
			out.DeletedCourses, err = a.deps.Courses.DeleteByCourse(dbc.Ctx, dbc.Tx, in.UserID, *in.CourseID)
			return err
		}
		if out.DeletedLessons, err = a.deps.Lessons.DeleteByUser(dbc.Ctx, dbc.Tx, in.UserID); err != nil {
			return err
		}
		out.DeletedCourses, err = a.deps.Courses.DeleteByUser(dbc.Ctx, dbc.Tx, in.UserID)
		return err
	})
	return out, err
}
