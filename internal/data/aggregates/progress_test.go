package aggregates_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/coursehub-backend/internal/data/aggregates"
	aggtestutil "github.com/yungbote/coursehub-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/coursehub-backend/internal/data/repos"
	"github.com/yungbote/coursehub-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/domain/learning"
	"github.com/yungbote/coursehub-backend/internal/platform/keylock"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	lessons repos.LessonProgressRepo
	courses repos.CourseProgressRepo
	obs     *aggtestutil.RecordingObserver
	agg     domainagg.CourseProgressAggregate
}

func newFixture(t *testing.T, runner aggregates.TxRunner) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:      db,
		lessons: repos.NewLessonProgressRepo(db, log),
		courses: repos.NewCourseProgressRepo(db, log),
		obs:     &aggtestutil.RecordingObserver{},
	}
	if runner == nil {
		runner = aggregates.NewGormTxRunner(db)
	}
	f.agg = aggregates.NewCourseProgressAggregate(aggregates.CourseProgressAggregateDeps{
		Write:   aggregates.WriteDeps{DB: db, Log: log, Runner: runner, Observer: f.obs},
		Lessons: f.lessons,
		Courses: f.courses,
		Locks:   keylock.NewLocal(),
	})
	return f
}

func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func complete(t *testing.T, f *fixture, userID, courseID, lessonID string, total *int) domainagg.RecordLessonProgressResult {
	t.Helper()
	res, err := f.agg.RecordLessonProgress(context.Background(), domainagg.RecordLessonProgressInput{
		UserID:             userID,
		CourseID:           courseID,
		LessonID:           lessonID,
		Patch:              domainagg.LessonProgressPatch{Completed: boolPtr(true), ProgressPercentage: intPtr(100)},
		TotalCourseLessons: total,
	})
	if err != nil {
		t.Fatalf("RecordLessonProgress(%s): %v", lessonID, err)
	}
	return res
}

func TestRecordLessonProgressIdempotentCompletion(t *testing.T) {
	f := newFixture(t, nil)

	first := complete(t, f, "u1", "c1", "l1", intPtr(4))
	if !first.LessonNewlyCompleted || first.Course.CompletedLessons != 1 {
		t.Fatalf("first completion: unexpected %+v", first.Course)
	}
	second := complete(t, f, "u1", "c1", "l1", intPtr(4))
	if second.LessonNewlyCompleted {
		t.Fatalf("second completion must not be new")
	}
	if second.Course.CompletedLessons != 1 {
		t.Fatalf("completedLessons: want=1 got=%d", second.Course.CompletedLessons)
	}
	if !first.Lesson.CompletedAt.Equal(*second.Lesson.CompletedAt) {
		t.Fatalf("completedAt moved: %v -> %v", first.Lesson.CompletedAt, second.Lesson.CompletedAt)
	}
}

func TestRecordLessonProgressTotalNeverBelowObserved(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		testutil.SeedLessonProgress(t, ctx, f.db, "u1", "c1", fmt.Sprintf("seed-%d", i), false)
	}
	res := complete(t, f, "u1", "c1", "l5", intPtr(3))
	if res.Course.TotalLessons != 5 {
		t.Fatalf("totalLessons: want=5 got=%d", res.Course.TotalLessons)
	}
	if res.Course.ProgressPercentage != 20 {
		t.Fatalf("progressPercentage: want=20 got=%d", res.Course.ProgressPercentage)
	}
}

func TestRecordLessonProgressPercentageRounding(t *testing.T) {
	f := newFixture(t, nil)
	var res domainagg.RecordLessonProgressResult
	for i := 0; i < 3; i++ {
		res = complete(t, f, "u1", "c1", fmt.Sprintf("l%d", i), intPtr(7))
	}
	if res.Course.CompletedLessons != 3 || res.Course.TotalLessons != 7 {
		t.Fatalf("counts: want=3/7 got=%d/%d", res.Course.CompletedLessons, res.Course.TotalLessons)
	}
	if res.Course.ProgressPercentage != 43 {
		t.Fatalf("progressPercentage: want=43 got=%d", res.Course.ProgressPercentage)
	}
	if res.Course.CurrentLessonID != "l2" {
		t.Fatalf("currentLessonId: want=l2 got=%s", res.Course.CurrentLessonID)
	}
}

func TestRecordLessonProgressStoredTotalIsReused(t *testing.T) {
	f := newFixture(t, nil)
	complete(t, f, "u1", "c1", "l1", intPtr(10))
	res := complete(t, f, "u1", "c1", "l2", nil)
	if res.Course.TotalLessons != 10 || res.Course.ProgressPercentage != 20 {
		t.Fatalf("stored total: want=10/20%% got=%d/%d%%", res.Course.TotalLessons, res.Course.ProgressPercentage)
	}
}

func TestRecordLessonProgressCourseCompletedOnce(t *testing.T) {
	f := newFixture(t, nil)
	complete(t, f, "u1", "c1", "l1", intPtr(2))
	res := complete(t, f, "u1", "c1", "l2", intPtr(2))
	if !res.CourseNewlyCompleted || res.Course.CompletedAt == nil || res.Course.ProgressPercentage != 100 {
		t.Fatalf("course completion: unexpected %+v", res.Course)
	}
	stamp := *res.Course.CompletedAt

	time.Sleep(5 * time.Millisecond)
	again := complete(t, f, "u1", "c1", "l2", intPtr(2))
	if again.CourseNewlyCompleted {
		t.Fatalf("course must complete only once")
	}
	if !again.Course.CompletedAt.Equal(stamp) {
		t.Fatalf("course completedAt changed: %v -> %v", stamp, *again.Course.CompletedAt)
	}
}

func TestRecordLessonProgressMonotonicCompletion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	complete(t, f, "u1", "c1", "l1", intPtr(4))

	res, err := f.agg.RecordLessonProgress(ctx, domainagg.RecordLessonProgressInput{
		UserID:   "u1",
		CourseID: "c1",
		LessonID: "l1",
		Patch: domainagg.LessonProgressPatch{
			Completed:          boolPtr(false),
			WatchTime:          floatPtr(3),
			ProgressPercentage: intPtr(5),
		},
	})
	if err != nil {
		t.Fatalf("RecordLessonProgress: %v", err)
	}
	if !res.Lesson.Completed || res.Lesson.ProgressPercentage != 100 || res.Lesson.CompletedAt == nil {
		t.Fatalf("completion regressed: %+v", res.Lesson)
	}
	if res.Lesson.WatchTime != 3 {
		t.Fatalf("watchTime: want=3 got=%v", res.Lesson.WatchTime)
	}
	if res.Course.CompletedLessons != 1 {
		t.Fatalf("completedLessons: want=1 got=%d", res.Course.CompletedLessons)
	}
}

func TestRecordLessonProgressValidation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.agg.RecordLessonProgress(context.Background(), domainagg.RecordLessonProgressInput{UserID: "u1", LessonID: "l1"})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing course: want validation got=%v", err)
	}
	_, err = f.agg.RecordLessonProgress(context.Background(), domainagg.RecordLessonProgressInput{
		UserID: "u1", CourseID: "c1", LessonID: "l1",
		Patch: domainagg.LessonProgressPatch{WatchTime: floatPtr(-1)},
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("negative watch time: want validation got=%v", err)
	}
	if row, _ := f.lessons.Get(context.Background(), nil, "u1", "c1", "l1"); row != nil {
		t.Fatalf("validation failure must not write, got %+v", row)
	}
}

func TestRecordLessonProgressRetriesLessonWriteOnce(t *testing.T) {
	db := testutil.DB(t)
	runner := &aggtestutil.FlakyRunner{
		Inner:    aggregates.NewGormTxRunner(db),
		Failures: 1,
		Err:      errors.New("read tcp: connection reset by peer"),
	}
	f := newFixtureWithDB(t, db, runner)

	res := complete(t, f, "u1", "c1", "l1", intPtr(2))
	if res.LessonWriteAttempts != 2 {
		t.Fatalf("attempts: want=2 got=%d", res.LessonWriteAttempts)
	}
	if res.Course == nil || res.Course.CompletedLessons != 1 {
		t.Fatalf("course after retry: unexpected %+v", res.Course)
	}
	if runner.Calls() != 3 {
		t.Fatalf("tx calls: want=3 got=%d", runner.Calls())
	}
	if got := f.obs.Count(domainagg.CodeRetryable); got != 1 {
		t.Fatalf("retry observations: want=1 got=%d", got)
	}
}

func TestRecordLessonProgressGivesUpAfterOneRetry(t *testing.T) {
	db := testutil.DB(t)
	runner := &aggtestutil.FlakyRunner{
		Inner:    aggregates.NewGormTxRunner(db),
		Failures: 2,
		Err:      errors.New("i/o timeout"),
	}
	f := newFixtureWithDB(t, db, runner)

	_, err := f.agg.RecordLessonProgress(context.Background(), domainagg.RecordLessonProgressInput{
		UserID: "u1", CourseID: "c1", LessonID: "l1",
		Patch: domainagg.LessonProgressPatch{Completed: boolPtr(true)},
	})
	if !domainagg.IsRetryable(err) {
		t.Fatalf("want retryable err got=%v", err)
	}
	if runner.Calls() != 2 {
		t.Fatalf("tx calls: want=2 got=%d", runner.Calls())
	}
	if row, _ := f.courses.Get(context.Background(), nil, "u1", "c1"); row != nil {
		t.Fatalf("aggregation must not run after failed lesson write")
	}
}

func TestRecordLessonProgressNoRetryOnPermanentError(t *testing.T) {
	db := testutil.DB(t)
	runner := &aggtestutil.FlakyRunner{
		Inner:    aggregates.NewGormTxRunner(db),
		Failures: 1,
		Err:      errors.New("boom"),
	}
	f := newFixtureWithDB(t, db, runner)
	_, err := f.agg.RecordLessonProgress(context.Background(), domainagg.RecordLessonProgressInput{
		UserID: "u1", CourseID: "c1", LessonID: "l1",
	})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal err got=%v", err)
	}
	if runner.Calls() != 1 {
		t.Fatalf("tx calls: want=1 got=%d", runner.Calls())
	}
}

func TestRecordLessonProgressConcurrentLessons(t *testing.T) {
	f := newFixture(t, nil)
	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.agg.RecordLessonProgress(context.Background(), domainagg.RecordLessonProgressInput{
				UserID:             "u1",
				CourseID:           "c1",
				LessonID:           fmt.Sprintf("l%d", i),
				Patch:              domainagg.LessonProgressPatch{Completed: boolPtr(true)},
				TotalCourseLessons: intPtr(n),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}
	row, err := f.courses.Get(context.Background(), nil, "u1", "c1")
	if err != nil || row == nil {
		t.Fatalf("Get: err=%v row=%+v", err, row)
	}
	if row.CompletedLessons != n || row.ProgressPercentage != 100 || row.CompletedAt == nil {
		t.Fatalf("final rollup: want %d/100%% got %d/%d%%", n, row.CompletedLessons, row.ProgressPercentage)
	}
}

func TestResetProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	complete(t, f, "u1", "c1", "l1", nil)
	complete(t, f, "u1", "c1", "l2", nil)
	complete(t, f, "u1", "c2", "l1", nil)
	complete(t, f, "u2", "c1", "l1", nil)

	course := "c1"
	res, err := f.agg.ResetProgress(ctx, domainagg.ResetProgressInput{UserID: "u1", CourseID: &course})
	if err != nil {
		t.Fatalf("ResetProgress: %v", err)
	}
	if res.DeletedLessons != 2 || res.DeletedCourses != 1 || res.Total() != 3 {
		t.Fatalf("ResetProgress(course): unexpected %+v", res)
	}
	if rows, _ := f.lessons.ListByCourse(ctx, nil, "u1", "c1"); len(rows) != 0 {
		t.Fatalf("lessons left after reset: %d", len(rows))
	}

	res, err = f.agg.ResetProgress(ctx, domainagg.ResetProgressInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("ResetProgress(all): %v", err)
	}
	if res.DeletedLessons != 1 || res.DeletedCourses != 1 {
		t.Fatalf("ResetProgress(all): unexpected %+v", res)
	}
	if rows, _ := f.lessons.ListByUser(ctx, nil, "u2"); len(rows) != 1 {
		t.Fatalf("other user touched by reset: %d rows", len(rows))
	}
}

func TestMergeLessonPatchMetadata(t *testing.T) {
	row := &learning.LessonProgress{}
	at := time.Now().UTC()
	if err := aggregates.MergeLessonPatch(row, domainagg.LessonProgressPatch{Metadata: map[string]any{"a": 1}}, at); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := aggregates.MergeLessonPatch(row, domainagg.LessonProgressPatch{Metadata: map[string]any{"b": "x"}}, at); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if string(row.Metadata) != `{"a":1,"b":"x"}` {
		t.Fatalf("metadata: got %s", row.Metadata)
	}
	if !row.LastAccessedAt.Equal(at) {
		t.Fatalf("lastAccessedAt not stamped")
	}
}

func TestResolveTotalLessons(t *testing.T) {
	cases := []struct {
		supplied *int
		stored   int
		observed int
		want     int
	}{
		{intPtr(3), 0, 5, 5},
		{intPtr(10), 4, 2, 10},
		{nil, 6, 2, 6},
		{intPtr(0), 6, 2, 6},
		{nil, 0, 3, 3},
		{nil, 0, 0, 0},
	}
	for _, tc := range cases {
		if got := aggregates.ResolveTotalLessons(tc.supplied, tc.stored, tc.observed); got != tc.want {
			t.Fatalf("ResolveTotalLessons(%v,%d,%d): want=%d got=%d", tc.supplied, tc.stored, tc.observed, tc.want, got)
		}
	}
	if got := aggregates.CoursePercent(3, 7); got != 43 {
		t.Fatalf("CoursePercent(3,7): want=43 got=%d", got)
	}
	if got := aggregates.CoursePercent(1, 0); got != 0 {
		t.Fatalf("CoursePercent(1,0): want=0 got=%d", got)
	}
}

func newFixtureWithDB(t *testing.T, db *gorm.DB, runner aggregates.TxRunner) *fixture {
	t.Helper()
	log := testutil.Logger(t)
	f := &fixture{
		db:      db,
		lessons: repos.NewLessonProgressRepo(db, log),
		courses: repos.NewCourseProgressRepo(db, log),
		obs:     &aggtestutil.RecordingObserver{},
	}
	f.agg = aggregates.NewCourseProgressAggregate(aggregates.CourseProgressAggregateDeps{
		Write:   aggregates.WriteDeps{DB: db, Log: log, Runner: runner, Observer: f.obs},
		Lessons: f.lessons,
		Courses: f.courses,
	})
	return f
}
