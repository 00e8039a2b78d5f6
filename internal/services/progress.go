package services

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/coursehub-backend/internal/data/repos"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	ActionUpdateProgress  = "updateProgress"
	ActionUpdateWatchTime = "updateWatchTime"
	ActionComplete        = "complete"

	TriggerManual = "manual"

	// AutoCompletePercent is the watch percentage at which UpdateWatchTime marks a lesson done.
	AutoCompletePercent = 90

	recentActivityWindow = 72 * time.Hour
	recentActivityLimit  = 3

	defaultStatsConcurrency = 4
)

type LessonProgressUpdate = domainagg.LessonProgressPatch

// ProgressSubscriber delivers realtime messages published on a channel. *realtime.Hub
// implements it.
type ProgressSubscriber interface {
	Subscribe(userID, channel string, fn func(realtime.SSEMessage)) func()
}

type UserProgressStats struct {
	TotalCourses          int     `json:"totalCourses"`
	CoursesInProgress     int     `json:"coursesInProgress"`
	CoursesCompleted      int     `json:"coursesCompleted"`
	TotalLessonsTracked   int     `json:"totalLessonsTracked"`
	TotalLessonsCompleted int     `json:"totalLessonsCompleted"`
	TotalWatchTime        float64 `json:"totalWatchTime"`
	AverageProgress       int     `json:"averageProgress"`
}

type RecentCourseActivity struct {
	CourseID           string            `json:"courseId"`
	Kind               types.ContentKind `json:"kind"`
	Slug               string            `json:"slug"`
	Title              string            `json:"title"`
	ImageURL           string            `json:"imageUrl,omitempty"`
	ProgressPercentage int               `json:"progressPercentage"`
	CompletedLessons   int               `json:"completedLessons"`
	TotalLessons       int               `json:"totalLessons"`
	CurrentLessonID    string            `json:"currentLessonId"`
	LastAccessedAt     time.Time         `json:"lastAccessedAt"`
}

type CourseDebug struct {
	UserID         string                  `json:"userId"`
	CourseID       string                  `json:"courseId"`
	CourseProgress *types.CourseProgress   `json:"courseProgress"`
	LessonCount    int                     `json:"lessonCount"`
	CompletedCount int                     `json:"completedCount"`
	Lessons        []*types.LessonProgress `json:"lessons"`
}

type ProgressService interface {
	UpdateLessonProgress(ctx context.Context, userID, courseID, lessonID string, update LessonProgressUpdate, totalCourseLessons *int) (*types.CourseProgress, error)
	MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error)
	// MarkLessonCompletedBy records which playback path decided the lesson was done.
	MarkLessonCompletedBy(ctx context.Context, trigger, userID, courseID, lessonID string, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error)
	UpdateWatchTime(ctx context.Context, userID, courseID, lessonID string, watchTime float64, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error)

	GetCourseProgress(ctx context.Context, userID, courseID string) (*types.CourseProgress, error)
	GetLessonProgress(ctx context.Context, userID, courseID, lessonID string) (*types.LessonProgress, error)
	ListLessonProgress(ctx context.Context, userID, courseID string) ([]*types.LessonProgress, error)

	SubscribeCourseProgress(userID, courseID string, fn func(*types.CourseProgress)) func()
	SubscribeLessonProgress(userID, courseID, lessonID string, fn func(*types.LessonProgress)) func()

	GetUserProgressStats(ctx context.Context, userID string) (*UserProgressStats, error)
	GetRecentCourseActivity(ctx context.Context, userID string) ([]RecentCourseActivity, error)

	ResetProgress(ctx context.Context, userID string, courseID *string) (int, error)
	DebugCourse(ctx context.Context, userID, courseID string) (*CourseDebug, error)
}

type ProgressServiceDeps struct {
	Log              *logger.Logger
	Aggregate        domainagg.CourseProgressAggregate
	Lessons          repos.LessonProgressRepo
	Courses          repos.CourseProgressRepo
	Catalog          repos.CatalogRepo
	Notifier         ProgressNotifier
	Subscriber       ProgressSubscriber
	Now              func() time.Time
	StatsConcurrency int
}

type progressService struct {
	log        *logger.Logger
	agg        domainagg.CourseProgressAggregate
	lessons    repos.LessonProgressRepo
	courses    repos.CourseProgressRepo
	catalog    repos.CatalogRepo
	notifier   ProgressNotifier
	subscriber ProgressSubscriber
	now        func() time.Time
	statsConc  int
}

func NewProgressService(deps ProgressServiceDeps) ProgressService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewProgressNotifier(nil)
	}
	conc := deps.StatsConcurrency
	if conc <= 0 {
		conc = defaultStatsConcurrency
	}
	return &progressService{
		log:        deps.Log.With("service", "ProgressService"),
		agg:        deps.Aggregate,
		lessons:    deps.Lessons,
		courses:    deps.Courses,
		catalog:    deps.Catalog,
		notifier:   notifier,
		subscriber: deps.Subscriber,
		now:        now,
		statsConc:  conc,
	}
}

// progressError converts aggregate failures into HTTP-aware errors for the handlers.
func progressError(err error) error {
	if err == nil {
		return nil
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeValidation:
		return apierr.New(http.StatusBadRequest, "invalid_progress", err)
	case domainagg.CodeNotFound:
		return apierr.New(http.StatusNotFound, "not_found", err)
	case domainagg.CodeConflict:
		return apierr.New(http.StatusConflict, "conflict", err)
	}
	return err
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return apierr.BadRequest("missing_fields", "Missing required fields")
		}
	}
	return nil
}

func (s *progressService) UpdateLessonProgress(ctx context.Context, userID, courseID, lessonID string, update LessonProgressUpdate, totalCourseLessons *int) (*types.CourseProgress, error) {
	return s.record(ctx, ActionUpdateProgress, "", userID, courseID, lessonID, update, totalCourseLessons)
}

func (s *progressService) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error) {
	return s.MarkLessonCompletedBy(ctx, TriggerManual, userID, courseID, lessonID, totalDuration, totalCourseLessons)
}

func (s *progressService) MarkLessonCompletedBy(ctx context.Context, trigger, userID, courseID, lessonID string, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		trigger = TriggerManual
	}
	done := true
	pct := 100
	update := LessonProgressUpdate{
		Completed:          &done,
		ProgressPercentage: &pct,
		TotalDuration:      totalDuration,
		Metadata:           map[string]any{"completionTrigger": trigger},
	}
	return s.record(ctx, ActionComplete, trigger, userID, courseID, lessonID, update, totalCourseLessons)
}

// WatchPercent is round(watch/duration*100) capped at 100, or 0 without a usable duration.
func WatchPercent(watchTime float64, totalDuration *float64) int {
	if totalDuration == nil || *totalDuration <= 0 || math.IsNaN(*totalDuration) || math.IsInf(*totalDuration, 0) {
		return 0
	}
	p := int(math.Round(watchTime / *totalDuration * 100))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

func (s *progressService) UpdateWatchTime(ctx context.Context, userID, courseID, lessonID string, watchTime float64, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error) {
	if watchTime < 0 || math.IsNaN(watchTime) || math.IsInf(watchTime, 0) {
		return nil, apierr.BadRequest("invalid_progress", "watchTime must be a finite non-negative number")
	}
	pct := WatchPercent(watchTime, totalDuration)
	completed := pct >= AutoCompletePercent
	update := LessonProgressUpdate{
		WatchTime:          &watchTime,
		TotalDuration:      totalDuration,
		ProgressPercentage: &pct,
		Completed:          &completed,
	}
	trigger := ""
	if completed {
		trigger = "watch_time"
		update.Metadata = map[string]any{"completionTrigger": trigger}
	}
	return s.record(ctx, ActionUpdateWatchTime, trigger, userID, courseID, lessonID, update, totalCourseLessons)
}

func (s *progressService) record(ctx context.Context, action, trigger, userID, courseID, lessonID string, update LessonProgressUpdate, totalCourseLessons *int) (*types.CourseProgress, error) {
	ctx, span := observability.Tracer().Start(ctx, "ProgressService."+action)
	defer span.End()
	span.SetAttributes(
		attribute.String("progress.course_id", courseID),
		attribute.String("progress.lesson_id", lessonID),
	)

	if err := requireIDs(userID, courseID, lessonID); err != nil {
		observability.Current().ObserveProgressWrite(action, "invalid")
		return nil, err
	}

	res, err := s.agg.RecordLessonProgress(ctx, domainagg.RecordLessonProgressInput{
		UserID:             userID,
		CourseID:           courseID,
		LessonID:           lessonID,
		Patch:              update,
		TotalCourseLessons: totalCourseLessons,
		At:                 s.now(),
	})
	span.SetAttributes(attribute.Int("progress.lesson_write_attempts", res.LessonWriteAttempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Current().ObserveProgressWrite(action, "error")
		s.log.Error("progress write failed", "action", action, "user_id", userID, "course_id", courseID, "lesson_id", lessonID, "error", err)
		return nil, progressError(err)
	}
	observability.Current().ObserveProgressWrite(action, "ok")

	s.notifier.LessonUpdated(userID, res.Lesson)
	s.notifier.CourseUpdated(userID, res.Course)
	if res.LessonNewlyCompleted {
		observability.Current().IncLessonCompletion(trigger)
		s.notifier.LessonCompleted(userID, courseID, lessonID, trigger)
	}
	if res.CourseNewlyCompleted {
		s.log.Info("course completed", "user_id", userID, "course_id", courseID)
	}
	return res.Course, nil
}

func (s *progressService) GetCourseProgress(ctx context.Context, userID, courseID string) (*types.CourseProgress, error) {
	if err := requireIDs(userID, courseID); err != nil {
		return nil, err
	}
	return s.courses.Get(ctx, nil, userID, courseID)
}

func (s *progressService) GetLessonProgress(ctx context.Context, userID, courseID, lessonID string) (*types.LessonProgress, error) {
	if err := requireIDs(userID, courseID, lessonID); err != nil {
		return nil, err
	}
	return s.lessons.Get(ctx, nil, userID, courseID, lessonID)
}

func (s *progressService) ListLessonProgress(ctx context.Context, userID, courseID string) ([]*types.LessonProgress, error) {
	if err := requireIDs(userID, courseID); err != nil {
		return nil, err
	}
	return s.lessons.ListByCourse(ctx, nil, userID, courseID)
}

// decodeMessage copies a realtime payload into out. Payloads arrive as typed values from the
// local hub and as generic maps when forwarded from another instance.
func decodeMessage(data any, out any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// SubscribeCourseProgress calls fn with every course update. A reset of the course is
// delivered as nil.
func (s *progressService) SubscribeCourseProgress(userID, courseID string, fn func(*types.CourseProgress)) func() {
	if s.subscriber == nil || fn == nil {
		return func() {}
	}
	return s.subscriber.Subscribe(userID, realtime.CourseChannel(userID, courseID), func(msg realtime.SSEMessage) {
		switch msg.Event {
		case realtime.SSEEventCourseProgressUpdated:
			var cp types.CourseProgress
			if !decodeMessage(msg.Data, &cp) {
				return
			}
			cp.UserID = userID
			fn(&cp)
		case realtime.SSEEventProgressReset:
			fn(nil)
		}
	})
}

func (s *progressService) SubscribeLessonProgress(userID, courseID, lessonID string, fn func(*types.LessonProgress)) func() {
	if s.subscriber == nil || fn == nil {
		return func() {}
	}
	return s.subscriber.Subscribe(userID, realtime.LessonChannel(userID, courseID, lessonID), func(msg realtime.SSEMessage) {
		if msg.Event != realtime.SSEEventLessonProgressUpdated {
			return
		}
		var lp types.LessonProgress
		if !decodeMessage(msg.Data, &lp) {
			return
		}
		lp.UserID = userID
		fn(&lp)
	})
}

func (s *progressService) GetUserProgressStats(ctx context.Context, userID string) (*UserProgressStats, error) {
	ctx, span := observability.Tracer().Start(ctx, "ProgressService.GetUserProgressStats")
	defer span.End()

	if err := requireIDs(userID); err != nil {
		return nil, err
	}
	courses, err := s.courses.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	perCourse := make([][]*types.LessonProgress, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.statsConc)
	for i, c := range courses {
		i, courseID := i, c.CourseID
		g.Go(func() error {
			rows, err := s.lessons.ListByCourse(gctx, nil, userID, courseID)
			if err != nil {
				return err
			}
			perCourse[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.log.Error("progress stats lesson read failed", "user_id", userID, "error", err)
		return nil, err
	}

	stats := &UserProgressStats{TotalCourses: len(courses)}
	pctSum := 0
	for i, c := range courses {
		pctSum += c.ProgressPercentage
		switch {
		case c.CompletedAt != nil || c.ProgressPercentage >= 100:
			stats.CoursesCompleted++
		default:
			stats.CoursesInProgress++
		}
		for _, l := range perCourse[i] {
			stats.TotalLessonsTracked++
			if l.Completed {
				stats.TotalLessonsCompleted++
			}
			stats.TotalWatchTime += l.WatchTime
		}
	}
	if len(courses) > 0 {
		stats.AverageProgress = int(math.Round(float64(pctSum) / float64(len(courses))))
	}
	span.SetAttributes(attribute.Int("progress.courses", len(courses)))
	return stats, nil
}

func (s *progressService) GetRecentCourseActivity(ctx context.Context, userID string) ([]RecentCourseActivity, error) {
	if err := requireIDs(userID); err != nil {
		return nil, err
	}
	since := s.now().Add(-recentActivityWindow)
	rows, err := s.courses.ListRecent(ctx, nil, userID, since, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastAccessedAt.After(rows[j].LastAccessedAt)
	})

	out := make([]RecentCourseActivity, 0, recentActivityLimit)
	for _, cp := range rows {
		if len(out) == recentActivityLimit {
			break
		}
		item, err := s.catalog.GetByID(ctx, nil, cp.CourseID)
		if err != nil || item == nil {
			s.log.Debug("dropping recent course without catalog entry", "course_id", cp.CourseID, "error", err)
			continue
		}
		out = append(out, RecentCourseActivity{
			CourseID:           cp.CourseID,
			Kind:               item.Kind,
			Slug:               item.Slug,
			Title:              item.Title,
			ImageURL:           item.ImageURL,
			ProgressPercentage: cp.ProgressPercentage,
			CompletedLessons:   cp.CompletedLessons,
			TotalLessons:       cp.TotalLessons,
			CurrentLessonID:    cp.CurrentLessonID,
			LastAccessedAt:     cp.LastAccessedAt,
		})
	}
	return out, nil
}

func (s *progressService) ResetProgress(ctx context.Context, userID string, courseID *string) (int, error) {
	ctx, span := observability.Tracer().Start(ctx, "ProgressService.ResetProgress")
	defer span.End()

	if err := requireIDs(userID); err != nil {
		return 0, err
	}
	var affected []string
	if courseID != nil {
		affected = []string{strings.TrimSpace(*courseID)}
	} else if rows, err := s.courses.ListByUser(ctx, nil, userID); err == nil {
		for _, r := range rows {
			affected = append(affected, r.CourseID)
		}
	}

	res, err := s.agg.ResetProgress(ctx, domainagg.ResetProgressInput{UserID: userID, CourseID: courseID})
	if err != nil {
		span.RecordError(err)
		observability.Current().ObserveProgressWrite("reset", "error")
		s.log.Error("progress reset failed", "user_id", userID, "error", err)
		return 0, progressError(err)
	}
	observability.Current().ObserveProgressWrite("reset", "ok")
	for _, id := range affected {
		s.notifier.ProgressReset(userID, id)
	}
	s.log.Info("progress reset", "user_id", userID, "deleted_lessons", res.DeletedLessons, "deleted_courses", res.DeletedCourses)
	return int(res.Total()), nil
}

func (s *progressService) DebugCourse(ctx context.Context, userID, courseID string) (*CourseDebug, error) {
	if err := requireIDs(userID, courseID); err != nil {
		return nil, err
	}
	cp, err := s.courses.Get(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	out := &CourseDebug{
		UserID:         userID,
		CourseID:       courseID,
		CourseProgress: cp,
		LessonCount:    len(lessons),
		Lessons:        lessons,
	}
	for _, l := range lessons {
		if l.Completed {
			out.CompletedCount++
		}
	}
	if out.Lessons == nil {
		out.Lessons = []*types.LessonProgress{}
	}
	return out, nil
}
