package handlers

import (
	"context"
	"net/http"
	"testing"

	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/services"
)

// stubProgress implements only what the handler tests exercise.
type stubProgress struct {
	services.ProgressService
	calls    []string
	watch    float64
	update   services.LessonProgressUpdate
	resetFor *string
}

func (s *stubProgress) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error) {
	s.calls = append(s.calls, "complete")
	return &types.CourseProgress{}, nil
}

func (s *stubProgress) UpdateWatchTime(ctx context.Context, userID, courseID, lessonID string, watchTime float64, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error) {
	s.calls = append(s.calls, "watch")
	s.watch = watchTime
	if watchTime < 0 {
		return nil, apierr.BadRequest("invalid_watch_time", "watch time must be non-negative")
	}
	return &types.CourseProgress{}, nil
}

func (s *stubProgress) UpdateLessonProgress(ctx context.Context, userID, courseID, lessonID string, update services.LessonProgressUpdate, totalCourseLessons *int) (*types.CourseProgress, error) {
	s.calls = append(s.calls, "update")
	s.update = update
	return &types.CourseProgress{}, nil
}

func (s *stubProgress) ResetProgress(ctx context.Context, userID string, courseID *string) (int, error) {
	s.resetFor = courseID
	return 3, nil
}

func (s *stubProgress) GetUserProgressStats(ctx context.Context, userID string) (*services.UserProgressStats, error) {
	return &services.UserProgressStats{TotalCourses: 2, AverageProgress: 50}, nil
}

func newProgressRouter(userID string, svc services.ProgressService) http.Handler {
	h := NewProgressHandler(logger.Nop(), svc)
	r := newEngine()
	r.Use(asUser(userID))
	r.POST("/api/progress/lesson", h.UpdateLesson)
	r.POST("/api/progress/reset", h.Reset)
	r.GET("/api/progress/stats", h.Stats)
	return r
}

func TestUpdateLessonActions(t *testing.T) {
	stub := &stubProgress{}
	r := newProgressRouter("u1", stub)

	cases := []struct {
		body string
		code int
	}{
		{`{"courseId":"c1","lessonId":"l1","action":"complete"}`, http.StatusOK},
		{`{"courseId":"c1","lessonId":"l1","action":"updateWatchTime","watchTime":42.5,"totalDuration":100}`, http.StatusOK},
		{`{"courseId":"c1","lessonId":"l1","watchTime":10,"totalDuration":100}`, http.StatusOK},
		{`{"courseId":"c1","lessonId":"l1","action":"updateWatchTime"}`, http.StatusBadRequest},
		{`{"courseId":"c1","lessonId":"l1","action":"rewind"}`, http.StatusBadRequest},
		{`{"courseId":"c1","action":"complete"}`, http.StatusBadRequest},
		{`{"courseId":"c1","lessonId":"l1","action":"updateWatchTime","watchTime":-1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(r, http.MethodPost, "/api/progress/lesson", []byte(tc.body), nil); rec.Code != tc.code {
			t.Fatalf("%s: want=%d got=%d body=%s", tc.body, tc.code, rec.Code, rec.Body.String())
		}
	}
	want := []string{"complete", "watch", "update", "watch"}
	if len(stub.calls) != len(want) {
		t.Fatalf("calls: want=%v got=%v", want, stub.calls)
	}
	for i := range want {
		if stub.calls[i] != want[i] {
			t.Fatalf("calls: want=%v got=%v", want, stub.calls)
		}
	}
	if stub.update.WatchTime == nil || *stub.update.WatchTime != 10 {
		t.Fatalf("generic update watch time: %+v", stub.update)
	}
}

func TestUpdateLessonRequiresAuth(t *testing.T) {
	r := newProgressRouter("", &stubProgress{})
	rec := do(r, http.MethodPost, "/api/progress/lesson", []byte(`{"courseId":"c1","lessonId":"l1"}`), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want=401 got=%d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Unauthorized" {
		t.Fatalf("error: got=%v", got)
	}
}

func TestResetProgress(t *testing.T) {
	stub := &stubProgress{}
	r := newProgressRouter("u1", stub)

	rec := do(r, http.MethodPost, "/api/progress/reset", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if stub.resetFor != nil || body["deletedItems"] != float64(3) || body["message"] != "All progress reset" {
		t.Fatalf("reset all: for=%v body=%v", stub.resetFor, body)
	}

	rec = do(r, http.MethodPost, "/api/progress/reset", []byte(`{"courseId":"c1"}`), nil)
	if rec.Code != http.StatusOK || stub.resetFor == nil || *stub.resetFor != "c1" {
		t.Fatalf("reset course: code=%d for=%v", rec.Code, stub.resetFor)
	}
}

func TestStats(t *testing.T) {
	rec := do(newProgressRouter("u1", &stubProgress{}), http.MethodGet, "/api/progress/stats", nil, nil)
	body := decodeBody(t, rec)
	if body["totalCourses"] != float64(2) || body["averageProgress"] != float64(50) {
		t.Fatalf("stats: %v", body)
	}
}
