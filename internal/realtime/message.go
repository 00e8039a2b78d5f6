package realtime

import (
	"net/url"
	"strings"
)

type SSEEvent string

const (
	SSEEventCourseProgressUpdated SSEEvent = "course_progress_updated"
	SSEEventLessonProgressUpdated SSEEvent = "lesson_progress_updated"
	SSEEventLessonCompleted       SSEEvent = "lesson_completed"
	SSEEventProgressReset         SSEEvent = "progress_reset"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// channel escapes each id so an id containing ':' cannot spell another channel.
func channel(kind string, ids ...string) string {
	parts := []string{"progress", kind}
	for _, id := range ids {
		parts = append(parts, url.QueryEscape(id))
	}
	return strings.Join(parts, ":")
}

// CourseChannel carries course-level progress for one user.
func CourseChannel(userID, courseID string) string {
	return channel("course", userID, courseID)
}

// LessonChannel carries a single lesson's progress for one user.
func LessonChannel(userID, courseID, lessonID string) string {
	return channel("lesson", userID, courseID, lessonID)
}
