package services

import (
	"context"

	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/realtime"
)

type ProgressNotifier interface {
	LessonUpdated(userID string, lesson *types.LessonProgress)
	CourseUpdated(userID string, course *types.CourseProgress)
	LessonCompleted(userID, courseID, lessonID, trigger string)
	ProgressReset(userID, courseID string)
}

type progressNotifier struct {
	emit SSEEmitter
}

func NewProgressNotifier(emit SSEEmitter) ProgressNotifier {
	return &progressNotifier{emit: emit}
}

func (n *progressNotifier) LessonUpdated(userID string, lesson *types.LessonProgress) {
	if n == nil || n.emit == nil || userID == "" || lesson == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.LessonChannel(userID, lesson.CourseID, lesson.LessonID),
		Event:   realtime.SSEEventLessonProgressUpdated,
		Data:    lesson,
	})
}

func (n *progressNotifier) CourseUpdated(userID string, course *types.CourseProgress) {
	if n == nil || n.emit == nil || userID == "" || course == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.CourseChannel(userID, course.CourseID),
		Event:   realtime.SSEEventCourseProgressUpdated,
		Data:    course,
	})
}

// LessonCompleted goes to both the lesson and the course channel so lesson lists and the
// course card refresh without another subscription.
func (n *progressNotifier) LessonCompleted(userID, courseID, lessonID, trigger string) {
	if n == nil || n.emit == nil || userID == "" {
		return
	}
	data := map[string]any{
		"courseId": courseID,
		"lessonId": lessonID,
		"trigger":  trigger,
	}
	for _, ch := range []string{
		realtime.LessonChannel(userID, courseID, lessonID),
		realtime.CourseChannel(userID, courseID),
	} {
		n.emit.Emit(context.Background(), realtime.SSEMessage{
			Channel: ch,
			Event:   realtime.SSEEventLessonCompleted,
			Data:    data,
		})
	}
}

func (n *progressNotifier) ProgressReset(userID, courseID string) {
	if n == nil || n.emit == nil || userID == "" || courseID == "" {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.CourseChannel(userID, courseID),
		Event:   realtime.SSEEventProgressReset,
		Data:    map[string]any{"courseId": courseID},
	})
}
