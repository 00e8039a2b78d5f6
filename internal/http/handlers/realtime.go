package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/http/response"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/progress/stream?courseId=&lessonId=
//
// Streams the caller's own course channel, plus the lesson channel when lessonId is given.
func (h *RealtimeHandler) ProgressStream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID := strings.TrimSpace(c.Query("courseId"))
	if courseID == "" {
		response.RespondError(c, http.StatusBadRequest, "Missing required fields", nil)
		return
	}

	channels := []string{realtime.CourseChannel(userID, courseID)}
	if lessonID := strings.TrimSpace(c.Query("lessonId")); lessonID != "" {
		channels = append(channels, realtime.LessonChannel(userID, courseID, lessonID))
	}
	listener := h.hub.Attach(userID, channels...)
	defer h.hub.Detach(listener)
	h.log.Debug("progress stream open", "user_id", userID, "course_id", courseID, "listener_id", listener.ID)
	observability.Current().RealtimeClientConnected()
	defer observability.Current().RealtimeClientDisconnected()

	h.hub.Stream(c.Writer, c.Request, listener)
}
