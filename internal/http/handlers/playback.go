package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/http/response"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/playback"
)

const maxPlaybackEventBytes = 16 << 10

type PlaybackHandler struct {
	log      *logger.Logger
	sessions *playback.Manager
}

func NewPlaybackHandler(log *logger.Logger, sessions *playback.Manager) *PlaybackHandler {
	return &PlaybackHandler{log: log.With("handler", "PlaybackHandler"), sessions: sessions}
}

func playbackError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, playback.ErrInvalidSession):
		response.RespondError(c, http.StatusBadRequest, "Missing required fields", nil)
	case errors.Is(err, playback.ErrSessionNotFound), errors.Is(err, playback.ErrNotOwner):
		response.RespondError(c, http.StatusNotFound, "Playback session not found", nil)
	case errors.Is(err, playback.ErrClosed):
		response.RespondError(c, http.StatusServiceUnavailable, "Shutting down", nil)
	default:
		response.RespondError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// POST /api/playback/sessions
func (h *PlaybackHandler) Start(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		CourseID           string   `json:"courseId"`
		LessonID           string   `json:"lessonId"`
		Duration           *float64 `json:"duration"`
		TotalCourseLessons *int     `json:"totalCourseLessons"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, err := h.sessions.Start(playback.SessionParams{
		UserID:             userID,
		CourseID:           req.CourseID,
		LessonID:           req.LessonID,
		Duration:           req.Duration,
		TotalCourseLessons: req.TotalCourseLessons,
	})
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": s.ID})
}

// POST /api/playback/sessions/:id/events
//
// The body is the player message exactly as the page received it.
func (h *PlaybackHandler) Event(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPlaybackEventBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(raw) > maxPlaybackEventBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "Event too large", nil)
		return
	}
	accepted, err := h.sessions.Deliver(c.Param("id"), userID, raw)
	if err != nil {
		playbackError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

// DELETE /api/playback/sessions/:id
func (h *PlaybackHandler) Stop(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.sessions.Stop(c.Param("id"), userID); err != nil {
		playbackError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}
