package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/http/response"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/services"
)

type ProgressHandler struct {
	log      *logger.Logger
	progress services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{log: log.With("handler", "ProgressHandler"), progress: progress}
}

type lessonProgressRequest struct {
	CourseID           string   `json:"courseId"`
	LessonID           string   `json:"lessonId"`
	Action             string   `json:"action"`
	WatchTime          *float64 `json:"watchTime"`
	TotalDuration      *float64 `json:"totalDuration"`
	Completed          *bool    `json:"completed"`
	ProgressPercentage *int     `json:"progressPercentage"`
	TotalCourseLessons *int     `json:"totalCourseLessons"`
}

// POST /api/progress/lesson
func (h *ProgressHandler) UpdateLesson(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req lessonProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.LessonID = strings.TrimSpace(req.LessonID)
	if req.CourseID == "" || req.LessonID == "" {
		response.RespondError(c, http.StatusBadRequest, "Missing required fields", nil)
		return
	}

	ctx := c.Request.Context()
	var err error
	switch strings.TrimSpace(req.Action) {
	case services.ActionComplete:
		_, err = h.progress.MarkLessonCompleted(ctx, userID, req.CourseID, req.LessonID, req.TotalDuration, req.TotalCourseLessons)
	case services.ActionUpdateWatchTime:
		if req.WatchTime == nil {
			response.RespondError(c, http.StatusBadRequest, "watchTime is required for updateWatchTime", nil)
			return
		}
		_, err = h.progress.UpdateWatchTime(ctx, userID, req.CourseID, req.LessonID, *req.WatchTime, req.TotalDuration, req.TotalCourseLessons)
	case services.ActionUpdateProgress, "":
		_, err = h.progress.UpdateLessonProgress(ctx, userID, req.CourseID, req.LessonID, services.LessonProgressUpdate{
			Completed:          req.Completed,
			WatchTime:          req.WatchTime,
			TotalDuration:      req.TotalDuration,
			ProgressPercentage: req.ProgressPercentage,
		}, req.TotalCourseLessons)
	default:
		response.RespondError(c, http.StatusBadRequest, "Unknown action", nil)
		return
	}
	if err != nil {
		h.log.Warn("lesson progress update failed", "action", req.Action, "course_id", req.CourseID, "lesson_id", req.LessonID, "error", err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}

// GET /api/progress/lesson?courseId=&lessonId=
func (h *ProgressHandler) GetLesson(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID := strings.TrimSpace(c.Query("courseId"))
	lessonID := strings.TrimSpace(c.Query("lessonId"))
	if courseID == "" || lessonID == "" {
		response.RespondError(c, http.StatusBadRequest, "Missing required fields", nil)
		return
	}
	lp, err := h.progress.GetLessonProgress(c.Request.Context(), userID, courseID, lessonID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": lp})
}

// GET /api/progress/course?courseId=
func (h *ProgressHandler) GetCourse(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID := strings.TrimSpace(c.Query("courseId"))
	if courseID == "" {
		response.RespondError(c, http.StatusBadRequest, "Missing required fields", nil)
		return
	}
	ctx := c.Request.Context()
	cp, err := h.progress.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	lessons, err := h.progress.ListLessonProgress(ctx, userID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": cp, "lessons": lessons})
}

// POST /api/progress/reset
func (h *ProgressHandler) Reset(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		CourseID *string `json:"courseId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CourseID != nil && strings.TrimSpace(*req.CourseID) == "" {
		req.CourseID = nil
	}
	n, err := h.progress.ResetProgress(c.Request.Context(), userID, req.CourseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	msg := "All progress reset"
	if req.CourseID != nil {
		msg = "Course progress reset"
	}
	response.RespondOK(c, gin.H{"success": true, "message": msg, "deletedItems": n})
}

// GET /api/progress/debug?courseId=
func (h *ProgressHandler) Debug(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	courseID := strings.TrimSpace(c.Query("courseId"))
	if courseID == "" {
		response.RespondError(c, http.StatusBadRequest, "Missing required fields", nil)
		return
	}
	dbg, err := h.progress.DebugCourse(c.Request.Context(), userID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, dbg)
}

// GET /api/progress/stats
func (h *ProgressHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	stats, err := h.progress.GetUserProgressStats(c.Request.Context(), userID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, stats)
}

// GET /api/progress/recent
func (h *ProgressHandler) Recent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	recent, err := h.progress.GetRecentCourseActivity(c.Request.Context(), userID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": recent})
}
