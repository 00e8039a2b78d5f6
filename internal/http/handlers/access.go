package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/domain/learning"
	"github.com/yungbote/coursehub-backend/internal/guards"
	"github.com/yungbote/coursehub-backend/internal/http/response"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/services"
)

type AccessHandler struct {
	log     *logger.Logger
	guard   *guards.Guard
	catalog services.CatalogService
	subs    services.SubscriptionService
}

func NewAccessHandler(log *logger.Logger, guard *guards.Guard, catalog services.CatalogService, subs services.SubscriptionService) *AccessHandler {
	return &AccessHandler{
		log:     log.With("handler", "AccessHandler"),
		guard:   guard,
		catalog: catalog,
		subs:    subs,
	}
}

type contentSummary struct {
	ID     string            `json:"id"`
	Kind   types.ContentKind `json:"kind"`
	Slug   string            `json:"slug"`
	Title  string            `json:"title"`
	IsFree bool              `json:"isFree"`
}

func summarize(item *types.CatalogItem) contentSummary {
	return contentSummary{ID: item.ID, Kind: item.Kind, Slug: item.Slug, Title: item.Title, IsFree: item.IsFree}
}

func (h *AccessHandler) viewer(c *gin.Context) guards.Viewer {
	return guards.ResolveViewer(c.Request.Context(), ctxutil.GetSessionData(c.Request.Context()), h.subs)
}

func callbackURL(c *gin.Context, fallback string) string {
	if cb := strings.TrimSpace(c.Query("callbackUrl")); strings.HasPrefix(cb, "/") && !strings.HasPrefix(cb, "//") {
		return cb
	}
	return fallback
}

func (h *AccessHandler) lookup(c *gin.Context) (*types.CatalogItem, bool) {
	kind, ok := learning.ParseContentKind(strings.ToLower(c.Param("kind")))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "Unknown content kind", nil)
		return nil, false
	}
	item, err := h.catalog.GetBySlug(c.Request.Context(), kind, c.Param("slug"))
	if err != nil {
		response.RespondErr(c, err)
		return nil, false
	}
	return item, true
}

// GET /api/access/:kind/:slug
func (h *AccessHandler) Content(c *gin.Context) {
	item, ok := h.lookup(c)
	if !ok {
		return
	}
	d := h.guard.ContentGuard(h.viewer(c), item, callbackURL(c, "/"+string(item.Kind)+"s/"+item.Slug))
	response.RespondOK(c, gin.H{"decision": d, "content": summarize(item)})
}

// GET /api/access/:kind/:slug/lessons/:lessonId
func (h *AccessHandler) Lesson(c *gin.Context) {
	kind, ok := learning.ParseContentKind(strings.ToLower(c.Param("kind")))
	if !ok || kind != types.KindCourse {
		response.RespondError(c, http.StatusBadRequest, "Only courses have lessons", nil)
		return
	}
	lessonID := strings.TrimSpace(c.Param("lessonId"))
	item, idx, err := h.catalog.LessonPosition(c.Request.Context(), c.Param("slug"), lessonID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if idx < 0 {
		response.RespondError(c, http.StatusNotFound, "Lesson not found", nil)
		return
	}
	d := h.guard.LessonGuard(h.viewer(c), idx, callbackURL(c, "/courses/"+item.Slug+"/lessons/"+lessonID))
	response.RespondOK(c, gin.H{"decision": d, "content": summarize(item), "lessonId": lessonID})
}

// GET /api/subscription
func (h *AccessHandler) Subscription(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sub, err := h.subs.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, sub)
}
