package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/http/response"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
)

// requireUser returns the authenticated user id or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	sd := ctxutil.GetSessionData(c.Request.Context())
	if sd == nil || strings.TrimSpace(sd.UserID) == "" {
		response.RespondError(c, http.StatusUnauthorized, "Unauthorized", nil)
		return "", false
	}
	return sd.UserID, true
}
