package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/platform/session"
)

const SessionCookie = "session"

// UserEnsurer creates the free-tier user record on first sight.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, userID, email string) (*types.User, error)
}

type AuthMiddleware struct {
	log      *logger.Logger
	verifier *session.Verifier
	users    UserEnsurer
	ensured  sync.Map
}

func NewAuthMiddleware(log *logger.Logger, verifier *session.Verifier, users UserEnsurer) *AuthMiddleware {
	return &AuthMiddleware{
		log:      log.With("Middleware", "AuthMiddleware"),
		verifier: verifier,
		users:    users,
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sd, err := am.authenticate(c)
		if err != nil || sd == nil {
			if err != nil {
				am.log.Debug("rejected session token", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the session when a valid token is present and lets anonymous
// requests through otherwise.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := am.authenticate(c); err != nil {
			am.log.Debug("ignoring invalid session token", "error", err)
		}
		c.Next()
	}
}

func (am *AuthMiddleware) authenticate(c *gin.Context) (*ctxutil.SessionData, error) {
	token := extractTokenFromAll(c)
	if token == "" || am.verifier == nil {
		return nil, nil
	}
	claims, err := am.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	sd := &ctxutil.SessionData{
		UserID:    claims.Subject,
		Email:     claims.Email,
		IsPremium: claims.IsPremium,
	}
	am.ensureUser(c.Request.Context(), sd)
	c.Request = c.Request.WithContext(ctxutil.WithSessionData(c.Request.Context(), sd))
	c.Set("user_id", sd.UserID)
	return sd, nil
}

// ensureUser runs once per user per process. Failures are logged and retried on the next
// request.
func (am *AuthMiddleware) ensureUser(ctx context.Context, sd *ctxutil.SessionData) {
	if am.users == nil {
		return
	}
	if _, seen := am.ensured.Load(sd.UserID); seen {
		return
	}
	if _, err := am.users.EnsureUser(ctx, sd.UserID, sd.Email); err != nil {
		am.log.Warn("ensure user failed", "user_id", sd.UserID, "error", err)
		return
	}
	am.ensured.Store(sd.UserID, struct{}{})
}

func extractTokenFromAll(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	// EventSource cannot set headers, so the stream endpoint passes the token in the query.
	return strings.TrimSpace(c.Query("token"))
}
