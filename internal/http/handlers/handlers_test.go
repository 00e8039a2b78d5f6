package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursehub-backend/internal/services"
)

// asUser stands in for the auth middleware.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			ctx := ctxutil.WithSessionData(c.Request.Context(), &ctxutil.SessionData{UserID: userID, Email: userID + "@example.com"})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func do(r http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	premium map[string]bool
	events  []services.BillingEvent
}

func (f *fakeSubscriptions) IsUserPremium(ctx context.Context, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.premium[userID]
}

func (f *fakeSubscriptions) GetSubscription(ctx context.Context, userID string) (*services.Subscription, error) {
	status := types.SubscriptionNone
	if f.IsUserPremium(ctx, userID) {
		status = types.SubscriptionActive
	}
	return &services.Subscription{UserID: userID, IsPremium: status == types.SubscriptionActive, SubscriptionStatus: status}, nil
}

func (f *fakeSubscriptions) EnsureUser(ctx context.Context, userID, email string) (*types.User, error) {
	return &types.User{ID: userID, Email: email}, nil
}

func (f *fakeSubscriptions) ApplyBillingEvent(ctx context.Context, ev services.BillingEvent) (*services.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.UserID == "" && ev.Email == "" {
		return nil, apierr.BadRequest("billing_user_missing", "billing event has no user")
	}
	f.events = append(f.events, ev)
	return &services.Subscription{UserID: ev.UserID, IsPremium: true, SubscriptionStatus: types.SubscriptionActive}, nil
}
