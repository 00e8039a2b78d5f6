package handlers

import (
	"net/http"
	"testing"

	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

func newBillingRouter(secret string) (*fakeSubscriptions, http.Handler) {
	subs := &fakeSubscriptions{}
	h := NewBillingHandler(logger.Nop(), subs, secret)
	r := newEngine()
	r.POST("/api/webhooks/billing", h.Webhook)
	return subs, r
}

func TestBillingWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"subscription_created","userId":"u1"}`)
	subs, r := newBillingRouter("whsec")

	rec := do(r, http.MethodPost, "/api/webhooks/billing", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: want=401 got=%d", rec.Code)
	}
	rec = do(r, http.MethodPost, "/api/webhooks/billing", body, map[string]string{SignatureHeader: Sign("other", body)})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: want=401 got=%d", rec.Code)
	}
	rec = do(r, http.MethodPost, "/api/webhooks/billing", body, map[string]string{SignatureHeader: "not-hex"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage signature: want=401 got=%d", rec.Code)
	}
	if len(subs.events) != 0 {
		t.Fatalf("rejected events applied: %d", len(subs.events))
	}

	rec = do(r, http.MethodPost, "/api/webhooks/billing", body, map[string]string{SignatureHeader: Sign("whsec", body)})
	if rec.Code != http.StatusOK {
		t.Fatalf("signed: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(subs.events) != 1 || subs.events[0].Type != "subscription_created" || subs.events[0].UserID != "u1" {
		t.Fatalf("applied events: %+v", subs.events)
	}
}

func TestBillingWebhookWithoutSecretRejectsEverything(t *testing.T) {
	body := []byte(`{"type":"subscription_created","userId":"u1"}`)
	subs, r := newBillingRouter("  ")
	rec := do(r, http.MethodPost, "/api/webhooks/billing", body, map[string]string{SignatureHeader: Sign("", body)})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want=401 got=%d", rec.Code)
	}
	if len(subs.events) != 0 {
		t.Fatalf("events applied without a secret")
	}
}

func TestBillingWebhookProviderPayload(t *testing.T) {
	body := []byte(`{
		"meta": {"event_name": "subscription_cancelled", "custom_data": {"user_id": "u9"}},
		"data": {"attributes": {"status": "cancelled", "ends_at": "2026-07-01T00:00:00Z", "user_email": "u9@example.com"}}
	}`)
	subs, r := newBillingRouter("whsec")
	rec := do(r, http.MethodPost, "/api/webhooks/billing", body, map[string]string{SignatureHeader: Sign("whsec", body)})
	if rec.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	ev := subs.events[0]
	if ev.Type != "subscription_cancelled" || ev.UserID != "u9" || ev.Email != "u9@example.com" || ev.Status != "cancelled" || ev.EndsAt != "2026-07-01T00:00:00Z" {
		t.Fatalf("mapped event: %+v", ev)
	}
}

func TestBillingWebhookServiceErrors(t *testing.T) {
	body := []byte(`{"type":"subscription_created"}`)
	_, r := newBillingRouter("whsec")
	rec := do(r, http.MethodPost, "/api/webhooks/billing", body, map[string]string{SignatureHeader: Sign("whsec", body)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", rec.Code)
	}

	bad := []byte(`{"type":`)
	rec = do(r, http.MethodPost, "/api/webhooks/billing", bad, map[string]string{SignatureHeader: Sign("whsec", bad)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed: want=400 got=%d", rec.Code)
	}
}
