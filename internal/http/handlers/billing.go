package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/http/response"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/services"
)

const (
	SignatureHeader     = "X-Signature"
	maxBillingBodyBytes = 1 << 20
)

type BillingHandler struct {
	log    *logger.Logger
	subs   services.SubscriptionService
	secret []byte
}

func NewBillingHandler(log *logger.Logger, subs services.SubscriptionService, secret string) *BillingHandler {
	return &BillingHandler{
		log:    log.With("handler", "BillingHandler"),
		subs:   subs,
		secret: []byte(strings.TrimSpace(secret)),
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret, as expected in X-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *BillingHandler) verify(body []byte, sig string) bool {
	if len(h.secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// providerPayload is the nested webhook shape billing providers post.
type providerPayload struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID string `json:"user_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Attributes struct {
			Status    string `json:"status"`
			EndsAt    string `json:"ends_at"`
			UserEmail string `json:"user_email"`
		} `json:"attributes"`
	} `json:"data"`
}

func decodeBillingEvent(body []byte) (services.BillingEvent, error) {
	var nested providerPayload
	if err := json.Unmarshal(body, &nested); err != nil {
		return services.BillingEvent{}, err
	}
	if nested.Meta.EventName != "" {
		a := nested.Data.Attributes
		return services.BillingEvent{
			Type:   nested.Meta.EventName,
			UserID: nested.Meta.CustomData.UserID,
			Email:  a.UserEmail,
			Status: a.Status,
			EndsAt: a.EndsAt,
		}, nil
	}
	var flat services.BillingEvent
	if err := json.Unmarshal(body, &flat); err != nil {
		return services.BillingEvent{}, err
	}
	return flat, nil
}

// POST /api/webhooks/billing
func (h *BillingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBillingBodyBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(body) > maxBillingBodyBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "Payload too large", nil)
		return
	}
	if !h.verify(body, c.GetHeader(SignatureHeader)) {
		h.log.Warn("Billing webhook signature rejected", "remote", c.ClientIP())
		response.RespondError(c, http.StatusUnauthorized, "Invalid signature", nil)
		return
	}
	ev, err := decodeBillingEvent(body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sub, err := h.subs.ApplyBillingEvent(c.Request.Context(), ev)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	h.log.Info("Billing event applied", "event", ev.Type, "user_id", sub.UserID, "status", sub.SubscriptionStatus)
	response.RespondOK(c, gin.H{"success": true, "subscription": sub})
}
