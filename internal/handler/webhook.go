package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/notify"
)

// WebhookHandler handles HTTP requests for webhook subscriptions.
type WebhookHandler struct {
	notifySvc *notify.Service
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(notifySvc *notify.Service) *WebhookHandler {
	return &WebhookHandler{notifySvc: notifySvc}
}

// upsertWebhookRequest is the JSON request body for POST /webhooks.
type upsertWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// webhookResponse is the JSON representation of a webhook subscription.
type webhookResponse struct {
	WebhookID string `json:"webhook_id"`
	Account   string `json:"account"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func buildWebhookResponses(webhooks []*domain.Webhook) []webhookResponse {
	out := make([]webhookResponse, len(webhooks))
	for i, wh := range webhooks {
		out[i] = webhookResponse{
			WebhookID: wh.ID,
			Account:   wh.Account,
			Event:     wh.Event,
			URL:       wh.URL,
			CreatedAt: formatTime(wh.CreatedAt),
			UpdatedAt: formatTime(wh.UpdatedAt),
		}
	}
	return out
}

// Upsert handles POST /webhooks. Subscriptions belong to the
// authenticated caller; one subscription per (account, event).
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req upsertWebhookRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, created, err := h.notifySvc.Upsert(notify.UpsertRequest{
		Account: caller,
		URL:     req.URL,
		Events:  req.Events,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, map[string]any{"webhooks": buildWebhookResponses(webhooks)})
}

// List handles GET /webhooks. Returns the caller's subscriptions.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"webhooks": buildWebhookResponses(h.notifySvc.List(caller)),
	})
}

// Delete handles DELETE /webhooks/{webhook_id}. Only the owner may
// delete a subscription.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	webhookID := chi.URLParam(r, "webhook_id")

	owned := false
	for _, wh := range h.notifySvc.List(caller) {
		if wh.ID == webhookID {
			owned = true
			break
		}
	}
	if !owned {
		WriteDomainError(w, domain.ErrWebhookNotFound)
		return
	}

	if err := h.notifySvc.Delete(webhookID); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
