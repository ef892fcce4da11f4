package store

import (
	"sync"

	"github.com/comexhq/comex/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhook subscriptions.
// Primary index: webhook id → webhook.
// Secondary index: account → event → webhook.
type WebhookStore struct {
	mu        sync.RWMutex
	webhooks  map[string]*domain.Webhook
	byAccount map[string]map[string]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks:  make(map[string]*domain.Webhook),
		byAccount: make(map[string]map[string]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription keyed by (account, event). If
// one already exists for the pair, its URL and UpdatedAt are refreshed and
// the webhook id stays stable. Returns true when a new subscription was
// created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events, ok := s.byAccount[w.Account]; ok {
		if existing, ok := events[w.Event]; ok {
			if existing.URL != w.URL {
				existing.URL = w.URL
				existing.UpdatedAt = w.UpdatedAt
			}
			return false
		}
	}

	s.webhooks[w.ID] = w
	if s.byAccount[w.Account] == nil {
		s.byAccount[w.Account] = make(map[string]*domain.Webhook)
	}
	s.byAccount[w.Account][w.Event] = w
	return true
}

// Get retrieves a webhook by id. It returns domain.ErrWebhookNotFound if
// the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// ListByAccount returns the account's subscriptions. Empty slice when the
// account has none.
func (s *WebhookStore) ListByAccount(account string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byAccount[account]
	out := make([]*domain.Webhook, 0, len(events))
	for _, w := range events {
		out = append(out, w)
	}
	return out
}

// Delete removes a webhook by id, cleaning both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}

	delete(s.webhooks, id)
	if events, ok := s.byAccount[w.Account]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.byAccount, w.Account)
		}
	}
	return nil
}

// GetByAccountEvent returns the subscription for an account+event pair, or
// nil when there is none.
func (s *WebhookStore) GetByAccountEvent(account, event string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byAccount[account]
	if events == nil {
		return nil
	}
	return events[event]
}
