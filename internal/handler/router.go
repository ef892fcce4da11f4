package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/comexhq/comex/internal/notify"
	"github.com/comexhq/comex/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and Content-Type validation middleware. metricsHandler may be
// nil to disable the /metrics endpoint.
func NewRouter(
	ledgerSvc *service.LedgerService,
	tradingSvc *service.TradingService,
	notifySvc *notify.Service,
	metricsHandler http.Handler,
	logger zerolog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	ledgerH := NewLedgerHandler(ledgerSvc)
	tradingH := NewTradingHandler(tradingSvc)
	webhookH := NewWebhookHandler(notifySvc)

	// Health check and metrics.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Get("/metrics", metricsHandler.ServeHTTP)
	}

	// Account routes.
	r.Put("/accounts/{account}/compliance", ledgerH.SetCompliance)
	r.Get("/accounts/{account}/compliance", ledgerH.GetCompliance)
	r.Post("/accounts/{account}/capabilities", ledgerH.GrantCapability)
	r.Delete("/accounts/{account}/capabilities/{capability}", ledgerH.RevokeCapability)
	r.Get("/accounts/{account}/capabilities", ledgerH.ListCapabilities)
	r.Get("/accounts/{account}/balances/{commodity}", ledgerH.GetBalance)
	r.Get("/accounts/{account}/orders", tradingH.ListOrders)

	// Commodity routes.
	r.Post("/commodities", ledgerH.RegisterCommodity)
	r.Get("/commodities/{commodity}", ledgerH.GetCommodity)
	r.Post("/commodities/{commodity}/mint", ledgerH.Mint)
	r.Post("/commodities/{commodity}/transfer", ledgerH.Transfer)
	r.Put("/commodities/{commodity}/quality", ledgerH.ValidateQuality)
	r.Put("/commodities/{commodity}/price", ledgerH.UpdatePrice)
	r.Post("/commodities/{commodity}/pause", ledgerH.Pause)
	r.Post("/commodities/{commodity}/unpause", ledgerH.Unpause)
	r.Get("/commodities/{commodity}/balances", ledgerH.ListBalances)
	r.Get("/commodities/{commodity}/book", tradingH.GetBook)
	r.Get("/commodities/{commodity}/trades", tradingH.ListTrades)

	// Trading pair routes.
	r.Post("/pairs", tradingH.AddPair)
	r.Get("/pairs", tradingH.ListPairs)
	r.Get("/pairs/{commodity}", tradingH.GetPair)
	r.Patch("/pairs/{commodity}", tradingH.SetPairActive)

	// Order routes.
	r.Post("/orders", tradingH.CreateOrder)
	r.Get("/orders/{order_id}", tradingH.GetOrder)
	r.Delete("/orders/{order_id}", tradingH.CancelOrder)

	// Circuit breaker routes.
	r.Post("/breaker/trigger", tradingH.TriggerBreaker)
	r.Post("/breaker/reset", tradingH.ResetBreaker)
	r.Get("/breaker", tradingH.GetBreaker)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration.
func requestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST,
// PUT, and PATCH requests carrying a body. If the Content-Type header
// doesn't start with "application/json", it returns 400 Bad Request
// before the handler runs. Bodyless requests (pause, breaker) pass.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 &&
			(r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
