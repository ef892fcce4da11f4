// Package service implements the application layer: capability checks,
// request validation, per-commodity serialization, journaling and
// notification around the ledger and matching engine.
package service

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/access"
	"github.com/comexhq/comex/internal/domain"
	"github.com/comexhq/comex/internal/journal"
	"github.com/comexhq/comex/internal/ledger"
	"github.com/comexhq/comex/internal/metrics"
)

var (
	accountRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	commodityRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)
	symbolRegex    = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// validAccount rejects malformed account ids and the reserved escrow
// account, whose balance only the engine may move.
func validAccount(field, account string) error {
	if !accountRegex.MatchString(account) {
		return &domain.ValidationError{Message: field + " must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if account == ledger.EscrowAccount {
		return &domain.ValidationError{Message: field + " must not be the reserved escrow account"}
	}
	return nil
}

// LedgerService wraps the token ledger with capability checks and
// journaling.
type LedgerService struct {
	access   *access.Control
	registry *ledger.Registry
	ledger   *ledger.Ledger
	journal  journal.Recorder
	metrics  *metrics.Metrics
	locks    *CommodityLocks
	log      zerolog.Logger
}

// NewLedgerService creates a LedgerService. locks must be shared with the
// TradingService so ledger and engine operations on one commodity are
// serialized together.
func NewLedgerService(
	ac *access.Control,
	registry *ledger.Registry,
	lg *ledger.Ledger,
	rec journal.Recorder,
	m *metrics.Metrics,
	locks *CommodityLocks,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		access:   ac,
		registry: registry,
		ledger:   lg,
		journal:  rec,
		metrics:  m,
		locks:    locks,
		log:      log,
	}
}

// record appends a journal event; failures are logged, never propagated,
// since the in-memory mutation has already been applied.
func (s *LedgerService) record(ctx context.Context, typ journal.EventType, payload any) {
	if err := s.journal.Record(ctx, typ, payload); err != nil {
		s.log.Error().Err(err).Str("event", string(typ)).Msg("journal append failed")
		return
	}
	s.metrics.JournalEvents.Inc()
}

// SetCompliance flips an account's compliance flag. Requires ADMIN.
func (s *LedgerService) SetCompliance(ctx context.Context, caller, account string, allowed bool) error {
	if err := s.access.Require(caller, access.CapAdmin); err != nil {
		return err
	}
	if err := validAccount("account", account); err != nil {
		return err
	}

	s.registry.Set(account, allowed)
	s.record(ctx, journal.EventComplianceSet, journal.CompliancePayload{Account: account, Allowed: allowed})
	s.log.Info().Str("account", account).Bool("allowed", allowed).Msg("compliance updated")
	return nil
}

// IsCompliant reports the account's compliance flag.
func (s *LedgerService) IsCompliant(account string) bool {
	return s.registry.IsAllowed(account)
}

// GrantCapability grants a capability to an account. Requires ADMIN.
func (s *LedgerService) GrantCapability(ctx context.Context, caller, account, capability string) error {
	if err := s.access.Require(caller, access.CapAdmin); err != nil {
		return err
	}
	if err := validAccount("account", account); err != nil {
		return err
	}
	cap := access.Capability(capability)
	if !access.Valid(cap) {
		return &domain.ValidationError{Message: "unknown capability: " + capability}
	}

	s.access.Grant(account, cap)
	s.record(ctx, journal.EventCapabilityGranted, journal.CapabilityPayload{Account: account, Capability: capability})
	s.log.Info().Str("account", account).Str("capability", capability).Msg("capability granted")
	return nil
}

// RevokeCapability removes a capability from an account. Requires ADMIN.
func (s *LedgerService) RevokeCapability(ctx context.Context, caller, account, capability string) error {
	if err := s.access.Require(caller, access.CapAdmin); err != nil {
		return err
	}
	cap := access.Capability(capability)
	if !access.Valid(cap) {
		return &domain.ValidationError{Message: "unknown capability: " + capability}
	}

	s.access.Revoke(account, cap)
	s.record(ctx, journal.EventCapabilityRevoked, journal.CapabilityPayload{Account: account, Capability: capability})
	s.log.Info().Str("account", account).Str("capability", capability).Msg("capability revoked")
	return nil
}

// ListCapabilities returns the capabilities an account holds.
func (s *LedgerService) ListCapabilities(account string) []access.Capability {
	return s.access.List(account)
}

// RegisterCommodity creates a new commodity with zero supply. Requires
// ADMIN.
func (s *LedgerService) RegisterCommodity(ctx context.Context, caller, id, name, symbol string) (domain.Commodity, error) {
	if err := s.access.Require(caller, access.CapAdmin); err != nil {
		return domain.Commodity{}, err
	}
	if !commodityRegex.MatchString(id) {
		return domain.Commodity{}, &domain.ValidationError{Message: "commodity id must match ^[a-z0-9][a-z0-9_-]{0,31}$"}
	}
	if name == "" || len(name) > 128 {
		return domain.Commodity{}, &domain.ValidationError{Message: "name must be between 1 and 128 characters"}
	}
	if !symbolRegex.MatchString(symbol) {
		return domain.Commodity{}, &domain.ValidationError{Message: "symbol must match ^[A-Z]{1,10}$"}
	}

	if err := s.ledger.Register(id, name, symbol); err != nil {
		return domain.Commodity{}, err
	}
	s.record(ctx, journal.EventCommodityRegistered, journal.CommodityPayload{ID: id, Name: name, Symbol: symbol})
	s.log.Info().Str("commodity", id).Str("symbol", symbol).Msg("commodity registered")
	return s.ledger.Info(id)
}

// Mint issues new tokens to a compliant account. Requires MINTER.
func (s *LedgerService) Mint(ctx context.Context, caller, to, commodity string, amount decimal.Decimal) error {
	if err := s.access.Require(caller, access.CapMinter); err != nil {
		return err
	}
	if err := validAccount("to", to); err != nil {
		return err
	}

	unlock := s.locks.Lock(commodity)
	defer unlock()

	if err := s.ledger.Mint(to, commodity, amount); err != nil {
		return err
	}
	s.record(ctx, journal.EventMint, journal.MintPayload{To: to, Commodity: commodity, Amount: amount})
	return nil
}

// Transfer moves tokens from the caller to another account. Compliance of
// both parties and the pause flag are enforced by the ledger.
func (s *LedgerService) Transfer(ctx context.Context, caller, to, commodity string, amount decimal.Decimal) error {
	if err := validAccount("from", caller); err != nil {
		return err
	}
	if err := validAccount("to", to); err != nil {
		return err
	}
	if caller == to {
		return &domain.ValidationError{Message: "cannot transfer to self"}
	}

	unlock := s.locks.Lock(commodity)
	defer unlock()

	if err := s.ledger.Transfer(caller, to, commodity, amount); err != nil {
		return err
	}
	s.record(ctx, journal.EventTransfer, journal.TransferPayload{From: caller, To: to, Commodity: commodity, Amount: amount})
	return nil
}

// ValidateQuality records an externally verified quality score. Requires
// QUALITY_VERIFIER.
func (s *LedgerService) ValidateQuality(ctx context.Context, caller, commodity string, score int) error {
	if err := s.access.Require(caller, access.CapQualityVerifier); err != nil {
		return err
	}
	if err := s.ledger.SetQuality(commodity, score); err != nil {
		return err
	}
	s.record(ctx, journal.EventQualityValidated, journal.QualityPayload{Commodity: commodity, Score: score})
	return nil
}

// UpdatePrice records an externally sourced reference price. Requires
// PRICE_UPDATER.
func (s *LedgerService) UpdatePrice(ctx context.Context, caller, commodity string, price decimal.Decimal) error {
	if err := s.access.Require(caller, access.CapPriceUpdater); err != nil {
		return err
	}
	if err := s.ledger.SetPrice(commodity, price); err != nil {
		return err
	}
	s.record(ctx, journal.EventPriceUpdated, journal.PricePayload{Commodity: commodity, Price: price})
	return nil
}

// Pause halts mint and transfer for a commodity. Requires PAUSER.
func (s *LedgerService) Pause(ctx context.Context, caller, commodity string) error {
	if err := s.access.Require(caller, access.CapPauser); err != nil {
		return err
	}

	unlock := s.locks.Lock(commodity)
	defer unlock()

	if err := s.ledger.Pause(commodity); err != nil {
		return err
	}
	s.record(ctx, journal.EventPaused, journal.PausePayload{Commodity: commodity})
	s.log.Warn().Str("commodity", commodity).Msg("commodity paused")
	return nil
}

// Unpause resumes mint and transfer. Requires PAUSER.
func (s *LedgerService) Unpause(ctx context.Context, caller, commodity string) error {
	if err := s.access.Require(caller, access.CapPauser); err != nil {
		return err
	}

	unlock := s.locks.Lock(commodity)
	defer unlock()

	if err := s.ledger.Unpause(commodity); err != nil {
		return err
	}
	s.record(ctx, journal.EventUnpaused, journal.PausePayload{Commodity: commodity})
	s.log.Info().Str("commodity", commodity).Msg("commodity unpaused")
	return nil
}

// BalanceOf returns an account's balance for a commodity.
func (s *LedgerService) BalanceOf(account, commodity string) (decimal.Decimal, error) {
	return s.ledger.BalanceOf(account, commodity)
}

// Commodity returns the commodity record.
func (s *LedgerService) Commodity(commodity string) (domain.Commodity, error) {
	return s.ledger.Info(commodity)
}

// Balances returns every non-zero balance for a commodity.
func (s *LedgerService) Balances(commodity string) (map[string]decimal.Decimal, error) {
	return s.ledger.Balances(commodity)
}
