// Package journal persists every state-changing operation as an
// append-only event stream. Replaying the stream from an empty state
// reproduces the ledger, order books and breaker exactly.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
)

// EventType identifies what a journal event records.
type EventType string

const (
	EventComplianceSet       EventType = "compliance_set"
	EventCapabilityGranted   EventType = "capability_granted"
	EventCapabilityRevoked   EventType = "capability_revoked"
	EventCommodityRegistered EventType = "commodity_registered"
	EventMint                EventType = "mint"
	EventTransfer            EventType = "transfer"
	EventQualityValidated    EventType = "quality_validated"
	EventPriceUpdated        EventType = "price_updated"
	EventPaused              EventType = "paused"
	EventUnpaused            EventType = "unpaused"
	EventPairAdded           EventType = "pair_added"
	EventPairStatusChanged   EventType = "pair_status_changed"
	EventOrderCreated        EventType = "order_created"
	EventOrderFilled         EventType = "order_filled"
	EventOrderCancelled      EventType = "order_cancelled"
	EventOrderExpired        EventType = "order_expired"
	EventBreakerTriggered    EventType = "breaker_triggered"
	EventBreakerReset        EventType = "breaker_reset"
)

// Event is one entry of the journal. Seq is assigned by the store and is
// strictly increasing.
type Event struct {
	Seq     uint64
	Type    EventType
	At      time.Time
	Payload json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Payload types, one per event family. Every field needed to re-apply the
// effect is carried in the payload; replay never re-runs the matcher.

type CompliancePayload struct {
	Account string `json:"account"`
	Allowed bool   `json:"allowed"`
}

type CapabilityPayload struct {
	Account    string `json:"account"`
	Capability string `json:"capability"`
}

type CommodityPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type MintPayload struct {
	To        string          `json:"to"`
	Commodity string          `json:"commodity"`
	Amount    decimal.Decimal `json:"amount"`
}

type TransferPayload struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Commodity string          `json:"commodity"`
	Amount    decimal.Decimal `json:"amount"`
}

type QualityPayload struct {
	Commodity string `json:"commodity"`
	Score     int    `json:"score"`
}

type PricePayload struct {
	Commodity string          `json:"commodity"`
	Price     decimal.Decimal `json:"price"`
}

type PausePayload struct {
	Commodity string `json:"commodity"`
}

type PairPayload struct {
	Commodity      string          `json:"commodity"`
	MinOrderSize   decimal.Decimal `json:"min_order_size"`
	MaxOrderSize   decimal.Decimal `json:"max_order_size"`
	PricePrecision int32           `json:"price_precision"`
	Active         bool            `json:"active"`
}

// OrderCreatedPayload snapshots the order as accepted, before any fill.
// The fills of the same call follow as order_filled events.
type OrderCreatedPayload struct {
	Order domain.Order `json:"order"`
}

// OrderFilledPayload records one trade together with the orders' state
// after the fill was applied.
type OrderFilledPayload struct {
	Trade       domain.Trade       `json:"trade"`
	MakerStatus domain.OrderStatus `json:"maker_status"`
	TakerStatus domain.OrderStatus `json:"taker_status"`
}

// OrderClosedPayload records a cancellation or expiration and the escrow
// amount returned to the trader (zero for buy orders).
type OrderClosedPayload struct {
	OrderID uint64          `json:"order_id"`
	At      time.Time       `json:"at"`
	Refund  decimal.Decimal `json:"refund"`
}

type BreakerPayload struct {
	At time.Time `json:"at"`
}

// Recorder appends events to the journal. Implementations must preserve
// call order.
type Recorder interface {
	Record(ctx context.Context, typ EventType, payload any) error
}

// SQLiteStore is the durable journal backed by a single SQLite file in
// WAL mode.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

const schemaVersion = "1"

// OpenSQLite opens (creating if necessary) the journal database at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	var stored string
	err = db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec(
			"INSERT INTO metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)",
			schemaVersion, time.Now().Unix(),
		); err != nil {
			db.Close()
			return nil, fmt.Errorf("write schema version: %w", err)
		}
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	case stored != schemaVersion:
		db.Close()
		return nil, fmt.Errorf("journal schema version %s is not supported (want %s)", stored, schemaVersion)
	}

	return &SQLiteStore{db: db}, nil
}

// Record appends one event. The payload is stored as JSON.
func (s *SQLiteStore) Record(ctx context.Context, typ EventType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO events (type, at, payload) VALUES (?, ?, ?)",
		string(typ), time.Now().UnixNano(), raw,
	); err != nil {
		return fmt.Errorf("insert %s event: %w", typ, err)
	}
	return nil
}

// Load returns every event in append order.
func (s *SQLiteStore) Load(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, type, at, payload FROM events ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			id      uint64
			typ     string
			at      int64
			payload []byte
		)
		if err := rows.Scan(&id, &typ, &at, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, Event{
			Seq:     id,
			Type:    EventType(typ),
			At:      time.Unix(0, at),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryRecorder keeps events in memory. Used in tests and when running
// without persistence.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends one event.
func (m *MemoryRecorder) Record(_ context.Context, typ EventType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		Seq:     uint64(len(m.events) + 1),
		Type:    typ,
		At:      time.Now(),
		Payload: raw,
	})
	return nil
}

// Events returns a copy of the recorded events.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
