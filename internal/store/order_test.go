package store

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/comexhq/comex/internal/domain"
)

func TestOrderStore_NextID_StrictlyIncreasing(t *testing.T) {
	s := NewOrderStore()

	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := s.NextID()
		if id <= prev {
			t.Fatalf("NextID() = %d, not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestOrderStore_FirstIDIsOne(t *testing.T) {
	s := NewOrderStore()
	if id := s.NextID(); id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
}

func TestOrderStore_CreateAndGet(t *testing.T) {
	s := NewOrderStore()
	o := &domain.Order{
		ID:     s.NextID(),
		Trader: "alice",
		Amount: decimal.NewFromInt(10),
		Status: domain.OrderStatusOpen,
	}
	s.Create(o)

	got, err := s.Get(o.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != o {
		t.Error("Get() should return the stored order")
	}
}

func TestOrderStore_Get_NotFound(t *testing.T) {
	s := NewOrderStore()
	if _, err := s.Get(42); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("Get() error = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderStore_ListByTrader_NewestFirst(t *testing.T) {
	s := NewOrderStore()
	first := &domain.Order{ID: s.NextID(), Trader: "alice"}
	second := &domain.Order{ID: s.NextID(), Trader: "alice"}
	other := &domain.Order{ID: s.NextID(), Trader: "bob"}
	s.Create(first)
	s.Create(second)
	s.Create(other)

	got := s.ListByTrader("alice")
	if len(got) != 2 {
		t.Fatalf("ListByTrader() returned %d orders, want 2", len(got))
	}
	if got[0] != second || got[1] != first {
		t.Error("ListByTrader() should return newest first")
	}
}

func TestOrderStore_Restore_AdvancesIDCounter(t *testing.T) {
	s := NewOrderStore()
	s.Restore(&domain.Order{ID: 7, Trader: "alice"})

	if id := s.NextID(); id != 8 {
		t.Errorf("NextID() after Restore(7) = %d, want 8", id)
	}
}
