package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comexhq/comex/internal/domain"
)

func newTestLedger(t *testing.T, compliant ...string) (*Ledger, *Registry) {
	t.Helper()
	reg := NewRegistry()
	for _, a := range compliant {
		reg.Set(a, true)
	}
	l := NewLedger(reg)
	require.NoError(t, l.Register("coffee-robusta", "Coffee Robusta Token", "CRT"))
	return l, reg
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRegister_Duplicate(t *testing.T) {
	l, _ := newTestLedger(t)
	err := l.Register("coffee-robusta", "Coffee Robusta Token", "CRT")
	assert.ErrorIs(t, err, domain.ErrCommodityExists)
}

func TestMint_IncreasesBalanceAndSupply(t *testing.T) {
	l, _ := newTestLedger(t, "alice")

	require.NoError(t, l.Mint("alice", "coffee-robusta", dec("100")))

	bal, err := l.BalanceOf("alice", "coffee-robusta")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("100")))

	info, err := l.Info("coffee-robusta")
	require.NoError(t, err)
	assert.True(t, info.TotalSupply.Equal(dec("100")))
}

func TestMint_NonCompliantRecipient_NoEffect(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.Mint("mallory", "coffee-robusta", dec("100"))
	assert.ErrorIs(t, err, domain.ErrNotCompliant)

	bal, err := l.BalanceOf("mallory", "coffee-robusta")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	info, err := l.Info("coffee-robusta")
	require.NoError(t, err)
	assert.True(t, info.TotalSupply.IsZero())
}

func TestMint_InvalidAmount(t *testing.T) {
	l, _ := newTestLedger(t, "alice")

	var verr *domain.ValidationError
	assert.ErrorAs(t, l.Mint("alice", "coffee-robusta", decimal.Zero), &verr)
	assert.ErrorAs(t, l.Mint("alice", "coffee-robusta", dec("-5")), &verr)
}

func TestMint_UnknownCommodity(t *testing.T) {
	l, _ := newTestLedger(t, "alice")
	err := l.Mint("alice", "gold", dec("1"))
	assert.ErrorIs(t, err, domain.ErrCommodityNotFound)
}

func TestTransfer_MovesBalanceAtomically(t *testing.T) {
	l, _ := newTestLedger(t, "alice", "bob")
	require.NoError(t, l.Mint("alice", "coffee-robusta", dec("1000")))

	require.NoError(t, l.Transfer("alice", "bob", "coffee-robusta", dec("100")))

	aliceBal, _ := l.BalanceOf("alice", "coffee-robusta")
	bobBal, _ := l.BalanceOf("bob", "coffee-robusta")
	assert.True(t, aliceBal.Equal(dec("900")))
	assert.True(t, bobBal.Equal(dec("100")))
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t, "alice", "bob")
	require.NoError(t, l.Mint("alice", "coffee-robusta", dec("10")))

	err := l.Transfer("alice", "bob", "coffee-robusta", dec("11"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	aliceBal, _ := l.BalanceOf("alice", "coffee-robusta")
	assert.True(t, aliceBal.Equal(dec("10")))
}

func TestTransfer_NonCompliantParty(t *testing.T) {
	l, reg := newTestLedger(t, "alice", "bob")
	require.NoError(t, l.Mint("alice", "coffee-robusta", dec("10")))

	reg.Set("bob", false)
	assert.ErrorIs(t, l.Transfer("alice", "bob", "coffee-robusta", dec("1")), domain.ErrNotCompliant)

	reg.Set("bob", true)
	reg.Set("alice", false)
	assert.ErrorIs(t, l.Transfer("alice", "bob", "coffee-robusta", dec("1")), domain.ErrNotCompliant)
}

func TestPause_GatesMintAndTransfer(t *testing.T) {
	l, _ := newTestLedger(t, "alice", "bob")
	require.NoError(t, l.Mint("alice", "coffee-robusta", dec("10")))

	require.NoError(t, l.Pause("coffee-robusta"))

	assert.ErrorIs(t, l.Mint("alice", "coffee-robusta", dec("1")), domain.ErrPaused)
	assert.ErrorIs(t, l.Transfer("alice", "bob", "coffee-robusta", dec("1")), domain.ErrPaused)

	// Pausing twice fails, unpausing resumes, unpausing twice fails.
	assert.ErrorIs(t, l.Pause("coffee-robusta"), domain.ErrPaused)
	require.NoError(t, l.Unpause("coffee-robusta"))
	assert.NoError(t, l.Transfer("alice", "bob", "coffee-robusta", dec("1")))
	assert.ErrorIs(t, l.Unpause("coffee-robusta"), domain.ErrNotPaused)
}

func TestEscrow_InOutRefund(t *testing.T) {
	l, _ := newTestLedger(t, "seller", "buyer")
	require.NoError(t, l.Mint("seller", "coffee-robusta", dec("20")))

	// Escrow 15: seller drops to 5.
	require.NoError(t, l.EscrowIn("seller", "coffee-robusta", dec("15")))
	sellerBal, _ := l.BalanceOf("seller", "coffee-robusta")
	assert.True(t, sellerBal.Equal(dec("5")))
	escrowBal, _ := l.BalanceOf(EscrowAccount, "coffee-robusta")
	assert.True(t, escrowBal.Equal(dec("15")))

	// Settle 10 to the buyer.
	require.NoError(t, l.EscrowOut("buyer", "coffee-robusta", dec("10")))
	buyerBal, _ := l.BalanceOf("buyer", "coffee-robusta")
	assert.True(t, buyerBal.Equal(dec("10")))

	// Refund the remaining 5 to the seller.
	require.NoError(t, l.EscrowRefund("seller", "coffee-robusta", dec("5")))
	sellerBal, _ = l.BalanceOf("seller", "coffee-robusta")
	assert.True(t, sellerBal.Equal(dec("10")))
	escrowBal, _ = l.BalanceOf(EscrowAccount, "coffee-robusta")
	assert.True(t, escrowBal.IsZero())
}

func TestEscrowIn_InsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t, "seller")
	require.NoError(t, l.Mint("seller", "coffee-robusta", dec("5")))

	err := l.EscrowIn("seller", "coffee-robusta", dec("6"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestEscrowRefund_WorksWhilePaused(t *testing.T) {
	l, _ := newTestLedger(t, "seller")
	require.NoError(t, l.Mint("seller", "coffee-robusta", dec("10")))
	require.NoError(t, l.EscrowIn("seller", "coffee-robusta", dec("10")))
	require.NoError(t, l.Pause("coffee-robusta"))

	assert.NoError(t, l.EscrowRefund("seller", "coffee-robusta", dec("10")))
}

func TestSetQuality(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.SetQuality("coffee-robusta", 85))
	info, _ := l.Info("coffee-robusta")
	assert.Equal(t, 85, info.QualityScore)

	var verr *domain.ValidationError
	assert.ErrorAs(t, l.SetQuality("coffee-robusta", 101), &verr)
	assert.ErrorAs(t, l.SetQuality("coffee-robusta", -1), &verr)
}

func TestSetPrice(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.SetPrice("coffee-robusta", dec("50.00")))
	info, _ := l.Info("coffee-robusta")
	assert.True(t, info.ReferencePrice.Equal(dec("50")))

	var verr *domain.ValidationError
	assert.ErrorAs(t, l.SetPrice("coffee-robusta", decimal.Zero), &verr)
	assert.ErrorAs(t, l.SetPrice("coffee-robusta", dec("-1")), &verr)
}
