package mmodel

import (
	"testing"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}

	return d
}

func TestApplyDeposit(t *testing.T) {
	b := NewZeroBalance("1", "USDT")

	next, err := b.Apply(cn.DEPOSIT, dec("100.00"))
	require.NoError(t, err)

	assert.True(t, next.Available.Equal(dec("100.00")))
	assert.True(t, next.Frozen.IsZero())
	assert.Equal(t, int64(1), next.Version)
}

func TestApplyWithdrawExactBoundary(t *testing.T) {
	b := Balance{AccountID: "1", Currency: "USDT", Available: dec("100"), Frozen: decimal.Zero, Version: 1}

	// Withdrawing exactly the available amount succeeds and leaves zero.
	next, err := b.Apply(cn.WITHDRAW, dec("100"))
	require.NoError(t, err)
	assert.True(t, next.Available.IsZero())
	assert.Equal(t, int64(2), next.Version)

	// One unit more is rejected and the state is unchanged.
	same, err := b.Apply(cn.WITHDRAW, dec("100.000000000000000001"))
	require.ErrorIs(t, err, cn.ErrInsufficientFunds)
	assert.True(t, same.Available.Equal(b.Available))
	assert.Equal(t, b.Version, same.Version)
}

func TestApplyFreezeUnfreeze(t *testing.T) {
	b := Balance{AccountID: "1", Currency: "USDT", Available: dec("100"), Frozen: decimal.Zero, Version: 1}

	frozen, err := b.Apply(cn.FREEZE, dec("40"))
	require.NoError(t, err)
	assert.True(t, frozen.Available.Equal(dec("60")))
	assert.True(t, frozen.Frozen.Equal(dec("40")))

	back, err := frozen.Apply(cn.UNFREEZE, dec("40"))
	require.NoError(t, err)
	assert.True(t, back.Available.Equal(dec("100")))
	assert.True(t, back.Frozen.IsZero())
	assert.Equal(t, int64(3), back.Version)
}

func TestApplyFreezeOverAvailable(t *testing.T) {
	b := Balance{Available: dec("10"), Frozen: decimal.Zero, Version: 1}

	_, err := b.Apply(cn.FREEZE, dec("10.5"))
	assert.ErrorIs(t, err, cn.ErrInsufficientFunds)
}

func TestApplyUnfreezeOverFrozen(t *testing.T) {
	b := Balance{Available: dec("10"), Frozen: dec("5"), Version: 1}

	_, err := b.Apply(cn.UNFREEZE, dec("5.01"))
	assert.ErrorIs(t, err, cn.ErrInsufficientFrozenFunds)
}

func TestApplyTransferBehavesAsWithdraw(t *testing.T) {
	b := Balance{Available: dec("30"), Frozen: decimal.Zero, Version: 7}

	next, err := b.Apply(cn.TRANSFER, dec("30"))
	require.NoError(t, err)
	assert.True(t, next.Available.IsZero())

	_, err = b.Apply(cn.TRANSFER, dec("31"))
	assert.ErrorIs(t, err, cn.ErrInsufficientFunds)
}

func TestApplyUnknownKind(t *testing.T) {
	b := Balance{Available: dec("1")}

	_, err := b.Apply("mint", dec("1"))
	assert.ErrorIs(t, err, cn.ErrInvalidMutation)
}

func TestMutationRequestValidate(t *testing.T) {
	valid := MutationRequest{
		Schema:        MutationSchemaVersion,
		TransactionID: "t1",
		AccountID:     "1",
		Currency:      "USDT",
		Kind:          cn.DEPOSIT,
		Amount:        dec("1"),
	}
	assert.NoError(t, valid.Validate())

	zeroAmount := valid
	zeroAmount.Amount = decimal.Zero
	assert.ErrorIs(t, zeroAmount.Validate(), cn.ErrInvalidMutation)

	negative := valid
	negative.Amount = dec("-3")
	assert.ErrorIs(t, negative.Validate(), cn.ErrInvalidMutation)

	badKind := valid
	badKind.Kind = "burn"
	assert.ErrorIs(t, badKind.Validate(), cn.ErrInvalidMutation)

	noTx := valid
	noTx.TransactionID = ""
	assert.ErrorIs(t, noTx.Validate(), cn.ErrInvalidMutation)
}
