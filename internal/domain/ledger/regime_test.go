package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		name     string
		origin   Origin
		txType   string
		expected Regime
	}{
		{"marketplace sale is accrual", OriginMarketplace, TxTypeSale, RegimeAccrual},
		{"marketplace payout is cash", OriginMarketplace, TxTypePayout, RegimeCash},
		{"marketplace settlement is cash", OriginMarketplace, TxTypeSettlement, RegimeCash},
		{"bank is always cash", OriginBank, "", RegimeCash},
		{"bank ignores type", OriginBank, TxTypeSale, RegimeCash},
		{"payable settlement is cash", OriginPayable, TxTypeSettlement, RegimeCash},
		{"receivable settlement is cash", OriginReceivable, TxTypeSettlement, RegimeCash},
		{"card line expense is accrual", OriginCard, TxTypeCardExpense, RegimeAccrual},
		{"card invoice payment is cash", OriginCard, TxTypeInvoicePayment, RegimeCash},
		{"manual is cash", OriginManual, "", RegimeCash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyRegime(tt.origin, tt.txType))
		})
	}
}

// Every (origin, type) combination maps to exactly one regime, so the cash
// and DRE views partition the ledger with no overlap.
func TestRegimePartition(t *testing.T) {
	origins := []Origin{OriginManual, OriginBank, OriginCard, OriginPayable, OriginReceivable, OriginMarketplace}
	types := []string{"", TxTypeSale, TxTypePayout, TxTypeSettlement, TxTypeCardExpense, TxTypeInvoicePayment}

	for _, origin := range origins {
		for _, txType := range types {
			regime := ClassifyRegime(origin, txType)
			assert.True(t, regime.IsValid(), "origin=%s type=%s", origin, txType)
			assert.NotEqual(t, regime == RegimeCash, regime == RegimeAccrual)
		}
	}
}

func TestNewMovementDerivesRegime(t *testing.T) {
	m, err := NewMovement(uuid.New(), OriginMarketplace, TxTypeSale, DirectionIn,
		time.Now(), decimal.NewFromFloat(100), "Venda ML")
	require.NoError(t, err)

	assert.Equal(t, RegimeAccrual, m.Regime)
	assert.True(t, m.AppearsInDRE())
	assert.False(t, m.AppearsInCashFlow())

	payout, err := NewMovement(uuid.New(), OriginMarketplace, TxTypePayout, DirectionIn,
		time.Now(), decimal.NewFromFloat(90), "Repasse ML")
	require.NoError(t, err)

	assert.True(t, payout.AppearsInCashFlow())
	assert.False(t, payout.AppearsInDRE())
}

func TestNewMovementValidation(t *testing.T) {
	_, err := NewMovement(uuid.Nil, OriginBank, "", DirectionIn, time.Now(), decimal.Zero, "")
	assert.Error(t, err)

	_, err = NewMovement(uuid.New(), Origin("PIX"), "", DirectionIn, time.Now(), decimal.Zero, "")
	assert.Error(t, err)

	_, err = NewMovement(uuid.New(), OriginBank, "", Direction("SIDEWAYS"), time.Now(), decimal.Zero, "")
	assert.Error(t, err)

	_, err = NewMovement(uuid.New(), OriginBank, "", DirectionIn, time.Time{}, decimal.Zero, "")
	assert.Error(t, err)
}
