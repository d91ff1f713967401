package costing

import (
	"testing"
	"time"

	"github.com/ecomfin/backend/internal/domain/catalog"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupComputeFixture(t *testing.T, quantity int, unitPrice float64) (*reconciliation.Transaction, *reconciliation.TransactionItem, *catalog.Product) {
	t.Helper()
	companyID := uuid.New()

	tx, err := reconciliation.NewTransaction(
		companyID, channel.CodeMercadoLivre, reconciliation.TypeSale,
		reconciliation.DirectionCredit,
		time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(100), decimal.NewFromFloat(85),
	)
	require.NoError(t, err)

	product, err := catalog.NewProduct(companyID, "Caneca", "CAN-001", decimal.NewFromFloat(12.50), 100)
	require.NoError(t, err)

	item, err := reconciliation.NewTransactionItem("Caneca personalizada", quantity, decimal.NewFromFloat(unitPrice))
	require.NoError(t, err)
	item.LinkProduct(product.ID, nil)

	return tx, item, product
}

func TestComputeCMV(t *testing.T) {
	tx, item, product := setupComputeFixture(t, 4, 30.00)

	rec, err := Compute(tx, item, product)
	require.NoError(t, err)

	assert.Equal(t, 4, rec.Quantity)
	assert.True(t, rec.UnitCost.Equal(decimal.NewFromFloat(12.50)))
	assert.True(t, rec.TotalCost.Equal(decimal.NewFromFloat(50.00)))

	require.NotNil(t, rec.Revenue)
	assert.True(t, rec.Revenue.Equal(decimal.NewFromFloat(120.00)))
	require.NotNil(t, rec.GrossMargin)
	assert.True(t, rec.GrossMargin.Equal(decimal.NewFromFloat(70.00)))
	require.NotNil(t, rec.MarginPercent)
	assert.True(t, rec.MarginPercent.Equal(decimal.NewFromFloat(58.33)))
}

func TestComputeCMVUnknownRevenueLeavesMarginNil(t *testing.T) {
	tx, item, product := setupComputeFixture(t, 2, 0)

	rec, err := Compute(tx, item, product)
	require.NoError(t, err)

	assert.Nil(t, rec.Revenue)
	assert.Nil(t, rec.GrossMargin)
	assert.Nil(t, rec.MarginPercent)
	assert.True(t, rec.TotalCost.Equal(decimal.NewFromFloat(25.00)))
}

func TestComputeCMVLineTotalWins(t *testing.T) {
	tx, item, product := setupComputeFixture(t, 2, 30.00)
	lineTotal := decimal.NewFromFloat(55.00) // Discounted below unit*qty
	item.LineTotal = &lineTotal

	rec, err := Compute(tx, item, product)
	require.NoError(t, err)
	require.NotNil(t, rec.Revenue)
	assert.True(t, rec.Revenue.Equal(lineTotal))
}

func TestComputeRejectsUnlinkedItem(t *testing.T) {
	tx, item, product := setupComputeFixture(t, 1, 10)
	item.ProductID = nil
	item.SKUID = nil

	_, err := Compute(tx, item, product)
	assert.Error(t, err)
}

func TestBatchOutcomeAdd(t *testing.T) {
	a := BatchOutcome{Processed: 1, Costed: 2, Unmapped: 1}
	a.Add(BatchOutcome{Processed: 3, Costed: 1, Skipped: 4, Errored: 1})

	assert.Equal(t, 4, a.Processed)
	assert.Equal(t, 3, a.Costed)
	assert.Equal(t, 1, a.Unmapped)
	assert.Equal(t, 4, a.Skipped)
	assert.Equal(t, 1, a.Errored)
}
