package reconciliation

import (
	"testing"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()
	tx, err := NewTransaction(
		uuid.New(),
		channel.CodeMercadoLivre,
		TypeSale,
		DirectionCredit,
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(150.00),
		decimal.NewFromFloat(120.00),
	)
	require.NoError(t, err)
	return tx
}

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func strPtr(s string) *string { return &s }

func TestNewTransactionValidation(t *testing.T) {
	_, err := NewTransaction(uuid.Nil, channel.CodeShopee, TypeSale, DirectionCredit, time.Now(), decimal.Zero, decimal.Zero)
	assert.Error(t, err)

	_, err = NewTransaction(uuid.New(), channel.Code("ebay"), TypeSale, DirectionCredit, time.Now(), decimal.Zero, decimal.Zero)
	assert.Error(t, err)

	_, err = NewTransaction(uuid.New(), channel.CodeShopee, TransactionType("WIRE"), DirectionCredit, time.Now(), decimal.Zero, decimal.Zero)
	assert.Error(t, err)

	_, err = NewTransaction(uuid.New(), channel.CodeShopee, TypeSale, DirectionCredit, time.Time{}, decimal.Zero, decimal.Zero)
	assert.Error(t, err)
}

func TestNaturalKeyString(t *testing.T) {
	tx := newTestTransaction(t)
	tx.ExternalReference = strPtr("ORD-123")

	key := tx.NaturalKey()
	assert.Equal(t, tx.CompanyID, key.CompanyID)
	assert.Equal(t, "ORD-123", key.ExternalReference)
	assert.Contains(t, key.String(), "|mercado_livre|ORD-123|SALE|CREDIT")
	assert.False(t, key.IsZero())

	tx.ExternalReference = nil
	assert.True(t, tx.NaturalKey().IsZero())
}

func TestMergeFillNeverNullsExistingFields(t *testing.T) {
	existing := newTestTransaction(t)
	existing.Fees.Commission = decPtr(15.50)
	existing.AccountLabel = strPtr("Loja ML")

	incoming := newTestTransaction(t)
	incoming.Fees.ShippingCost = decPtr(12.00)
	// Commission deliberately nil on the incoming report

	changed := existing.MergeFill(incoming)
	assert.Equal(t, 1, changed)

	require.NotNil(t, existing.Fees.Commission)
	assert.True(t, existing.Fees.Commission.Equal(decimal.NewFromFloat(15.50)))
	require.NotNil(t, existing.Fees.ShippingCost)
	assert.True(t, existing.Fees.ShippingCost.Equal(decimal.NewFromFloat(12.00)))
	require.NotNil(t, existing.AccountLabel)
	assert.Equal(t, "Loja ML", *existing.AccountLabel)
}

func TestMergeFillMostRecentWinsOnConflict(t *testing.T) {
	existing := newTestTransaction(t)
	existing.Fees.Commission = decPtr(10.00)

	incoming := newTestTransaction(t)
	incoming.Fees.Commission = decPtr(11.00)

	existing.MergeFill(incoming)
	assert.True(t, existing.Fees.Commission.Equal(decimal.NewFromFloat(11.00)))
}

func TestMergeFillComplementaryUploads(t *testing.T) {
	// First upload carries commission, second carries shipping. After both
	// merges the transaction has both fields and remains a single record.
	existing := newTestTransaction(t)
	existing.ExternalReference = strPtr("ORD-777")

	first := newTestTransaction(t)
	first.Fees.Commission = decPtr(9.90)
	existing.MergeFill(first)

	second := newTestTransaction(t)
	second.Fees.ShippingCost = decPtr(18.40)
	second.ShipmentType = strPtr("full")
	existing.MergeFill(second)

	require.NotNil(t, existing.Fees.Commission)
	require.NotNil(t, existing.Fees.ShippingCost)
	require.NotNil(t, existing.ShipmentType)
	assert.True(t, existing.Fees.Commission.Equal(decimal.NewFromFloat(9.90)))
	assert.True(t, existing.Fees.ShippingCost.Equal(decimal.NewFromFloat(18.40)))
}

func TestMergeFillZeroAmountDoesNotClobber(t *testing.T) {
	existing := newTestTransaction(t)
	incoming := newTestTransaction(t)
	incoming.GrossAmount = decimal.Zero
	incoming.NetAmount = decimal.Zero

	existing.MergeFill(incoming)
	assert.True(t, existing.GrossAmount.Equal(decimal.NewFromFloat(150.00)))
	assert.True(t, existing.NetAmount.Equal(decimal.NewFromFloat(120.00)))
}

func TestReconcileLifecycle(t *testing.T) {
	tx := newTestTransaction(t)
	category := uuid.New()

	require.NoError(t, tx.Reconcile(category, nil))
	assert.Equal(t, StatusReconciled, tx.Status)
	assert.NotNil(t, tx.ReconciledAt)

	// Reconciling twice is an invalid state transition
	assert.Error(t, tx.Reconcile(category, nil))

	require.NoError(t, tx.Reopen())
	assert.Equal(t, StatusPending, tx.Status)
	assert.Nil(t, tx.ReconciledAt)

	// Pending can be reconciled again
	require.NoError(t, tx.Reconcile(category, nil))

	require.NoError(t, tx.Ignore())
	assert.Equal(t, StatusIgnored, tx.Status)

	// Ignored is terminal unless reopened
	assert.Error(t, tx.Reconcile(category, nil))
	require.NoError(t, tx.Reopen())
	assert.Equal(t, StatusPending, tx.Status)
}

func TestReconcileRequiresCategory(t *testing.T) {
	tx := newTestTransaction(t)
	assert.Error(t, tx.Reconcile(uuid.Nil, nil))
}

func TestReopenRequiresReconciledOrIgnored(t *testing.T) {
	tx := newTestTransaction(t)
	assert.Error(t, tx.Reopen())
}

func TestAddItemValidatesQuantity(t *testing.T) {
	tx := newTestTransaction(t)

	item, err := NewTransactionItem("Produto X", 2, decimal.NewFromFloat(75.00))
	require.NoError(t, err)
	require.NoError(t, tx.AddItem(*item))
	assert.Equal(t, tx.ID, tx.Items[0].TransactionID)

	_, err = NewTransactionItem("Produto Y", 0, decimal.NewFromFloat(10.00))
	assert.Error(t, err)
}

func TestItemRevenue(t *testing.T) {
	item, err := NewTransactionItem("Produto X", 3, decimal.NewFromFloat(10.00))
	require.NoError(t, err)

	rev, ok := item.Revenue()
	assert.True(t, ok)
	assert.True(t, rev.Equal(decimal.NewFromFloat(30.00)))

	item.LineTotal = decPtr(28.50) // Line total wins over unit*qty
	rev, ok = item.Revenue()
	assert.True(t, ok)
	assert.True(t, rev.Equal(decimal.NewFromFloat(28.50)))

	noPrice, err := NewTransactionItem("Brinde", 1, decimal.Zero)
	require.NoError(t, err)
	_, ok = noPrice.Revenue()
	assert.False(t, ok)
}

func TestLinkedItems(t *testing.T) {
	tx := newTestTransaction(t)

	linked, err := NewTransactionItem("Mapeado", 1, decimal.NewFromFloat(5))
	require.NoError(t, err)
	linked.LinkProduct(uuid.New(), nil)
	require.NoError(t, tx.AddItem(*linked))

	unlinked, err := NewTransactionItem("Sem mapa", 1, decimal.NewFromFloat(5))
	require.NoError(t, err)
	require.NoError(t, tx.AddItem(*unlinked))

	assert.Len(t, tx.LinkedItems(), 1)
	assert.True(t, tx.Items[0].IsLinked())
	assert.False(t, tx.Items[1].IsLinked())
}
