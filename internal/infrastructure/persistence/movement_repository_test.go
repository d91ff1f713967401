package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/ecomfin/backend/internal/domain/ledger"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarketplaceMovement(t *testing.T, companyID uuid.UUID, ref string, amount float64) *ledger.Movement {
	t.Helper()
	m, err := ledger.NewMovement(
		companyID,
		ledger.OriginMarketplace,
		ledger.TxTypeSale,
		ledger.DirectionIn,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(amount),
		"Venda marketplace",
	)
	require.NoError(t, err)
	if ref != "" {
		m.ExternalRefID = &ref
	}
	return m
}

func TestGormMovementRepository_UpsertInsertsThenUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMovementRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	first := newMarketplaceMovement(t, companyID, "TX-1", 100.00)
	require.NoError(t, repo.Upsert(ctx, first))

	// Re-running the origin module writes the same ref with a new amount;
	// the row is updated in place
	second := newMarketplaceMovement(t, companyID, "TX-1", 120.00)
	require.NoError(t, repo.Upsert(ctx, second))

	found, err := repo.FindByOriginRef(ctx, companyID, ledger.OriginMarketplace, "TX-1")
	require.NoError(t, err)
	assert.True(t, found.Amount.Equal(decimal.NewFromFloat(120.00)))
	assert.Equal(t, first.ID, found.ID)

	all, err := repo.FindAll(ctx, companyID, ledger.MovementFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGormMovementRepository_NoRefAlwaysInserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMovementRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, newMarketplaceMovement(t, companyID, "", 10.00)))
	require.NoError(t, repo.Upsert(ctx, newMarketplaceMovement(t, companyID, "", 20.00)))

	all, err := repo.FindAll(ctx, companyID, ledger.MovementFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGormMovementRepository_FindAllFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMovementRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	sale := newMarketplaceMovement(t, companyID, "TX-SALE", 100.00)
	require.NoError(t, repo.Upsert(ctx, sale))

	payout, err := ledger.NewMovement(
		companyID,
		ledger.OriginMarketplace,
		ledger.TxTypePayout,
		ledger.DirectionIn,
		time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(80.00),
		"Repasse",
	)
	require.NoError(t, err)
	ref := "TX-PAYOUT"
	payout.ExternalRefID = &ref
	require.NoError(t, repo.Upsert(ctx, payout))

	regime := ledger.RegimeAccrual
	accrual, err := repo.FindAll(ctx, companyID, ledger.MovementFilter{Regime: &regime})
	require.NoError(t, err)
	require.Len(t, accrual, 1)
	assert.Equal(t, ledger.TxTypeSale, accrual[0].TransactionType)

	regime = ledger.RegimeCash
	cash, err := repo.FindAll(ctx, companyID, ledger.MovementFilter{Regime: &regime})
	require.NoError(t, err)
	require.Len(t, cash, 1)
	assert.Equal(t, ledger.TxTypePayout, cash[0].TransactionType)

	from := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	late, err := repo.FindAll(ctx, companyID, ledger.MovementFilter{DateFrom: &from})
	require.NoError(t, err)
	assert.Len(t, late, 1)
}

func TestGormMovementRepository_DeleteByOriginRef(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMovementRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, newMarketplaceMovement(t, companyID, "TX-DEL", 10.00)))
	require.NoError(t, repo.DeleteByOriginRef(ctx, companyID, ledger.OriginMarketplace, "TX-DEL"))

	_, err := repo.FindByOriginRef(ctx, companyID, ledger.OriginMarketplace, "TX-DEL")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
