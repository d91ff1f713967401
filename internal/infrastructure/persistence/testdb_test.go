package persistence

import (
	"testing"

	"github.com/ecomfin/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory sqlite database with every table migrated
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.TransactionModel{},
		&models.TransactionItemModel{},
		&models.SkuMappingModel{},
		&models.CredentialModel{},
		&models.IntegrationLogModel{},
		&models.CMVRecordModel{},
		&models.FinancialMovementModel{},
		&models.ProductModel{},
		&models.ImportJobModel{},
		&models.TitleModel{},
	)
	require.NoError(t, err)

	return db
}
