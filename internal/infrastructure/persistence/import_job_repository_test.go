package persistence

import (
	"context"
	"testing"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/importing"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormImportJobRepository_SaveAndPoll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormImportJobRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	job, err := importing.NewJob(companyID, channel.CodeMercadoLivre, "vendas.csv", 100)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, job))

	job.RecordImported()
	job.RecordDuplicate()
	job.RecordError()
	require.NoError(t, repo.Update(ctx, job))

	found, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importing.JobStatusProcessing, found.Status)
	assert.Equal(t, 100, found.Counters.Total)
	assert.Equal(t, 3, found.Counters.Processed)
	assert.Equal(t, 1, found.Counters.Imported)
	assert.Equal(t, 1, found.Counters.Duplicates)
	assert.Equal(t, 1, found.Counters.Errors)
}

func TestGormImportJobRepository_LateWriterCannotResurrectTerminalJob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormImportJobRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	job, err := importing.NewJob(companyID, channel.CodeShopee, "vendas.csv", 10)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, job))

	// A cancel lands while the worker holds a stale in-memory copy
	cancelled, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, cancelled.Cancel())
	require.NoError(t, repo.Update(ctx, cancelled))

	job.RecordImported()
	require.NoError(t, repo.Update(ctx, job))

	found, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, importing.JobStatusError, found.Status)
	assert.Zero(t, found.Counters.Imported)
}

func TestGormImportJobRepository_FindByCompany(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormImportJobRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	for i := 0; i < 3; i++ {
		job, err := importing.NewJob(companyID, channel.CodeMercadoLivre, "vendas.csv", 10)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, job))
	}

	jobs, err := repo.FindByCompany(ctx, companyID, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
