package importing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomfin/backend/internal/domain/channel"
)

func TestNewJob(t *testing.T) {
	companyID := uuid.New()

	job, err := NewJob(companyID, channel.CodeMercadoLivre, "vendas_marco.xlsx", 120)
	require.NoError(t, err)
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 120, job.Counters.Total)
	assert.Equal(t, 0, job.Counters.Processed)
	assert.Nil(t, job.FinishedAt)

	_, err = NewJob(uuid.Nil, channel.CodeMercadoLivre, "vendas.xlsx", 10)
	assert.Error(t, err)

	_, err = NewJob(companyID, channel.CodeMercadoLivre, "", 10)
	assert.Error(t, err)
}

func TestJobCounters(t *testing.T) {
	job, err := NewJob(uuid.New(), channel.CodeShopee, "pedidos.csv", 3)
	require.NoError(t, err)

	job.RecordImported()
	job.RecordDuplicate()
	job.RecordError()

	assert.Equal(t, 3, job.Counters.Processed)
	assert.Equal(t, 1, job.Counters.Imported)
	assert.Equal(t, 1, job.Counters.Duplicates)
	assert.Equal(t, 1, job.Counters.Errors)
}

func TestJobFinalizationIsImmutable(t *testing.T) {
	job, err := NewJob(uuid.New(), channel.CodeAmazon, "extrato.csv", 1)
	require.NoError(t, err)

	require.NoError(t, job.Complete())
	assert.Equal(t, JobStatusDone, job.Status)
	require.NotNil(t, job.FinishedAt)

	assert.Error(t, job.Complete())
	assert.Error(t, job.Fail("tarde demais"))
	assert.Equal(t, JobStatusDone, job.Status)
	assert.Empty(t, job.ErrorMessage)
}

func TestJobFail(t *testing.T) {
	job, err := NewJob(uuid.New(), channel.CodeMagalu, "extrato.ofx", 5)
	require.NoError(t, err)

	require.NoError(t, job.Fail("coluna de SKU não encontrada"))
	assert.Equal(t, JobStatusError, job.Status)
	assert.Equal(t, "coluna de SKU não encontrada", job.ErrorMessage)
	assert.NotNil(t, job.FinishedAt)
}

func TestJobCooperativeCancel(t *testing.T) {
	job, err := NewJob(uuid.New(), channel.CodeShein, "vendas.xlsx", 100)
	require.NoError(t, err)
	assert.False(t, job.IsCancelled())

	require.NoError(t, job.Cancel())
	assert.True(t, job.IsCancelled())
	assert.Equal(t, JobStatusError, job.Status)
}
