package importing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/shared"
)

// JobStatus is the lifecycle state of an import job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusDone       JobStatus = "DONE"
	JobStatusError      JobStatus = "ERROR"
)

// IsTerminal checks whether the status is final
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Counters tracks row outcomes for a running import
type Counters struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Job tracks progress of a long-running file import so the caller can poll
// while rows are being persisted. Once finalized it is never mutated again.
type Job struct {
	shared.CompanyAggregateRoot
	Channel      channel.Code `json:"channel"` // Empty for product imports
	FileName     string       `json:"file_name"`
	Counters     Counters     `json:"counters"`
	Status       JobStatus    `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}

// NewJob creates a processing job for the given upload
func NewJob(companyID uuid.UUID, ch channel.Code, fileName string, totalRows int) (*Job, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COMPANY", "company id is required")
	}
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE", "file name is required")
	}
	return &Job{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Channel:              ch,
		FileName:             fileName,
		Counters:             Counters{Total: totalRows},
		Status:               JobStatusProcessing,
	}, nil
}

// RecordImported counts a row persisted as a new transaction
func (j *Job) RecordImported() {
	j.Counters.Processed++
	j.Counters.Imported++
	j.Touch()
}

// RecordDuplicate counts a row resolved by merging into an existing transaction
func (j *Job) RecordDuplicate() {
	j.Counters.Processed++
	j.Counters.Duplicates++
	j.Touch()
}

// RecordError counts a row that failed to parse or persist
func (j *Job) RecordError() {
	j.Counters.Processed++
	j.Counters.Errors++
	j.Touch()
}

// Complete finalizes the job as done. Finalizing an already terminal job is
// rejected so late writers cannot overwrite the outcome.
func (j *Job) Complete() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("JOB_FINALIZED", "import job is already finalized")
	}
	now := time.Now()
	j.Status = JobStatusDone
	j.FinishedAt = &now
	j.Touch()
	return nil
}

// Fail finalizes the job with an error message
func (j *Job) Fail(message string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("JOB_FINALIZED", "import job is already finalized")
	}
	now := time.Now()
	j.Status = JobStatusError
	j.ErrorMessage = message
	j.FinishedAt = &now
	j.Touch()
	return nil
}

// Cancel is the cooperative cancellation path: it flips the job to a terminal
// error state. In-flight row writes already issued are not rolled back.
func (j *Job) Cancel() error {
	return j.Fail("cancelado pelo usuário")
}

// IsCancelled reports whether the job was moved to a terminal state while
// rows were still being processed. Workers check it between rows.
func (j *Job) IsCancelled() bool {
	return j.Status.IsTerminal()
}

// JobRepository persists import jobs
type JobRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	FindByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]*Job, error)
	Save(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
}
