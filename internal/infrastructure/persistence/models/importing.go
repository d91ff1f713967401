package models

import (
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/importing"
)

// ImportJobModel is the persistence model for import job progress.
// Counters are flattened into columns so polling is a single row read.
type ImportJobModel struct {
	CompanyAggregateModel
	Channel      string `gorm:"type:varchar(32)"`
	FileName     string `gorm:"type:varchar(255);not null"`
	TotalRows    int    `gorm:"not null;default:0"`
	Processed    int    `gorm:"not null;default:0"`
	Imported     int    `gorm:"not null;default:0"`
	Duplicates   int    `gorm:"not null;default:0"`
	Errors       int    `gorm:"not null;default:0"`
	Status       string `gorm:"type:varchar(16);not null;index"`
	ErrorMessage string `gorm:"type:text"`
	FinishedAt   *time.Time
}

// TableName returns the table name for ImportJobModel
func (ImportJobModel) TableName() string {
	return "import_jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *ImportJobModel) ToDomain() *importing.Job {
	job := &importing.Job{
		Channel:  channel.Code(m.Channel),
		FileName: m.FileName,
		Counters: importing.Counters{
			Total:      m.TotalRows,
			Processed:  m.Processed,
			Imported:   m.Imported,
			Duplicates: m.Duplicates,
			Errors:     m.Errors,
		},
		Status:       importing.JobStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		FinishedAt:   m.FinishedAt,
	}
	m.PopulateCompanyAggregateRoot(&job.CompanyAggregateRoot)
	return job
}

// ImportJobModelFromDomain creates a persistence model from a domain Job
func ImportJobModelFromDomain(job *importing.Job) *ImportJobModel {
	m := &ImportJobModel{
		Channel:      string(job.Channel),
		FileName:     job.FileName,
		TotalRows:    job.Counters.Total,
		Processed:    job.Counters.Processed,
		Imported:     job.Counters.Imported,
		Duplicates:   job.Counters.Duplicates,
		Errors:       job.Counters.Errors,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		FinishedAt:   job.FinishedAt,
	}
	m.FromDomainCompanyAggregateRoot(job.CompanyAggregateRoot)
	return m
}
