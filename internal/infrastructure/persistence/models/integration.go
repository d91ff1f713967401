package models

import (
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// SkuMappingModel is the persistence model for channel SKU mappings.
// The (company, channel, sku) unique index backs the upsert contract.
type SkuMappingModel struct {
	BaseModel
	CompanyID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_sku_mappings_key,priority:1"`
	Channel    string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_sku_mappings_key,priority:2"`
	ChannelSKU string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_sku_mappings_key,priority:3"`
	ProductID  *uuid.UUID `gorm:"type:uuid;index"`
	SKUID      *uuid.UUID `gorm:"column:sku_id;type:uuid"`
	Label      string     `gorm:"type:varchar(512)"`
	Status     string     `gorm:"type:varchar(16);not null;index"`
}

// TableName returns the table name for SkuMappingModel
func (SkuMappingModel) TableName() string {
	return "sku_mappings"
}

// ToDomain converts the persistence model to a domain SkuMapping
func (m *SkuMappingModel) ToDomain() *integration.SkuMapping {
	return &integration.SkuMapping{
		BaseEntity: m.BaseModel.ToDomain(),
		CompanyID:  m.CompanyID,
		Channel:    channel.Code(m.Channel),
		ChannelSKU: m.ChannelSKU,
		ProductID:  m.ProductID,
		SKUID:      m.SKUID,
		Label:      m.Label,
		Status:     integration.MappingStatus(m.Status),
	}
}

// SkuMappingModelFromDomain creates a persistence model from a domain SkuMapping
func SkuMappingModelFromDomain(mapping *integration.SkuMapping) *SkuMappingModel {
	m := &SkuMappingModel{
		CompanyID:  mapping.CompanyID,
		Channel:    string(mapping.Channel),
		ChannelSKU: mapping.ChannelSKU,
		ProductID:  mapping.ProductID,
		SKUID:      mapping.SKUID,
		Label:      mapping.Label,
		Status:     string(mapping.Status),
	}
	m.FromDomainBaseEntity(mapping.BaseEntity)
	return m
}

// CredentialModel is the persistence model for marketplace OAuth credentials.
// One credential per company+channel.
type CredentialModel struct {
	BaseModel
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_credentials_key,priority:1"`
	Channel      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_credentials_key,priority:2"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text"`
	Scope        string    `gorm:"type:varchar(255)"`
	ExpiresAt    time.Time `gorm:"not null"`
	AccountID    string    `gorm:"type:varchar(128)"`
}

// TableName returns the table name for CredentialModel
func (CredentialModel) TableName() string {
	return "marketplace_credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *CredentialModel) ToDomain() *integration.Credential {
	return &integration.Credential{
		BaseEntity:   m.BaseModel.ToDomain(),
		CompanyID:    m.CompanyID,
		Channel:      channel.Code(m.Channel),
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		Scope:        m.Scope,
		ExpiresAt:    m.ExpiresAt,
		AccountID:    m.AccountID,
	}
}

// CredentialModelFromDomain creates a persistence model from a domain Credential
func CredentialModelFromDomain(cred *integration.Credential) *CredentialModel {
	m := &CredentialModel{
		CompanyID:    cred.CompanyID,
		Channel:      string(cred.Channel),
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Scope:        cred.Scope,
		ExpiresAt:    cred.ExpiresAt,
		AccountID:    cred.AccountID,
	}
	m.FromDomainBaseEntity(cred.BaseEntity)
	return m
}

// IntegrationLogModel is the persistence model for sync/webhook outcome logs
type IntegrationLogModel struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Channel   string    `gorm:"type:varchar(32);not null"`
	Event     string    `gorm:"type:varchar(64);not null"`
	Status    string    `gorm:"type:varchar(16);not null"`
	Message   string    `gorm:"type:text"`
	Reference string    `gorm:"type:varchar(128);index"`
}

// TableName returns the table name for IntegrationLogModel
func (IntegrationLogModel) TableName() string {
	return "integration_logs"
}

// ToDomain converts the persistence model to a domain IntegrationLog
func (m *IntegrationLogModel) ToDomain() *integration.IntegrationLog {
	return &integration.IntegrationLog{
		BaseEntity: m.BaseModel.ToDomain(),
		CompanyID:  m.CompanyID,
		Channel:    channel.Code(m.Channel),
		Event:      m.Event,
		Status:     integration.LogStatus(m.Status),
		Message:    m.Message,
		Reference:  m.Reference,
	}
}

// IntegrationLogModelFromDomain creates a persistence model from a domain IntegrationLog
func IntegrationLogModelFromDomain(entry *integration.IntegrationLog) *IntegrationLogModel {
	m := &IntegrationLogModel{
		CompanyID: entry.CompanyID,
		Channel:   string(entry.Channel),
		Event:     entry.Event,
		Status:    string(entry.Status),
		Message:   entry.Message,
		Reference: entry.Reference,
	}
	m.FromDomainBaseEntity(entry.BaseEntity)
	return m
}
