package integration

import (
	"context"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credential stores the OAuth tokens for a connected marketplace account
type Credential struct {
	shared.BaseEntity
	CompanyID    uuid.UUID
	Channel      channel.Code
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
	AccountID    string // Seller/account identifier on the marketplace
}

// IsExpired returns true if the access token has expired (with a safety margin)
func (c *Credential) IsExpired() bool {
	return time.Now().Add(time.Minute).After(c.ExpiresAt)
}

// UpdateTokens replaces the token pair after an exchange or refresh
func (c *Credential) UpdateTokens(access, refresh, scope string, expiresIn time.Duration) {
	c.AccessToken = access
	if refresh != "" {
		c.RefreshToken = refresh
	}
	if scope != "" {
		c.Scope = scope
	}
	c.ExpiresAt = time.Now().Add(expiresIn)
	c.Touch()
}

// LogStatus is the outcome recorded for a sync or webhook event
type LogStatus string

const (
	LogStatusSuccess LogStatus = "SUCCESS"
	LogStatusError   LogStatus = "ERROR"
)

// IntegrationLog records the outcome of a marketplace sync or webhook event.
// Failures are logged here instead of propagating to the external caller.
type IntegrationLog struct {
	shared.BaseEntity
	CompanyID uuid.UUID
	Channel   channel.Code
	Event     string // e.g. "order_sync", "webhook_order", "token_refresh"
	Status    LogStatus
	Message   string
	Reference string // External order/payment id when applicable
}

// NewIntegrationLog creates a log entry
func NewIntegrationLog(companyID uuid.UUID, ch channel.Code, event string, status LogStatus, message, reference string) *IntegrationLog {
	return &IntegrationLog{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		Channel:    ch,
		Event:      event,
		Status:     status,
		Message:    message,
		Reference:  reference,
	}
}

// TokenExchange is the result of an OAuth code or refresh exchange
type TokenExchange struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresIn    time.Duration
	AccountID    string
}

// MarketplaceOrderItem is a sold line inside a marketplace order payload
type MarketplaceOrderItem struct {
	ChannelSKU string
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
}

// MarketplaceOrder is the normalized order payload returned by a
// marketplace client or pushed through a webhook
type MarketplaceOrder struct {
	ExternalID   string
	OrderID      string
	Date         time.Time
	GrossAmount  decimal.Decimal
	NetAmount    decimal.Decimal
	Commission   *decimal.Decimal
	ShippingCost *decimal.Decimal
	StoreName    string
	Items        []MarketplaceOrderItem
}

// MarketplaceClient is the port to an external marketplace API. Implemented
// in infrastructure; every order it yields funnels through the same
// dedupe/merge contract as file ingestion.
type MarketplaceClient interface {
	// Channel returns the channel this client talks to
	Channel() channel.Code

	// ExchangeCode swaps an OAuth authorization code for a token pair.
	// Failures here propagate: the interactive connect flow surfaces them.
	ExchangeCode(ctx context.Context, code string) (*TokenExchange, error)

	// RefreshToken refreshes an expired access token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenExchange, error)

	// ListOrders lists orders created or updated since the cutoff
	ListOrders(ctx context.Context, accessToken string, since time.Time) ([]MarketplaceOrder, error)
}

// CredentialRepository persists marketplace OAuth credentials
type CredentialRepository interface {
	FindByChannel(ctx context.Context, companyID uuid.UUID, ch channel.Code) (*Credential, error)
	// FindByAccountID resolves which company owns a marketplace seller
	// account. Webhook pushes carry the account, not one of our users.
	FindByAccountID(ctx context.Context, ch channel.Code, accountID string) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, companyID uuid.UUID, ch channel.Code) error
}

// IntegrationLogRepository persists integration log entries
type IntegrationLogRepository interface {
	Save(ctx context.Context, entry *IntegrationLog) error
	FindRecent(ctx context.Context, companyID uuid.UUID, limit int) ([]IntegrationLog, error)
}
