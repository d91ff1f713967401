package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
)

// ItemResolver links transaction items to internal products through the
// SKU mapping table
type ItemResolver interface {
	ResolveItem(ctx context.Context, companyID uuid.UUID, ch channel.Code, item *reconciliation.TransactionItem) (bool, error)
}

// SyncResult summarizes one order sync run
type SyncResult struct {
	Channel    channel.Code `json:"channel"`
	Total      int          `json:"total"`
	Imported   int          `json:"imported"`
	Duplicates int          `json:"duplicates"`
	Errors     int          `json:"errors"`
}

// MarketplaceService owns the marketplace integration lifecycle: the OAuth
// connect flow, periodic order sync, and webhook intake. Every order from
// any of these paths funnels through the same natural-key dedupe and
// merge-fill contract as file imports.
type MarketplaceService struct {
	clients  map[channel.Code]integration.MarketplaceClient
	credRepo integration.CredentialRepository
	logRepo  integration.IntegrationLogRepository
	txRepo   reconciliation.TransactionRepository
	resolver ItemResolver
	logger   *zap.Logger
}

// NewMarketplaceService creates a new MarketplaceService
func NewMarketplaceService(
	clients []integration.MarketplaceClient,
	credRepo integration.CredentialRepository,
	logRepo integration.IntegrationLogRepository,
	txRepo reconciliation.TransactionRepository,
	resolver ItemResolver,
	logger *zap.Logger,
) *MarketplaceService {
	byChannel := make(map[channel.Code]integration.MarketplaceClient, len(clients))
	for _, c := range clients {
		byChannel[c.Channel()] = c
	}
	return &MarketplaceService{
		clients:  byChannel,
		credRepo: credRepo,
		logRepo:  logRepo,
		txRepo:   txRepo,
		resolver: resolver,
		logger:   logger,
	}
}

// Connect completes the OAuth flow for a channel: exchanges the
// authorization code and stores the resulting token pair. Exchange failures
// propagate so the interactive flow can surface them to the user.
func (s *MarketplaceService) Connect(ctx context.Context, companyID uuid.UUID, ch channel.Code, code string) (*integration.Credential, error) {
	client, ok := s.clients[ch]
	if !ok {
		return nil, shared.NewDomainError("UNSUPPORTED_CHANNEL", fmt.Sprintf("No integration available for channel %q", ch))
	}

	exchange, err := client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	cred, err := s.credRepo.FindByChannel(ctx, companyID, ch)
	if errors.Is(err, shared.ErrNotFound) {
		cred = &integration.Credential{
			BaseEntity: shared.NewBaseEntity(),
			CompanyID:  companyID,
			Channel:    ch,
		}
	} else if err != nil {
		return nil, err
	}

	cred.UpdateTokens(exchange.AccessToken, exchange.RefreshToken, exchange.Scope, exchange.ExpiresIn)
	if exchange.AccountID != "" {
		cred.AccountID = exchange.AccountID
	}
	if err := s.credRepo.Save(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("marketplace connected",
		zap.String("channel", string(ch)),
		zap.String("account_id", cred.AccountID))
	return cred, nil
}

// Disconnect removes the stored credential for a channel
func (s *MarketplaceService) Disconnect(ctx context.Context, companyID uuid.UUID, ch channel.Code) error {
	return s.credRepo.Delete(ctx, companyID, ch)
}

// Sync pulls orders created since the cutoff and persists them. The access
// token is refreshed first when expired. Individual order failures are
// counted and logged, not fatal; a failed refresh aborts the run.
func (s *MarketplaceService) Sync(ctx context.Context, companyID uuid.UUID, ch channel.Code, since time.Time) (*SyncResult, error) {
	client, ok := s.clients[ch]
	if !ok {
		return nil, shared.NewDomainError("UNSUPPORTED_CHANNEL", fmt.Sprintf("No integration available for channel %q", ch))
	}
	cred, err := s.credRepo.FindByChannel(ctx, companyID, ch)
	if err != nil {
		return nil, err
	}

	if cred.IsExpired() {
		exchange, err := client.RefreshToken(ctx, cred.RefreshToken)
		if err != nil {
			s.recordLog(ctx, companyID, ch, "token_refresh", integration.LogStatusError, err.Error(), "")
			return nil, err
		}
		cred.UpdateTokens(exchange.AccessToken, exchange.RefreshToken, exchange.Scope, exchange.ExpiresIn)
		if err := s.credRepo.Save(ctx, cred); err != nil {
			return nil, err
		}
	}

	orders, err := client.ListOrders(ctx, cred.AccessToken, since)
	if err != nil {
		s.recordLog(ctx, companyID, ch, "order_sync", integration.LogStatusError, err.Error(), "")
		return nil, err
	}

	result := &SyncResult{Channel: ch, Total: len(orders)}
	for i := range orders {
		imported, err := s.persistOrder(ctx, companyID, ch, &orders[i])
		if err != nil {
			result.Errors++
			s.logger.Warn("order sync failed",
				zap.String("channel", string(ch)),
				zap.String("external_id", orders[i].ExternalID),
				zap.Error(err))
			continue
		}
		if imported {
			result.Imported++
		} else {
			result.Duplicates++
		}
	}

	s.recordLog(ctx, companyID, ch, "order_sync", integration.LogStatusSuccess,
		fmt.Sprintf("%d orders: %d imported, %d merged, %d failed",
			result.Total, result.Imported, result.Duplicates, result.Errors), "")
	return result, nil
}

// HandleWebhook ingests one order pushed by the marketplace. Webhooks are
// always acknowledged: processing failures land in the integration log so
// the marketplace does not retry forever against a bug on our side.
func (s *MarketplaceService) HandleWebhook(ctx context.Context, companyID uuid.UUID, ch channel.Code, order *integration.MarketplaceOrder) error {
	imported, err := s.persistOrder(ctx, companyID, ch, order)
	if err != nil {
		s.recordLog(ctx, companyID, ch, "webhook_order", integration.LogStatusError, err.Error(), order.ExternalID)
		return nil
	}

	outcome := "merged"
	if imported {
		outcome = "imported"
	}
	s.recordLog(ctx, companyID, ch, "webhook_order", integration.LogStatusSuccess, outcome, order.ExternalID)
	return nil
}

// HandleWebhookPush ingests an order the marketplace pushed on its own.
// The push carries no user identity, only the seller account, so the owning
// company is resolved from the stored credential. Pushes for accounts we do
// not know are acknowledged and dropped; rejecting them would only make the
// marketplace retry something we can never attribute.
func (s *MarketplaceService) HandleWebhookPush(ctx context.Context, ch channel.Code, accountID string, order *integration.MarketplaceOrder) error {
	cred, err := s.credRepo.FindByAccountID(ctx, ch, accountID)
	if err != nil {
		s.logger.Warn("webhook push for unknown marketplace account",
			zap.String("channel", string(ch)),
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil
	}
	return s.HandleWebhook(ctx, cred.CompanyID, ch, order)
}

// RecentLogs lists the latest integration log entries for a company
func (s *MarketplaceService) RecentLogs(ctx context.Context, companyID uuid.UUID, limit int) ([]integration.IntegrationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.logRepo.FindRecent(ctx, companyID, limit)
}

// Credential returns the stored credential for a channel
func (s *MarketplaceService) Credential(ctx context.Context, companyID uuid.UUID, ch channel.Code) (*integration.Credential, error) {
	return s.credRepo.FindByChannel(ctx, companyID, ch)
}

// persistOrder writes one normalized order, returning true on a fresh
// insert and false when it merged into an existing transaction
func (s *MarketplaceService) persistOrder(ctx context.Context, companyID uuid.UUID, ch channel.Code, order *integration.MarketplaceOrder) (bool, error) {
	candidate, err := s.buildTransaction(companyID, ch, order)
	if err != nil {
		return false, err
	}

	for i := range candidate.Items {
		if _, err := s.resolver.ResolveItem(ctx, companyID, ch, &candidate.Items[i]); err != nil {
			s.logger.Warn("item resolution failed",
				zap.String("external_id", order.ExternalID), zap.Error(err))
		}
	}

	err = s.txRepo.Save(ctx, candidate)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, shared.ErrDuplicateKey) {
		return false, err
	}

	existing, err := s.txRepo.FindByNaturalKey(ctx, candidate.NaturalKey())
	if err != nil {
		return false, fmt.Errorf("merge lookup after duplicate key: %w", err)
	}
	existing.MergeFill(candidate)
	mergeOrderItems(existing, candidate)
	if err := s.txRepo.Update(ctx, existing); err != nil {
		return false, err
	}
	return false, nil
}

// buildTransaction maps a normalized order payload to a sale transaction
func (s *MarketplaceService) buildTransaction(companyID uuid.UUID, ch channel.Code, order *integration.MarketplaceOrder) (*reconciliation.Transaction, error) {
	if order.ExternalID == "" {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order has no external reference")
	}

	tx, err := reconciliation.NewTransaction(companyID, ch,
		reconciliation.TypeSale, reconciliation.DirectionCredit,
		order.Date, order.GrossAmount, order.NetAmount)
	if err != nil {
		return nil, err
	}

	ref := order.ExternalID
	tx.ExternalReference = &ref
	if order.OrderID != "" {
		orderID := order.OrderID
		tx.OrderID = &orderID
	}
	tx.Fees = reconciliation.FeeBreakdown{
		Commission:   order.Commission,
		ShippingCost: order.ShippingCost,
	}
	if order.StoreName != "" {
		label := order.StoreName
		tx.AccountLabel = &label
	}

	for _, line := range order.Items {
		item, err := reconciliation.NewTransactionItem(line.Title, line.Quantity, line.UnitPrice)
		if err != nil {
			return nil, err
		}
		if line.ChannelSKU != "" {
			sku := line.ChannelSKU
			item.ChannelSKU = &sku
		}
		if !line.LineTotal.IsZero() {
			total := line.LineTotal
			item.LineTotal = &total
		}
		if err := tx.AddItem(*item); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

// mergeOrderItems appends incoming item lines the existing transaction does
// not carry yet, matched by channel SKU
func mergeOrderItems(existing, incoming *reconciliation.Transaction) {
	known := make(map[string]bool, len(existing.Items))
	for _, item := range existing.Items {
		if item.ChannelSKU != nil {
			known[*item.ChannelSKU] = true
		}
	}
	for _, item := range incoming.Items {
		if item.ChannelSKU == nil || known[*item.ChannelSKU] {
			continue
		}
		if err := existing.AddItem(item); err == nil {
			known[*item.ChannelSKU] = true
		}
	}
}

// recordLog writes an integration log entry, tolerating storage failures
func (s *MarketplaceService) recordLog(ctx context.Context, companyID uuid.UUID, ch channel.Code, event string, status integration.LogStatus, message, reference string) {
	entry := integration.NewIntegrationLog(companyID, ch, event, status, message, reference)
	if err := s.logRepo.Save(ctx, entry); err != nil {
		s.logger.Error("integration log write failed",
			zap.String("event", event), zap.Error(err))
	}
}
