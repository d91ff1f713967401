package costing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/domain/catalog"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/costing"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/domain/shared"
)

// mappingCacheTTL bounds how long a resolved mapping is served from cache.
// Confirm and delete evict eagerly, so this only covers writes from other
// instances.
const mappingCacheTTL = 5 * time.Minute

// defaultRecomputeBatch is how many transactions one recompute pass visits
const defaultRecomputeBatch = 200

// CostingService resolves items to products and attributes cost of goods
// sold. Resolution order per item: an already linked item wins, then a
// confirmed SKU mapping, and an unmapped SKU enqueues a pending mapping.
type CostingService struct {
	txRepo      reconciliation.TransactionRepository
	mappingRepo integration.SkuMappingRepository
	productRepo catalog.ProductRepository
	cmvRepo     costing.CMVRepository
	cache       integration.MappingCache
	logger      *zap.Logger
}

// NewCostingService creates a new CostingService
func NewCostingService(
	txRepo reconciliation.TransactionRepository,
	mappingRepo integration.SkuMappingRepository,
	productRepo catalog.ProductRepository,
	cmvRepo costing.CMVRepository,
	cache integration.MappingCache,
	logger *zap.Logger,
) *CostingService {
	return &CostingService{
		txRepo:      txRepo,
		mappingRepo: mappingRepo,
		productRepo: productRepo,
		cmvRepo:     cmvRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ResolveItem links an item to an internal product when a confirmed mapping
// exists for its channel SKU. Items without a SKU, or whose SKU has never
// been mapped, stay unlinked; the first sighting of an unmapped SKU enqueues
// a pending mapping so it shows up in the resolution queue.
func (s *CostingService) ResolveItem(
	ctx context.Context,
	companyID uuid.UUID,
	ch channel.Code,
	item *reconciliation.TransactionItem,
) (bool, error) {
	if item.IsLinked() {
		return true, nil
	}
	if item.ChannelSKU == nil || *item.ChannelSKU == "" {
		return false, nil
	}
	sku := *item.ChannelSKU

	mapping, err := s.cache.Get(ctx, companyID, ch, sku)
	if err != nil {
		s.logger.Warn("mapping cache read failed, falling back to repository",
			zap.String("channel_sku", sku), zap.Error(err))
	}

	if mapping == nil {
		mapping, err = s.mappingRepo.FindByKey(ctx, companyID, ch, sku)
		if errors.Is(err, shared.ErrNotFound) {
			return false, s.enqueuePendingMapping(ctx, companyID, ch, sku, item.Description)
		}
		if err != nil {
			return false, err
		}
		if cacheErr := s.cache.Set(ctx, mapping, mappingCacheTTL); cacheErr != nil {
			s.logger.Warn("mapping cache write failed", zap.Error(cacheErr))
		}
	}

	if !mapping.IsConfirmed() {
		return false, nil
	}

	item.LinkProduct(*mapping.ProductID, mapping.SKUID)
	return true, nil
}

// enqueuePendingMapping creates the pending queue entry for an unmapped SKU.
// Upsert silently ignores conflicts, so concurrent imports of the same SKU
// never fail here.
func (s *CostingService) enqueuePendingMapping(ctx context.Context, companyID uuid.UUID, ch channel.Code, sku, label string) error {
	pending, err := integration.NewPendingMapping(companyID, ch, sku, label)
	if err != nil {
		return err
	}
	return s.mappingRepo.Upsert(ctx, pending)
}

// AttributeTransaction computes CMV for every linked item of a reconciled
// transaction that has no record yet. Per-item failures are counted in the
// outcome, never raised; the item id uniqueness guard makes reruns
// idempotent.
func (s *CostingService) AttributeTransaction(ctx context.Context, tx *reconciliation.Transaction) (costing.BatchOutcome, error) {
	outcome := costing.BatchOutcome{Processed: 1}
	if !tx.IsReconciled() {
		return outcome, shared.NewDomainError("INVALID_STATE", "CMV attribution requires a reconciled transaction")
	}

	items, err := s.txRepo.ItemsWithoutCMV(ctx, tx.ID)
	if err != nil {
		return outcome, err
	}
	if len(items) == 0 {
		return outcome, nil
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ProductID != nil {
			productIDs = append(productIDs, *item.ProductID)
		}
	}
	products, err := s.productRepo.FindByIDs(ctx, tx.CompanyID, productIDs)
	if err != nil {
		return outcome, err
	}

	for i := range items {
		item := &items[i]
		if item.ProductID == nil {
			outcome.Unmapped++
			continue
		}
		product, ok := products[*item.ProductID]
		if !ok {
			s.logger.Warn("item links to a missing product",
				zap.String("item_id", item.ID.String()),
				zap.String("product_id", item.ProductID.String()))
			outcome.Errored++
			continue
		}

		rec, err := costing.Compute(tx, item, product)
		if err != nil {
			outcome.Errored++
			continue
		}
		switch err := s.cmvRepo.Save(ctx, rec); {
		case err == nil:
			outcome.Costed++
		case errors.Is(err, shared.ErrDuplicateKey):
			outcome.Skipped++
		default:
			s.logger.Error("failed to save CMV record",
				zap.String("item_id", item.ID.String()), zap.Error(err))
			outcome.Errored++
		}
	}

	return outcome, nil
}

// ConfirmResult reports what a mapping confirmation touched
type ConfirmResult struct {
	Mapping       *integration.SkuMapping `json:"mapping"`
	RelinkedItems int64                   `json:"relinked_items"`
	Recompute     costing.BatchOutcome    `json:"recompute"`
}

// ConfirmMapping resolves a channel SKU to a product, retroactively links
// every historical unlinked item sharing the key and recomputes CMV for the
// backlog. Re-running with the same product is a no-op beyond filling gaps.
func (s *CostingService) ConfirmMapping(
	ctx context.Context,
	companyID uuid.UUID,
	ch channel.Code,
	channelSKU string,
	productID uuid.UUID,
	skuID *uuid.UUID,
) (*ConfirmResult, error) {
	if _, err := s.productRepo.FindByID(ctx, companyID, productID); err != nil {
		return nil, err
	}

	mapping, err := s.mappingRepo.FindByKey(ctx, companyID, ch, channelSKU)
	if errors.Is(err, shared.ErrNotFound) {
		mapping, err = integration.NewPendingMapping(companyID, ch, channelSKU, "")
	}
	if err != nil {
		return nil, err
	}
	if err := mapping.Confirm(productID, skuID); err != nil {
		return nil, err
	}
	if err := s.mappingRepo.Upsert(ctx, mapping); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, companyID, ch, channelSKU); err != nil {
		s.logger.Warn("mapping cache eviction failed", zap.Error(err))
	}

	relinked, err := s.txRepo.RelinkItems(ctx, companyID, ch, channelSKU, productID, skuID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.RecomputeCompany(ctx, companyID, 0, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sku mapping confirmed",
		zap.String("company_id", companyID.String()),
		zap.String("channel", ch.String()),
		zap.String("channel_sku", channelSKU),
		zap.Int64("relinked_items", relinked))

	return &ConfirmResult{Mapping: mapping, RelinkedItems: relinked, Recompute: *outcome}, nil
}

// ListMappings lists the company's SKU mappings, pending queue included
func (s *CostingService) ListMappings(ctx context.Context, companyID uuid.UUID, filter integration.MappingFilter) ([]integration.SkuMapping, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	return s.mappingRepo.FindAll(ctx, companyID, filter)
}

// ReprocessMappings re-runs every confirmed mapping against the historical
// backlog. Safe to run repeatedly: each pass only fills remaining gaps.
func (s *CostingService) ReprocessMappings(ctx context.Context, companyID uuid.UUID) (*costing.BatchOutcome, error) {
	confirmed, err := s.mappingRepo.FindConfirmed(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var relinked int64
	for i := range confirmed {
		m := &confirmed[i]
		if m.ProductID == nil {
			continue
		}
		n, err := s.txRepo.RelinkItems(ctx, companyID, m.Channel, m.ChannelSKU, *m.ProductID, m.SKUID)
		if err != nil {
			return nil, err
		}
		relinked += n
	}

	outcome, err := s.RecomputeCompany(ctx, companyID, 0, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("mapping reprocess finished",
		zap.String("company_id", companyID.String()),
		zap.Int("confirmed_mappings", len(confirmed)),
		zap.Int64("relinked_items", relinked),
		zap.Int("items_costed", outcome.Costed))
	return outcome, nil
}

// RecomputeCompany walks the backlog of reconciled transactions with
// uncosted linked items and attributes CMV batch by batch. It stops when a
// pass makes no progress so an item that keeps failing cannot loop forever.
// A non-nil progress callback is invoked after every transaction with the
// running processed count against the backlog size counted at the start.
func (s *CostingService) RecomputeCompany(ctx context.Context, companyID uuid.UUID, batchSize int, progress func(processed, total int)) (*costing.BatchOutcome, error) {
	if batchSize <= 0 {
		batchSize = defaultRecomputeBatch
	}

	backlog := 0
	if progress != nil {
		n, err := s.txRepo.CountReconciledWithoutCMV(ctx, companyID)
		if err != nil {
			return nil, err
		}
		backlog = int(n)
	}

	processed := 0
	total := &costing.BatchOutcome{}
	for {
		txs, err := s.txRepo.FindReconciledWithoutCMV(ctx, companyID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(txs) == 0 {
			return total, nil
		}

		batch := costing.BatchOutcome{}
		for i := range txs {
			outcome, err := s.AttributeTransaction(ctx, &txs[i])
			batch.Add(outcome)
			if err != nil {
				s.logger.Error("CMV attribution failed for transaction",
					zap.String("transaction_id", txs[i].ID.String()), zap.Error(err))
			}
			processed++
			if progress != nil {
				progress(processed, backlog)
			}
		}
		total.Add(batch)

		if batch.Costed == 0 {
			return total, nil
		}
	}
}
