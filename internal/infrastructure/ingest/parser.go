package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecomfin/backend/internal/domain/channel"
)

// RowParser turns one report row into a candidate Record. Implementations
// differ per marketplace because column layouts differ; all share the same
// contract and the same fallback.
type RowParser interface {
	Channel() channel.Code
	ParseRow(row *Row, cols ColumnMap) (*Record, error)
}

// parserRegistry dispatches on channel code. Unregistered channels fall
// back to the generic parser.
var parserRegistry = map[channel.Code]RowParser{
	channel.CodeMercadoLivre: mercadoLivreParser{},
	channel.CodeShopee:       shopeeParser{},
}

// ParserFor returns the row parser for a channel, generic when unknown
func ParserFor(code channel.Code) RowParser {
	if p, ok := parserRegistry[code]; ok {
		return p
	}
	return genericParser{code: code}
}

// ParseTable runs the channel parser over every row of a table. Rows that
// fail to parse are recorded in the error collection and skipped; parsing
// always completes. A table with headers that resolve no date column at all
// aborts with ErrNoDateColumn since nothing downstream can use undated rows.
func ParseTable(table *Table, code channel.Code) (*ParseResult, error) {
	if len(table.Rows) == 0 {
		return nil, ErrNoDataRows
	}

	cols := ResolveColumns(table.Headers)
	if !cols.Has(FieldDate) {
		return nil, ErrNoDateColumn
	}

	parser := ParserFor(code)
	result := &ParseResult{
		Errors:    NewErrorCollection(100),
		TotalRows: len(table.Rows),
		ItemLevel: cols.Has(FieldSKU),
	}

	for _, row := range table.Rows {
		record, err := parser.ParseRow(row, cols)
		if err != nil {
			result.Errors.Add(NewRowError(row.LineNumber, "", ErrCodeMalformedRow, err.Error()))
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

// parseCommon extracts the fields every marketplace layout shares. The
// external reference is required; a row without one cannot be deduplicated
// and is rejected.
func parseCommon(row *Row, cols ColumnMap) (*Record, error) {
	ref := cols.Value(row, FieldExternalRef)
	if ref == "" {
		ref = cols.Value(row, FieldOrderID)
	}
	if ref == "" {
		return nil, fmt.Errorf("row has no sale reference")
	}

	record := &Record{
		SourceRow:   row.LineNumber,
		Kind:        classifyKind(cols.Value(row, FieldRecordType)),
		ExternalRef: ref,
		Description: cols.Value(row, FieldDescription),
		StoreName:   cols.Value(row, FieldStoreName),
	}

	if orderID := cols.Value(row, FieldOrderID); orderID != "" {
		record.OrderID = &orderID
	}

	if raw := cols.Value(row, FieldDate); raw != "" {
		if t, ok := ParseBRDate(raw); ok {
			record.Date = &t
		}
	}

	record.Amount = ParseBRDecimal(cols.Value(row, FieldTotalPrice))

	// Item-level fields only when the file carries a SKU column
	if sku := cols.Value(row, FieldSKU); sku != "" {
		record.ChannelSKU = &sku
		record.Quantity = ParseBRInt(cols.Value(row, FieldQuantity))
		if record.Quantity <= 0 {
			record.Quantity = 1
		}
		if d, ok := ParseBRDecimalStrict(cols.Value(row, FieldUnitPrice)); ok {
			record.UnitPrice = &d
		}
		if d, ok := ParseBRDecimalStrict(cols.Value(row, FieldTotalPrice)); ok {
			record.LineTotal = &d
		}
	}

	return record, nil
}

// kindKeywords classify the operation-type cell of settlement style
// reports. Matching is case-insensitive substring, first hit wins.
var kindKeywords = []struct {
	fragment string
	kind     RecordKind
}{
	{"repasse", KindPayout},
	{"liquida", KindPayout},
	{"transferência", KindPayout},
	{"transferencia", KindPayout},
	{"saque", KindPayout},
	{"payout", KindPayout},
	{"estorno", KindRefund},
	{"reembolso", KindRefund},
	{"devolu", KindRefund},
	{"cancelamento", KindRefund},
	{"refund", KindRefund},
	{"tarifa", KindFee},
	{"taxa", KindFee},
	{"mensalidade", KindFee},
	{"fee", KindFee},
}

// classifyKind reads the operation-type cell. Rows without one, or with a
// type no keyword recognizes, are sales; that is all a plain sales report
// ever contains.
func classifyKind(raw string) RecordKind {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return KindSale
	}
	for _, kw := range kindKeywords {
		if strings.Contains(s, kw.fragment) {
			return kw.kind
		}
	}
	return KindSale
}

// parseFee reads an optional fee column as a non-negative deduction
func parseFee(row *Row, cols ColumnMap, f Field) *decimal.Decimal {
	if !cols.Has(f) {
		return nil
	}
	d, ok := ParseBRDecimalStrict(cols.Value(row, f))
	if !ok {
		return nil
	}
	d = d.Abs()
	return &d
}

// mercadoLivreParser reads Mercado Livre sales reports. ML reports carry the
// full fee breakdown (sale fee, shipping, ads) as separate columns.
type mercadoLivreParser struct{}

func (mercadoLivreParser) Channel() channel.Code { return channel.CodeMercadoLivre }

func (mercadoLivreParser) ParseRow(row *Row, cols ColumnMap) (*Record, error) {
	record, err := parseCommon(row, cols)
	if err != nil {
		return nil, err
	}
	record.Commission = parseFee(row, cols, FieldCommission)
	record.FixedFee = parseFee(row, cols, FieldFixedFee)
	record.ShippingCost = parseFee(row, cols, FieldShipping)
	record.AdsCost = parseFee(row, cols, FieldAds)
	record.Tax = parseFee(row, cols, FieldTax)
	return record, nil
}

// shopeeParser reads Shopee order exports. Shopee lumps commission and
// service fee together and reports amounts per item line.
type shopeeParser struct{}

func (shopeeParser) Channel() channel.Code { return channel.CodeShopee }

func (shopeeParser) ParseRow(row *Row, cols ColumnMap) (*Record, error) {
	record, err := parseCommon(row, cols)
	if err != nil {
		return nil, err
	}
	record.Commission = parseFee(row, cols, FieldCommission)
	record.ShippingCost = parseFee(row, cols, FieldShipping)
	record.Tax = parseFee(row, cols, FieldTax)
	// Shopee order exports have no sale total column on item rows; derive
	// the row amount from the item line when absent.
	if record.Amount.IsZero() && record.UnitPrice != nil && record.Quantity > 0 {
		record.Amount = record.UnitPrice.Mul(decimal.NewFromInt(int64(record.Quantity)))
	}
	return record, nil
}

// genericParser handles any channel without a dedicated layout, reading
// whatever the alias table resolved.
type genericParser struct {
	code channel.Code
}

func (p genericParser) Channel() channel.Code { return p.code }

func (genericParser) ParseRow(row *Row, cols ColumnMap) (*Record, error) {
	record, err := parseCommon(row, cols)
	if err != nil {
		return nil, err
	}
	record.Commission = parseFee(row, cols, FieldCommission)
	record.FixedFee = parseFee(row, cols, FieldFixedFee)
	record.ShippingCost = parseFee(row, cols, FieldShipping)
	record.AdsCost = parseFee(row, cols, FieldAds)
	record.Tax = parseFee(row, cols, FieldTax)
	return record, nil
}

// DetectPeriodDates returns the min and max valid dates across records.
// Records with no parseable date are skipped.
func DetectPeriodDates(records []*Record) (min, max *time.Time) {
	for _, r := range records {
		if r.Date == nil {
			continue
		}
		if min == nil || r.Date.Before(*min) {
			min = r.Date
		}
		if max == nil || r.Date.After(*max) {
			max = r.Date
		}
	}
	return min, max
}
