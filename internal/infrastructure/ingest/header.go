package ingest

import "strings"

// Field names a logical column the pipeline cares about, independent of how
// a given marketplace report labels it.
type Field string

const (
	FieldDate        Field = "date"
	FieldExternalRef Field = "external_ref"
	FieldOrderID     Field = "order_id"
	FieldSKU         Field = "sku"
	FieldQuantity    Field = "quantity"
	FieldUnitPrice   Field = "unit_price"
	FieldTotalPrice  Field = "total_price"
	FieldDescription Field = "description"
	FieldStoreName   Field = "store_name"
	FieldCommission  Field = "commission"
	FieldFixedFee    Field = "fixed_fee"
	FieldShipping    Field = "shipping"
	FieldAds         Field = "ads"
	FieldTax         Field = "tax"
	FieldStatus      Field = "status"
	FieldRecordType  Field = "record_type"
)

// fieldAliases is the ordered alias table for fuzzy header matching. Each
// logical field lists acceptable header spellings; the first alias that
// matches a header (case-insensitive, exact or substring) wins. Adding a new
// marketplace report format means adding aliases here, not code.
var fieldAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldDate, []string{"data da venda", "data do pedido", "data", "date", "dia"}},
	{FieldExternalRef, []string{"n.º de venda", "nº de venda", "numero da venda", "número da venda", "id da venda", "id do pacote", "venda", "referência", "referencia", "id da transação", "id da transacao"}},
	{FieldOrderID, []string{"id do pedido", "número do pedido", "numero do pedido", "pedido", "order id", "order"}},
	{FieldSKU, []string{"sku do anúncio", "sku do anuncio", "sku", "código do anúncio", "codigo do anuncio", "código de referência", "codigo de referencia", "número de referência sku", "numero de referencia sku"}},
	{FieldQuantity, []string{"quantidade", "unidades", "qtd", "qtde", "quantity"}},
	{FieldUnitPrice, []string{"preço unitário", "preco unitario", "preço unitário de venda", "valor unitário", "valor unitario", "unit price"}},
	{FieldTotalPrice, []string{"valor total", "total da venda", "preço total", "preco total", "receita por produtos", "subtotal do produto", "total"}},
	{FieldDescription, []string{"título do anúncio", "titulo do anuncio", "descrição", "descricao", "nome do produto", "produto", "título", "titulo", "description"}},
	{FieldStoreName, []string{"nome da loja", "loja", "canal de vendas", "canal", "marketplace", "store"}},
	{FieldCommission, []string{"tarifa de venda", "comissão", "comissao", "taxa de comissão", "taxa de comissao", "commission"}},
	{FieldFixedFee, []string{"tarifa fixa", "taxa fixa", "custo fixo"}},
	{FieldShipping, []string{"tarifas de envio", "custo de envio", "frete", "taxa de envio", "envio"}},
	{FieldAds, []string{"publicidade", "tarifa de publicidade", "ads", "anúncios patrocinados", "anuncios patrocinados"}},
	{FieldTax, []string{"impostos", "imposto", "taxas de imposto", "iss"}},
	{FieldStatus, []string{"status do pedido", "estado", "situação", "situacao", "status"}},
	{FieldRecordType, []string{"tipo de lançamento", "tipo de lancamento", "tipo de operação", "tipo de operacao", "descrição da operação", "descricao da operacao", "tipo de movimento", "operação", "operacao"}},
}

// ColumnMap resolves logical fields to header names of a concrete file
type ColumnMap map[Field]string

// Has reports whether the field was resolved
func (m ColumnMap) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Value fetches the cell for a logical field, empty when unresolved
func (m ColumnMap) Value(row *Row, f Field) string {
	header, ok := m[f]
	if !ok {
		return ""
	}
	return row.Get(header)
}

// ResolveColumns matches the alias table against a header row. For each
// logical field the first alias with an exact case-insensitive match wins;
// substring matches are the fallback. A header already claimed by one field
// is not claimed again by another.
func ResolveColumns(headers []string) ColumnMap {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	claimed := make(map[int]bool)
	result := make(ColumnMap)

	match := func(field Field, aliases []string, exact bool) {
		if result.Has(field) {
			return
		}
		for _, alias := range aliases {
			for i, h := range normalized {
				if claimed[i] || h == "" {
					continue
				}
				if (exact && h == alias) || (!exact && strings.Contains(h, alias)) {
					result[field] = headers[i]
					claimed[i] = true
					return
				}
			}
		}
	}

	for _, fa := range fieldAliases {
		match(fa.field, fa.aliases, true)
	}
	for _, fa := range fieldAliases {
		match(fa.field, fa.aliases, false)
	}

	return result
}
