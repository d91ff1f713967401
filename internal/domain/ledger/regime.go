package ledger

// Regime is the accounting regime a movement is recognized under. Every
// movement carries exactly one regime: the cash-flow view consumes cash
// rows, the DRE view consumes accrual rows, and the two never overlap.
type Regime string

const (
	RegimeAccrual Regime = "ACCRUAL" // Competência: recognized when incurred
	RegimeCash    Regime = "CASH"    // Caixa: recognized when money moves
)

// IsValid checks if the regime is valid
func (r Regime) IsValid() bool {
	return r == RegimeAccrual || r == RegimeCash
}

// Transaction types with regime significance. Origins not listed here fall
// through to the default for their origin.
const (
	TxTypeSale           = "sale"
	TxTypePayout         = "payout"
	TxTypeSettlement     = "settlement"
	TxTypeCardExpense    = "card_expense"
	TxTypeInvoicePayment = "invoice_payment"
)

// ClassifyRegime derives the regime from origin and transaction type. This
// is the single source of truth for the cash/accrual partition:
//
//	marketplace sale            -> accrual
//	marketplace payout          -> cash
//	bank (any)                  -> cash
//	payable/receivable settled  -> cash
//	card line-item expense      -> accrual (period incurred)
//	card invoice payment        -> cash
//	manual (any)                -> cash
//
// Card line items are accrual: the expense belongs to the period it was
// incurred, and the invoice payment is the cash event. Classifying both as
// cash would double-count the invoice.
func ClassifyRegime(origin Origin, txType string) Regime {
	switch origin {
	case OriginMarketplace:
		if txType == TxTypeSale {
			return RegimeAccrual
		}
		return RegimeCash
	case OriginCard:
		if txType == TxTypeInvoicePayment {
			return RegimeCash
		}
		return RegimeAccrual
	case OriginBank, OriginPayable, OriginReceivable, OriginManual:
		return RegimeCash
	default:
		return RegimeCash
	}
}
