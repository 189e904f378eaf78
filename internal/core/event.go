package core

// EventSource tags a cash-flow event with the definition kind it came from.
// Derived sources are wiped and regenerated on every rebuild; authoritative
// sources (one-off rows, imported card usage) are never touched by a rebuild.
type EventSource string

const (
	SourceOneoff       EventSource = "oneoff"
	SourcePlan         EventSource = "plan"
	SourceSubscription EventSource = "subscription"
	SourceVRP          EventSource = "vrp"
	SourceRevolving    EventSource = "revolving"
	SourceInstallment  EventSource = "installment"
	SourceCardTransfer EventSource = "card_transfer"
	SourceImport       EventSource = "import"
)

// DerivedSources lists the sources the materializer owns. The order here is
// also the deletion scope of a rebuild.
var DerivedSources = []EventSource{
	SourcePlan,
	SourceSubscription,
	SourceVRP,
	SourceRevolving,
	SourceInstallment,
	SourceCardTransfer,
}

// IsDerived reports whether the source is regenerated on rebuild.
func (s EventSource) IsDerived() bool {
	for _, d := range DerivedSources {
		if s == d {
			return true
		}
	}
	return false
}

// CashflowEvent is one dated movement of money. Exactly one of AccountID or
// CardID is set: account events move a bank balance, card events accrue on a
// billing cycle until the statement transfer pays them off.
type CashflowEvent struct {
	ID          int64
	Date        Date
	AmountYen   int64 // signed: negative = outflow
	AccountID   int64 // 0 when the event belongs to a card
	CardID      int64 // 0 when the event belongs to an account
	Source      EventSource
	SourceID    int64 // id of the originating definition, 0 for ad-hoc rows
	Description string
	Merchant    string // card rows: normalized store label
}

// CardTransaction is an imported card usage row. It is authoritative input:
// rebuilds read it but never rewrite it. Expenses are negative.
type CardTransaction struct {
	ID          int64
	CardID      int64
	Date        Date
	AmountYen   int64
	Merchant    string
	Note        string
	Fingerprint string // sha256 over date|amount|normalized merchant
}

// CardStatement is the aggregate of one billing cycle: every card-sourced
// event dated inside [PeriodStart, PeriodEnd] and inside the card's validity
// window. WithdrawDate is when the total leaves the payment account.
type CardStatement struct {
	ID           int64
	CardID       int64
	PeriodStart  Date
	PeriodEnd    Date
	WithdrawDate Date
	AmountYen    int64
}

// ForecastPoint is one day of a projected balance series.
type ForecastPoint struct {
	Date       Date
	BalanceYen int64
}
