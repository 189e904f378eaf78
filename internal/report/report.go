// Package report builds the month-close summary from the materialized
// ledger: cash totals, per-card cycle totals and the biggest merchants.
package report

import (
	"context"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

// CardSection is one card's slice of the monthly report: the billing cycle
// that withdraws in the report month plus its merchant breakdown.
type CardSection struct {
	CardID       int64                    `json:"card_id"`
	CardName     string                   `json:"card_name"`
	PeriodStart  core.Date                `json:"period_start"`
	PeriodEnd    core.Date                `json:"period_end"`
	WithdrawDate core.Date                `json:"withdraw_date"`
	AmountYen    int64                    `json:"amount_yen"`
	Merchants    []services.MerchantTotal `json:"merchants"`
}

// MonthlyReport is the month-close summary.
type MonthlyReport struct {
	Year       int           `json:"year"`
	Month      int           `json:"month"`
	IncomeYen  int64         `json:"income_yen"`
	ExpenseYen int64         `json:"expense_yen"` // magnitude
	NetYen     int64         `json:"net_yen"`
	Cards      []CardSection `json:"cards"`
}

// Builder assembles monthly reports from the read side of the store.
type Builder struct {
	store      services.ReadStore
	aggregator *services.Aggregator
}

func NewBuilder(store services.ReadStore) *Builder {
	return &Builder{store: store, aggregator: services.NewAggregator(store)}
}

// Build produces the report for one month. Income and expense totals cover
// account-side events only; card charges surface through their statement
// sections so a purchase is never counted twice.
func (b *Builder) Build(ctx context.Context, year, month int) (*MonthlyReport, error) {
	start := core.NewDate(year, month, 1)
	end := core.MonthEnd(year, month)

	events, err := b.store.EventsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report %d-%02d: load events: %w", year, month, err)
	}

	r := &MonthlyReport{Year: year, Month: month}
	for _, ev := range events {
		if ev.AccountID == 0 {
			continue
		}
		if ev.AmountYen >= 0 {
			r.IncomeYen += ev.AmountYen
		} else {
			r.ExpenseYen += -ev.AmountYen
		}
	}
	r.NetYen = r.IncomeYen - r.ExpenseYen

	cards, err := b.store.Cards(ctx)
	if err != nil {
		return nil, fmt.Errorf("report %d-%02d: load cards: %w", year, month, err)
	}
	for _, card := range cards {
		period := services.CardPeriod(card, year, month)
		stmt, err := b.aggregator.Statement(ctx, card.ID, period.Start, period.End)
		if err != nil {
			return nil, fmt.Errorf("report %d-%02d: card %q: %w", year, month, card.Name, err)
		}
		merchants, err := b.aggregator.MerchantBreakdown(ctx, card.ID, period.Start, period.End)
		if err != nil {
			return nil, fmt.Errorf("report %d-%02d: card %q merchants: %w", year, month, card.Name, err)
		}
		r.Cards = append(r.Cards, CardSection{
			CardID:       card.ID,
			CardName:     card.Name,
			PeriodStart:  period.Start,
			PeriodEnd:    period.End,
			WithdrawDate: period.Withdraw,
			AmountYen:    stmt.AmountYen,
			Merchants:    merchants,
		})
	}

	return r, nil
}
