package services

import (
	"context"
	"fmt"
	"sort"

	"kakeibo/internal/core"
)

// Aggregator computes per-card billing statements from the materialized
// ledger. Pure read side: it never mutates events.
type Aggregator struct {
	store ReadStore
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(store ReadStore) *Aggregator {
	return &Aggregator{store: store}
}

// Statement sums the signed amounts of every card event dated inside
// [periodStart, periodEnd] and inside the card's validity window. Events
// outside the card's window contribute zero even when they fall inside the
// requested period. An unknown card or an empty period yields a zero
// statement, not an error.
func (a *Aggregator) Statement(ctx context.Context, cardID int64, periodStart, periodEnd core.Date) (core.CardStatement, error) {
	stmt := core.CardStatement{
		CardID:      cardID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	card, found, err := a.cardByID(ctx, cardID)
	if err != nil {
		return stmt, err
	}
	if !found {
		return stmt, nil
	}

	wy, wm := core.AddToYearMonth(periodEnd.Year(), periodEnd.Month(), 1)
	stmt.WithdrawDate = core.ClampDay(wy, wm, card.PaymentDay)

	events, err := a.store.CardEventsBetween(ctx, cardID, periodStart, periodEnd)
	if err != nil {
		return stmt, fmt.Errorf("aggregate card %d: %w", cardID, err)
	}
	for _, ev := range events {
		if ev.Source == core.SourceCardTransfer {
			continue // the payoff entry is not a charge
		}
		if !card.ActiveOn(ev.Date) {
			continue
		}
		stmt.AmountYen += ev.AmountYen
	}
	return stmt, nil
}

// MerchantTotal is one line of a statement's per-store breakdown.
type MerchantTotal struct {
	Merchant  string `json:"merchant"`
	AmountYen int64  `json:"amount_yen"`
	Count     int    `json:"count"`
}

// MerchantBreakdown groups the same filtered event set as Statement by
// merchant label instead of summing one total, ordered by descending
// magnitude (merchant name as tiebreak).
func (a *Aggregator) MerchantBreakdown(ctx context.Context, cardID int64, periodStart, periodEnd core.Date) ([]MerchantTotal, error) {
	card, found, err := a.cardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	events, err := a.store.CardEventsBetween(ctx, cardID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("aggregate card %d merchants: %w", cardID, err)
	}

	totals := map[string]*MerchantTotal{}
	for _, ev := range events {
		if ev.Source == core.SourceCardTransfer {
			continue
		}
		if !card.ActiveOn(ev.Date) {
			continue
		}
		label := ev.Merchant
		if label == "" {
			label = ev.Description
		}
		if label == "" {
			label = "-"
		}
		t, ok := totals[label]
		if !ok {
			t = &MerchantTotal{Merchant: label}
			totals[label] = t
		}
		t.AmountYen += ev.AmountYen
		t.Count++
	}

	out := make([]MerchantTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs64(out[i].AmountYen), abs64(out[j].AmountYen)
		if ai != aj {
			return ai > aj
		}
		return out[i].Merchant < out[j].Merchant
	})
	return out, nil
}

func (a *Aggregator) cardByID(ctx context.Context, cardID int64) (core.Card, bool, error) {
	cards, err := a.store.Cards(ctx)
	if err != nil {
		return core.Card{}, false, fmt.Errorf("load cards: %w", err)
	}
	for _, c := range cards {
		if c.ID == cardID {
			return c, true, nil
		}
	}
	return core.Card{}, false, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
