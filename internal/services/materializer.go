package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"kakeibo/internal/core"
)

// ErrRebuildInProgress is returned when a rebuild is requested while another
// one holds the ledger. Retryable: the caller can simply try again once the
// running rebuild finishes.
var ErrRebuildInProgress = errors.New("ledger rebuild already in progress")

// Materializer turns the declared configuration (plans, subscriptions,
// variable payments, card obligations) into the concrete dated event ledger.
// Rebuild is a pure function of the definitions plus the horizon: running it
// twice with unchanged inputs yields an identical event set.
type Materializer struct {
	store LedgerStore

	mu sync.Mutex // serializes concurrent rebuild requests
}

// NewMaterializer creates a materializer over the given store.
func NewMaterializer(store LedgerStore) *Materializer {
	return &Materializer{store: store}
}

// Rebuild atomically replaces every derived event between the start of the
// asOf month and the end of the month horizonMonths later. One-off and
// imported events are left untouched. Returns the number of derived events
// created.
//
// Concurrent rebuilds serialize: a second caller gets ErrRebuildInProgress
// instead of interleaving with the running one. On any failure the prior
// ledger state is preserved.
func (m *Materializer) Rebuild(ctx context.Context, asOf core.Date, horizonMonths int) (int, error) {
	if !m.mu.TryLock() {
		return 0, ErrRebuildInProgress
	}
	defer m.mu.Unlock()

	if horizonMonths < 1 {
		return 0, fmt.Errorf("rebuild: horizon must be at least 1 month, got %d", horizonMonths)
	}

	hStart := core.MonthStart(asOf)
	endY, endM := core.AddToYearMonth(asOf.Year(), asOf.Month(), horizonMonths)
	hEnd := core.MonthEnd(endY, endM)

	events, err := m.expandDefinitions(ctx, hStart, hEnd)
	if err != nil {
		return 0, err
	}

	cards, err := m.store.Cards(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild: load cards: %w", err)
	}

	obligationEvents, err := m.amortizeObligations(ctx, cards, hStart, hEnd)
	if err != nil {
		return 0, err
	}
	events = append(events, obligationEvents...)

	statements, transfers, err := m.settleCards(ctx, cards, events, hStart, hEnd)
	if err != nil {
		return 0, err
	}
	events = append(events, transfers...)

	sortEvents(events)

	if err := m.store.ReplaceDerivedEvents(ctx, events, statements); err != nil {
		return 0, fmt.Errorf("rebuild: replace derived events: %w", err)
	}

	slog.InfoContext(ctx, "Ledger rebuilt",
		"horizon_start", hStart.String(),
		"horizon_end", hEnd.String(),
		"events_created", len(events),
		"statements", len(statements))

	return len(events), nil
}

// expandDefinitions materializes plans, subscriptions and variable payments.
// Any invalid definition aborts the whole rebuild: a partially expanded
// ledger is a correctness bug, not a degraded mode.
func (m *Materializer) expandDefinitions(ctx context.Context, hStart, hEnd core.Date) ([]core.CashflowEvent, error) {
	var events []core.CashflowEvent

	plans, err := m.store.Plans(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: load plans: %w", err)
	}
	for _, p := range plans {
		occs, err := Expand(p.Recurrence, p.SignedAmount(), hStart, hEnd)
		if err != nil {
			return nil, fmt.Errorf("rebuild: plan %q: %w", p.Title, err)
		}
		for _, occ := range occs {
			events = append(events, core.CashflowEvent{
				Date:        occ.Date,
				AmountYen:   occ.AmountYen,
				AccountID:   p.AccountID,
				CardID:      p.CardID,
				Source:      core.SourcePlan,
				SourceID:    p.ID,
				Description: p.Title,
				Merchant:    p.Title,
			})
		}
	}

	subs, err := m.store.Subscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: load subscriptions: %w", err)
	}
	for _, s := range subs {
		occs, err := Expand(s.Recurrence, s.SignedAmount(), hStart, hEnd)
		if err != nil {
			return nil, fmt.Errorf("rebuild: subscription %q: %w", s.Name, err)
		}
		for _, occ := range occs {
			events = append(events, core.CashflowEvent{
				Date:        occ.Date,
				AmountYen:   occ.AmountYen,
				AccountID:   s.AccountID,
				CardID:      s.CardID,
				Source:      core.SourceSubscription,
				SourceID:    s.ID,
				Description: s.Name,
				Merchant:    s.Name,
			})
		}
	}

	vrps, err := m.store.VariablePayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: load variable payments: %w", err)
	}
	confirmed, err := m.confirmationIndex(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vrps {
		occs, err := Expand(v.Recurrence, v.SignedAmount(), hStart, hEnd)
		if err != nil {
			return nil, fmt.Errorf("rebuild: variable payment %q: %w", v.Name, err)
		}
		for _, occ := range occs {
			amount := occ.AmountYen
			if c, ok := confirmed[confirmationKey{v.ID, occ.Date.String()}]; ok {
				amount = -c
			}
			events = append(events, core.CashflowEvent{
				Date:        occ.Date,
				AmountYen:   amount,
				AccountID:   v.AccountID,
				CardID:      v.CardID,
				Source:      core.SourceVRP,
				SourceID:    v.ID,
				Description: v.Name,
				Merchant:    v.Name,
			})
		}
	}

	return events, nil
}

type confirmationKey struct {
	vrpID int64
	date  string
}

func (m *Materializer) confirmationIndex(ctx context.Context) (map[confirmationKey]int64, error) {
	confs, err := m.store.VariableConfirmations(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: load confirmations: %w", err)
	}
	idx := make(map[confirmationKey]int64, len(confs))
	for _, c := range confs {
		idx[confirmationKey{c.VariablePaymentID, c.OccurrenceDate.String()}] = c.ConfirmedAmountYen
	}
	return idx, nil
}

// amortizeObligations emits one charge per active billing cycle for each
// revolving/installment obligation, dated on the cycle's closing date.
func (m *Materializer) amortizeObligations(ctx context.Context, cards []core.Card, hStart, hEnd core.Date) ([]core.CashflowEvent, error) {
	obligations, err := m.store.CardObligations(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: load obligations: %w", err)
	}

	cardByID := make(map[int64]core.Card, len(cards))
	for _, c := range cards {
		cardByID[c.ID] = c
	}

	var events []core.CashflowEvent
	for _, ob := range obligations {
		card, ok := cardByID[ob.CardID]
		if !ok {
			return nil, fmt.Errorf("rebuild: obligation %d references unknown card %d", ob.ID, ob.CardID)
		}

		source := core.SourceInstallment
		if ob.Kind == core.Revolving {
			source = core.SourceRevolving
		}

		for y, mo := hStart.Year(), hStart.Month(); core.MonthIndex(y, mo) <= core.MonthIndex(hEnd.Year(), hEnd.Month()); y, mo = core.AddToYearMonth(y, mo, 1) {
			charge, active := CycleCharge(ob, y, mo)
			if !active || charge == 0 {
				continue
			}
			period := CardPeriod(card, y, mo)
			events = append(events, core.CashflowEvent{
				Date:        period.End,
				AmountYen:   -charge,
				CardID:      ob.CardID,
				Source:      source,
				SourceID:    ob.ID,
				Description: ob.Title,
				Merchant:    ob.Title,
			})
		}
	}
	return events, nil
}

// BillingPeriod is one card billing cycle: charges in [Start, End] are
// withdrawn from the payment account on Withdraw.
type BillingPeriod struct {
	Start    core.Date
	End      core.Date
	Withdraw core.Date
}

// CardPeriod computes the billing cycle whose withdrawal happens in the
// given month. The period closes on the card's closing day of the previous
// month (month-end clamped) and opens the day after the closing before that.
func CardPeriod(card core.Card, withdrawYear, withdrawMonth int) BillingPeriod {
	endY, endM := core.AddToYearMonth(withdrawYear, withdrawMonth, -1)
	end := core.ClampDay(endY, endM, card.ClosingDay)

	prevY, prevM := core.AddToYearMonth(endY, endM, -1)
	start := core.ClampDay(prevY, prevM, card.ClosingDay).AddDays(1)

	return BillingPeriod{
		Start:    start,
		End:      end,
		Withdraw: core.ClampDay(withdrawYear, withdrawMonth, card.PaymentDay),
	}
}

// settleCards aggregates each card's billing cycles into statements and
// emits the paired transfer events: a debit on the payment account and the
// reciprocal card-side entry, both dated on the withdrawal day.
func (m *Materializer) settleCards(ctx context.Context, cards []core.Card, pending []core.CashflowEvent, hStart, hEnd core.Date) ([]core.CardStatement, []core.CashflowEvent, error) {
	var statements []core.CardStatement
	var transfers []core.CashflowEvent

	for _, card := range cards {
		for y, mo := hStart.Year(), hStart.Month(); core.MonthIndex(y, mo) <= core.MonthIndex(hEnd.Year(), hEnd.Month()); y, mo = core.AddToYearMonth(y, mo, 1) {
			period := CardPeriod(card, y, mo)
			if period.Withdraw.Before(hStart) || period.Withdraw.After(hEnd) {
				continue
			}

			total := int64(0)
			for _, ev := range pending {
				if ev.CardID == card.ID && inPeriod(ev.Date, period) && card.ActiveOn(ev.Date) {
					total += ev.AmountYen
				}
			}

			// Authoritative card rows (imported usage) already in the ledger.
			existing, err := m.store.CardEventsBetween(ctx, card.ID, period.Start, period.End)
			if err != nil {
				return nil, nil, fmt.Errorf("rebuild: card %q events: %w", card.Name, err)
			}
			for _, ev := range existing {
				if !ev.Source.IsDerived() && card.ActiveOn(ev.Date) {
					total += ev.AmountYen
				}
			}

			statements = append(statements, core.CardStatement{
				CardID:       card.ID,
				PeriodStart:  period.Start,
				PeriodEnd:    period.End,
				WithdrawDate: period.Withdraw,
				AmountYen:    total,
			})

			if total == 0 {
				continue
			}
			desc := fmt.Sprintf("card withdrawal: %s (%s..%s)", card.Name, period.Start, period.End)
			transfers = append(transfers,
				core.CashflowEvent{
					Date:        period.Withdraw,
					AmountYen:   total,
					AccountID:   card.PaymentAccountID,
					Source:      core.SourceCardTransfer,
					SourceID:    card.ID,
					Description: desc,
				},
				core.CashflowEvent{
					Date:        period.Withdraw,
					AmountYen:   -total,
					CardID:      card.ID,
					Source:      core.SourceCardTransfer,
					SourceID:    card.ID,
					Description: desc,
				},
			)
		}
	}
	return statements, transfers, nil
}

func inPeriod(d core.Date, p BillingPeriod) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// sortEvents orders events deterministically so that two rebuilds over the
// same inputs produce byte-identical ledgers.
func sortEvents(events []core.CashflowEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.AmountYen < b.AmountYen
	})
}
