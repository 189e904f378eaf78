package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/core"
)

// Projector walks the materialized ledger forward from current balances and
// produces daily balance series. Pure read side; runs after a rebuild, never
// interleaved with one.
type Projector struct {
	store ReadStore

	// DangerThresholdYen marks a series as dangerous when its minimum
	// projected balance dips below this value.
	DangerThresholdYen int64
}

// NewProjector creates a projector over the given store.
func NewProjector(store ReadStore) *Projector {
	return &Projector{store: store}
}

// SeriesSummary condenses one balance series for display.
type SeriesSummary struct {
	MinBalanceYen int64
	MinDate       core.Date
	EndBalanceYen int64
	IsDanger      bool
}

// AccountForecast is the daily balance series of one account.
type AccountForecast struct {
	AccountID       int64
	Name            string
	StartBalanceYen int64
	Summary         SeriesSummary
	Series          []core.ForecastPoint
}

// Forecast bundles the per-account series with the aggregate series.
// Invariant: Total[i] equals the sum of every account's series at the same
// date, for every day of the horizon.
type Forecast struct {
	Start    core.Date
	End      core.Date
	Accounts []AccountForecast
	Total    []core.ForecastPoint
}

// ProjectAccounts produces one gap-free daily series per account over
// [start, start+horizonDays] plus the aggregate. An account's opening
// balance applies from its effective start date; the day after its effective
// end the balance drops to zero and later events stop applying.
func (p *Projector) ProjectAccounts(ctx context.Context, start core.Date, horizonDays int) (*Forecast, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("project: horizon must be at least 1 day, got %d", horizonDays)
	}
	end := start.AddDays(horizonDays)

	accounts, err := p.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("project: load accounts: %w", err)
	}
	events, err := p.store.EventsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("project: load events: %w", err)
	}

	// Per-account daily deltas. Card-side events carry no account and do not
	// move balances; money leaves an account only through the paired
	// transfer debit.
	deltas := make(map[int64]map[string]int64)
	for _, ev := range events {
		if ev.AccountID == 0 {
			continue
		}
		byDay, ok := deltas[ev.AccountID]
		if !ok {
			byDay = make(map[string]int64)
			deltas[ev.AccountID] = byDay
		}
		byDay[ev.Date.String()] += ev.AmountYen
	}

	forecasts := make([]AccountForecast, len(accounts))
	g, _ := errgroup.WithContext(ctx)
	for i, acc := range accounts {
		g.Go(func() error {
			forecasts[i] = p.projectAccount(acc, deltas[acc.ID], start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	days := horizonDays + 1
	total := make([]core.ForecastPoint, days)
	for i := 0; i < days; i++ {
		total[i].Date = start.AddDays(i)
	}
	for _, f := range forecasts {
		for i, pt := range f.Series {
			total[i].BalanceYen += pt.BalanceYen
		}
	}

	return &Forecast{Start: start, End: end, Accounts: forecasts, Total: total}, nil
}

func (p *Projector) projectAccount(acc core.Account, byDay map[string]int64, start, end core.Date) AccountForecast {
	startBalance := int64(0)
	if acc.ActiveOn(start) {
		startBalance = acc.BalanceYen
	}

	balance := startBalance
	var series []core.ForecastPoint
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !acc.EffectiveStart.IsZero() && d.Equal(acc.EffectiveStart) && d.After(start) {
			balance = acc.BalanceYen
		}
		if !acc.EffectiveEnd.IsZero() && d.Equal(acc.EffectiveEnd.AddDays(1)) {
			balance = 0
		}
		if acc.ActiveOn(d) {
			balance += byDay[d.String()]
		}
		series = append(series, core.ForecastPoint{Date: d, BalanceYen: balance})
	}

	return AccountForecast{
		AccountID:       acc.ID,
		Name:            acc.Name,
		StartBalanceYen: startBalance,
		Summary:         p.summarize(series, start, startBalance),
		Series:          series,
	}
}

func (p *Projector) summarize(series []core.ForecastPoint, start core.Date, startBalance int64) SeriesSummary {
	s := SeriesSummary{
		MinBalanceYen: startBalance,
		MinDate:       start,
		EndBalanceYen: startBalance,
	}
	for _, pt := range series {
		if pt.BalanceYen < s.MinBalanceYen {
			s.MinBalanceYen = pt.BalanceYen
			s.MinDate = pt.Date
		}
	}
	if len(series) > 0 {
		s.EndBalanceYen = series[len(series)-1].BalanceYen
	}
	s.IsDanger = s.MinBalanceYen < p.DangerThresholdYen
	return s
}

// committedSources are the recurring and card obligation outflows that count
// as reserved money between materialization and payment.
var committedSources = map[core.EventSource]bool{
	core.SourcePlan:         true,
	core.SourceSubscription: true,
	core.SourceVRP:          true,
	core.SourceCardTransfer: true,
}

// ProjectFreeMoney produces the discretionary series: at each day D the
// aggregate balance minus every committed outflow dated strictly after D
// within the horizon. An outflow dated D itself is already reflected in the
// running balance, so it is not reserved again.
func (p *Projector) ProjectFreeMoney(ctx context.Context, start core.Date, horizonDays int) ([]core.ForecastPoint, error) {
	base, err := p.ProjectAccounts(ctx, start, horizonDays)
	if err != nil {
		return nil, err
	}

	events, err := p.store.EventsBetween(ctx, start, base.End)
	if err != nil {
		return nil, fmt.Errorf("project free money: load events: %w", err)
	}

	accounts, err := p.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("project free money: load accounts: %w", err)
	}
	accountByID := make(map[int64]core.Account, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}

	outflowByDay := make(map[string]int64)
	for _, ev := range events {
		if ev.AccountID == 0 || ev.AmountYen >= 0 || !committedSources[ev.Source] {
			continue
		}
		acc, ok := accountByID[ev.AccountID]
		if !ok || !acc.ActiveOn(ev.Date) {
			continue
		}
		outflowByDay[ev.Date.String()] += -ev.AmountYen
	}

	// Suffix sums: reserved[i] = outflows dated strictly after day i.
	free := make([]core.ForecastPoint, len(base.Total))
	reserved := int64(0)
	for i := len(base.Total) - 1; i >= 0; i-- {
		pt := base.Total[i]
		free[i] = core.ForecastPoint{Date: pt.Date, BalanceYen: pt.BalanceYen - reserved}
		reserved += outflowByDay[pt.Date.String()]
	}
	return free, nil
}
