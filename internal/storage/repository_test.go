package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kakeibo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPlanRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	accID, err := repo.SaveAccount(ctx, core.Account{Name: "main", BalanceYen: 120000})
	if err != nil {
		t.Fatalf("SaveAccount(): %v", err)
	}

	plan := core.Plan{
		Type: core.PlanExpense, Title: "rent", AmountYen: 85000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: core.Recurrence{
			Freq: core.Monthly, Day: 27,
			EffectiveStart: core.NewDate(2024, 4, 1),
			EffectiveEnd:   core.NewDate(2026, 3, 31),
		},
	}
	planID, err := repo.SavePlan(ctx, plan)
	if err != nil {
		t.Fatalf("SavePlan(): %v", err)
	}

	plans, err := repo.Plans(ctx)
	if err != nil {
		t.Fatalf("Plans(): %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans, want 1", len(plans))
	}
	got := plans[0]
	if got.ID != planID || got.Title != "rent" || got.AmountYen != 85000 {
		t.Errorf("plan = %+v", got)
	}
	if got.AccountID != accID || got.CardID != 0 {
		t.Errorf("plan target = account %d card %d, want account %d card 0", got.AccountID, got.CardID, accID)
	}
	if !got.Recurrence.EffectiveStart.Equal(plan.Recurrence.EffectiveStart) ||
		!got.Recurrence.EffectiveEnd.Equal(plan.Recurrence.EffectiveEnd) {
		t.Errorf("recurrence window = %s..%s", got.Recurrence.EffectiveStart, got.Recurrence.EffectiveEnd)
	}
}

func TestSavePlanRejectsWeeklyRecurrence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	accID, err := repo.SaveAccount(ctx, core.Account{Name: "main"})
	if err != nil {
		t.Fatalf("SaveAccount(): %v", err)
	}

	_, err = repo.SavePlan(ctx, core.Plan{
		Type: core.PlanExpense, Title: "gym", AmountYen: 2000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: core.Recurrence{
			Freq: core.WeeklyInterval, IntervalWeeks: 2,
			EffectiveStart: core.NewDate(2025, 1, 6),
		},
	})
	if !errors.Is(err, core.ErrInvalidFrequency) {
		t.Fatalf("SavePlan() = %v, want %v", err, core.ErrInvalidFrequency)
	}

	plans, err := repo.Plans(ctx)
	if err != nil {
		t.Fatalf("Plans(): %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("got %d plans, want none persisted", len(plans))
	}
}

func TestOpenEndedDatesSurviveRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.SaveAccount(ctx, core.Account{Name: "main"}); err != nil {
		t.Fatalf("SaveAccount(): %v", err)
	}
	accounts, err := repo.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts(): %v", err)
	}
	if !accounts[0].EffectiveStart.IsZero() || !accounts[0].EffectiveEnd.IsZero() {
		t.Errorf("open-ended account came back with window %s..%s",
			accounts[0].EffectiveStart, accounts[0].EffectiveEnd)
	}
}

func TestConfirmationUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	vrpID, err := repo.SaveVariablePayment(ctx, core.VariableRecurringPayment{
		Name: "electricity", EstimatedAmountYen: 8000,
		PaymentMethod: core.PayBank, AccountID: 1,
		Recurrence: core.Recurrence{Freq: core.Monthly, Day: 10, EffectiveStart: core.NewDate(2024, 1, 1)},
	})
	if err != nil {
		t.Fatalf("SaveVariablePayment(): %v", err)
	}

	conf := core.VariableConfirmation{
		VariablePaymentID:  vrpID,
		OccurrenceDate:     core.NewDate(2025, 1, 10),
		ConfirmedAmountYen: 8240,
	}
	if _, err := repo.SaveConfirmation(ctx, conf); err != nil {
		t.Fatalf("SaveConfirmation(): %v", err)
	}
	// Same occurrence again with a corrected amount.
	conf.ConfirmedAmountYen = 8300
	if _, err := repo.SaveConfirmation(ctx, conf); err != nil {
		t.Fatalf("SaveConfirmation() upsert: %v", err)
	}

	confs, err := repo.VariableConfirmations(ctx)
	if err != nil {
		t.Fatalf("VariableConfirmations(): %v", err)
	}
	if len(confs) != 1 {
		t.Fatalf("got %d confirmations, want 1", len(confs))
	}
	if confs[0].ConfirmedAmountYen != 8300 {
		t.Errorf("confirmed amount = %d, want 8300", confs[0].ConfirmedAmountYen)
	}
}

func TestReplaceDerivedEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.SaveOneoffEvent(ctx, core.CashflowEvent{
		Date: core.NewDate(2025, 1, 20), AmountYen: -42000, AccountID: 1, Description: "new tires",
	}); err != nil {
		t.Fatalf("SaveOneoffEvent(): %v", err)
	}

	first := []core.CashflowEvent{
		{Date: core.NewDate(2025, 1, 15), AmountYen: -85000, AccountID: 1, Source: core.SourcePlan, SourceID: 1},
		{Date: core.NewDate(2025, 2, 15), AmountYen: -85000, AccountID: 1, Source: core.SourcePlan, SourceID: 1},
	}
	if err := repo.ReplaceDerivedEvents(ctx, first, nil); err != nil {
		t.Fatalf("ReplaceDerivedEvents(): %v", err)
	}

	second := []core.CashflowEvent{
		{Date: core.NewDate(2025, 1, 15), AmountYen: -90000, AccountID: 1, Source: core.SourcePlan, SourceID: 1},
	}
	stmts := []core.CardStatement{
		{CardID: 1, PeriodStart: core.NewDate(2024, 12, 16), PeriodEnd: core.NewDate(2025, 1, 15),
			WithdrawDate: core.NewDate(2025, 2, 27), AmountYen: -3000},
	}
	if err := repo.ReplaceDerivedEvents(ctx, second, stmts); err != nil {
		t.Fatalf("second ReplaceDerivedEvents(): %v", err)
	}

	events, err := repo.EventsBetween(ctx, core.NewDate(2025, 1, 1), core.NewDate(2025, 12, 31))
	if err != nil {
		t.Fatalf("EventsBetween(): %v", err)
	}
	var plans, oneoffs int
	for _, ev := range events {
		switch ev.Source {
		case core.SourcePlan:
			plans++
			if ev.AmountYen != -90000 {
				t.Errorf("stale derived amount survived: %d", ev.AmountYen)
			}
		case core.SourceOneoff:
			oneoffs++
		}
	}
	if plans != 1 || oneoffs != 1 {
		t.Errorf("ledger = %d plan events, %d one-offs; want 1 and 1", plans, oneoffs)
	}

	got, err := repo.Statements(ctx)
	if err != nil {
		t.Fatalf("Statements(): %v", err)
	}
	if len(got) != 1 || got[0].AmountYen != -3000 {
		t.Errorf("statements = %+v, want one with amount -3000", got)
	}
}

func TestSaveCardTransactionsMirrorsEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	txs := []core.CardTransaction{
		{CardID: 1, Date: core.NewDate(2025, 1, 5), AmountYen: -4800, Merchant: "grocer",
			Fingerprint: "fp-1"},
		{CardID: 1, Date: core.NewDate(2025, 1, 9), AmountYen: -1200, Merchant: "cafe",
			Fingerprint: "fp-2"},
	}
	if err := repo.SaveCardTransactions(ctx, txs); err != nil {
		t.Fatalf("SaveCardTransactions(): %v", err)
	}

	stored, err := repo.CardTransactionsBetween(ctx, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))
	if err != nil {
		t.Fatalf("CardTransactionsBetween(): %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d transactions, want 2", len(stored))
	}

	events, err := repo.CardEventsBetween(ctx, 1, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))
	if err != nil {
		t.Fatalf("CardEventsBetween(): %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d mirrored events, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Source != core.SourceImport {
			t.Errorf("mirrored event source = %s, want import", ev.Source)
		}
	}
}

func TestCloseObligation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.SaveObligation(ctx, core.CardObligation{
		CardID: 1, Kind: core.Revolving, Title: "revolving balance",
		MonthlyPaymentYen: 5000, StartYear: 2025, StartMonth: 1,
	})
	if err != nil {
		t.Fatalf("SaveObligation(): %v", err)
	}

	if err := repo.CloseObligation(ctx, id); err != nil {
		t.Fatalf("CloseObligation(): %v", err)
	}
	obs, err := repo.CardObligations(ctx)
	if err != nil {
		t.Fatalf("CardObligations(): %v", err)
	}
	if !obs[0].Closed {
		t.Error("obligation not marked closed")
	}

	if err := repo.CloseObligation(ctx, 999); err == nil {
		t.Error("closing an unknown obligation succeeded, want error")
	}
}
