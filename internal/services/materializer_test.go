package services_test

import (
	"context"
	"errors"
	"testing"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
	"kakeibo/internal/storage/memory"
)

func monthlyOn(day int, from core.Date) core.Recurrence {
	return core.Recurrence{Freq: core.Monthly, Day: day, EffectiveStart: from}
}

func stripIDs(events []core.CashflowEvent) []core.CashflowEvent {
	out := append([]core.CashflowEvent(nil), events...)
	for i := range out {
		out[i].ID = 0
	}
	return out
}

func derivedOnly(events []core.CashflowEvent) []core.CashflowEvent {
	var out []core.CashflowEvent
	for _, ev := range events {
		if ev.Source.IsDerived() {
			out = append(out, ev)
		}
	}
	return out
}

func TestRebuild_ExpandsPlansOverHorizon(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main", BalanceYen: 100000})
	store.AddPlan(core.Plan{
		Type: core.PlanExpense, Title: "rent", AmountYen: 85000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: monthlyOn(15, core.NewDate(2024, 1, 1)),
	})

	m := services.NewMaterializer(store)
	n, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 2)
	if err != nil {
		t.Fatalf("Rebuild() unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("Rebuild() created %d events, want 3", n)
	}

	want := []string{"2025-01-15", "2025-02-15", "2025-03-15"}
	events := derivedOnly(store.Events())
	if len(events) != 3 {
		t.Fatalf("ledger holds %d derived events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Date.String() != want[i] {
			t.Errorf("event %d date = %s, want %s", i, ev.Date, want[i])
		}
		if ev.AmountYen != -85000 {
			t.Errorf("event %d amount = %d, want -85000", i, ev.AmountYen)
		}
		if ev.AccountID != accID || ev.Source != core.SourcePlan {
			t.Errorf("event %d account/source = %d/%s", i, ev.AccountID, ev.Source)
		}
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main"})
	store.AddPlan(core.Plan{
		Type: core.PlanIncome, Title: "salary", AmountYen: 300000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: monthlyOn(25, core.NewDate(2024, 4, 1)),
	})
	store.AddSubscription(core.Subscription{
		Name: "streaming", AmountYen: 1200,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: monthlyOn(1, core.NewDate(2024, 1, 1)),
	})

	m := services.NewMaterializer(store)
	asOf := core.NewDate(2025, 2, 1)
	if _, err := m.Rebuild(context.Background(), asOf, 3); err != nil {
		t.Fatalf("first Rebuild(): %v", err)
	}
	first := stripIDs(store.Events())

	if _, err := m.Rebuild(context.Background(), asOf, 3); err != nil {
		t.Fatalf("second Rebuild(): %v", err)
	}
	second := stripIDs(store.Events())

	if len(first) != len(second) {
		t.Fatalf("event count changed across rebuilds: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("event %d differs across rebuilds:\n  %+v\n  %+v", i, first[i], second[i])
		}
	}
}

func TestRebuild_PreservesAuthoritativeEvents(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main"})
	store.AddOneoffEvent(core.CashflowEvent{
		Date: core.NewDate(2025, 1, 20), AmountYen: -42000,
		AccountID: accID, Description: "new tires",
	})
	store.AddPlan(core.Plan{
		Type: core.PlanExpense, Title: "rent", AmountYen: 85000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: monthlyOn(15, core.NewDate(2024, 1, 1)),
	})

	m := services.NewMaterializer(store)
	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 1); err != nil {
		t.Fatalf("Rebuild(): %v", err)
	}

	oneoffs := 0
	for _, ev := range store.Events() {
		if ev.Source == core.SourceOneoff {
			oneoffs++
			if ev.AmountYen != -42000 {
				t.Errorf("one-off amount = %d, want -42000", ev.AmountYen)
			}
		}
	}
	if oneoffs != 1 {
		t.Errorf("ledger holds %d one-off events after rebuild, want 1", oneoffs)
	}
}

func TestRebuild_ConfirmationOverridesEstimate(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main"})
	vrpID := store.AddVariablePayment(core.VariableRecurringPayment{
		Name: "electricity", EstimatedAmountYen: 8000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: monthlyOn(10, core.NewDate(2024, 1, 1)),
	})
	store.AddConfirmation(core.VariableConfirmation{
		VariablePaymentID:  vrpID,
		OccurrenceDate:     core.NewDate(2025, 1, 10),
		ConfirmedAmountYen: 8240,
	})

	m := services.NewMaterializer(store)
	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 2); err != nil {
		t.Fatalf("Rebuild(): %v", err)
	}

	byDate := map[string]int64{}
	for _, ev := range store.Events() {
		if ev.Source == core.SourceVRP {
			byDate[ev.Date.String()] = ev.AmountYen
		}
	}
	if byDate["2025-01-10"] != -8240 {
		t.Errorf("confirmed occurrence = %d, want -8240", byDate["2025-01-10"])
	}
	if byDate["2025-02-10"] != -8000 || byDate["2025-03-10"] != -8000 {
		t.Errorf("estimated occurrences = %d, %d, want -8000 each",
			byDate["2025-02-10"], byDate["2025-03-10"])
	}
}

func TestRebuild_CardSettlement(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main", BalanceYen: 200000})
	cardID := store.AddCard(core.Card{
		Name: "visa", ClosingDay: 15, PaymentDay: 27, PaymentAccountID: accID,
	})
	store.AddSubscription(core.Subscription{
		Name: "gym", AmountYen: 3000,
		PaymentMethod: core.PayCard, CardID: cardID,
		Recurrence: monthlyOn(10, core.NewDate(2024, 1, 1)),
	})

	m := services.NewMaterializer(store)
	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 3); err != nil {
		t.Fatalf("Rebuild(): %v", err)
	}

	// The Jan 10 charge closes on Jan 15 and is withdrawn on Feb 27.
	var withdraw *core.CardStatement
	for _, st := range store.Statements() {
		st := st
		if st.WithdrawDate.String() == "2025-02-27" {
			withdraw = &st
		}
	}
	if withdraw == nil {
		t.Fatal("no statement withdrawing on 2025-02-27")
	}
	if withdraw.AmountYen != -3000 {
		t.Errorf("statement amount = %d, want -3000", withdraw.AmountYen)
	}
	if withdraw.PeriodStart.String() != "2024-12-16" || withdraw.PeriodEnd.String() != "2025-01-15" {
		t.Errorf("statement period = %s..%s, want 2024-12-16..2025-01-15",
			withdraw.PeriodStart, withdraw.PeriodEnd)
	}

	var accountDebit, cardPayoff int
	for _, ev := range store.Events() {
		if ev.Source != core.SourceCardTransfer || ev.Date.String() != "2025-02-27" {
			continue
		}
		switch {
		case ev.AccountID == accID && ev.AmountYen == -3000:
			accountDebit++
		case ev.CardID == cardID && ev.AmountYen == 3000:
			cardPayoff++
		}
	}
	if accountDebit != 1 || cardPayoff != 1 {
		t.Errorf("transfer pair = (%d debit, %d payoff), want (1, 1)", accountDebit, cardPayoff)
	}
}

func TestRebuild_InstallmentChargesFeedStatements(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main"})
	cardID := store.AddCard(core.Card{
		Name: "visa", ClosingDay: 31, PaymentDay: 10, PaymentAccountID: accID,
	})
	store.AddObligation(core.CardObligation{
		CardID: cardID, Kind: core.Installment, Title: "laptop",
		PrincipalYen: 10000, TotalMonths: 3,
		StartYear: 2025, StartMonth: 2,
	})

	m := services.NewMaterializer(store)
	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 5); err != nil {
		t.Fatalf("Rebuild(): %v", err)
	}

	var got []int64
	var sum int64
	for _, ev := range store.Events() {
		if ev.Source == core.SourceInstallment {
			got = append(got, ev.AmountYen)
			sum += ev.AmountYen
		}
	}
	want := []int64{-3333, -3333, -3334}
	if len(got) != len(want) {
		t.Fatalf("installment events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cycle %d = %d, want %d", i, got[i], want[i])
		}
	}
	if sum != -10000 {
		t.Errorf("installment total = %d, want -10000", sum)
	}
}

// slowStore parks the rebuild inside a definition read so a second rebuild
// can be issued while the first one still holds the ledger.
type slowStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) Plans(ctx context.Context) ([]core.Plan, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.Store.Plans(ctx)
}

func TestRebuild_ConcurrentRequestIsRejected(t *testing.T) {
	store := &slowStore{
		Store:   memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := services.NewMaterializer(store)

	done := make(chan error, 1)
	go func() {
		_, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 1)
		done <- err
	}()
	<-store.entered

	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 1); !errors.Is(err, services.ErrRebuildInProgress) {
		t.Errorf("concurrent Rebuild() error = %v, want ErrRebuildInProgress", err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Errorf("first Rebuild() failed: %v", err)
	}
}

type failingReplacer struct {
	*memory.Store
}

func (f *failingReplacer) ReplaceDerivedEvents(context.Context, []core.CashflowEvent, []core.CardStatement) error {
	return errors.New("disk full")
}

func TestRebuild_FailureKeepsPriorLedger(t *testing.T) {
	store := memory.New()
	accID := store.AddAccount(core.Account{Name: "main"})
	store.AddPlan(core.Plan{
		Type: core.PlanExpense, Title: "rent", AmountYen: 85000,
		PaymentMethod: core.PayBank, AccountID: accID,
		Recurrence: monthlyOn(15, core.NewDate(2024, 1, 1)),
	})

	if _, err := services.NewMaterializer(store).Rebuild(context.Background(), core.NewDate(2025, 1, 1), 1); err != nil {
		t.Fatalf("seed Rebuild(): %v", err)
	}
	before := store.Events()

	m := services.NewMaterializer(&failingReplacer{store})
	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 1); err == nil {
		t.Fatal("Rebuild() over a failing store succeeded, want error")
	}

	after := store.Events()
	if len(after) != len(before) {
		t.Fatalf("ledger changed after failed rebuild: %d -> %d events", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("event %d changed after failed rebuild", i)
		}
	}
}

func TestRebuild_RejectsBadHorizon(t *testing.T) {
	m := services.NewMaterializer(memory.New())
	if _, err := m.Rebuild(context.Background(), core.NewDate(2025, 1, 1), 0); err == nil {
		t.Error("Rebuild() with zero horizon succeeded, want error")
	}
}
