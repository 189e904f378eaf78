// Package memory provides an in-memory implementation of the service ports.
// It backs the engine in tests and in ad-hoc runs without a database file.
package memory

import (
	"context"
	"sync"

	"kakeibo/internal/core"
)

// Store keeps the whole ledger in process memory. Derived-event replacement
// is atomic under the store mutex, matching the transactional contract of
// the SQLite repository.
type Store struct {
	mu sync.Mutex

	accounts      []core.Account
	cards         []core.Card
	plans         []core.Plan
	subscriptions []core.Subscription
	vrps          []core.VariableRecurringPayment
	confirmations []core.VariableConfirmation
	obligations   []core.CardObligation
	transactions  []core.CardTransaction
	events        []core.CashflowEvent
	statements    []core.CardStatement

	nextID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// AddAccount registers an account and returns its id.
func (s *Store) AddAccount(a core.Account) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.accounts = append(s.accounts, a)
	return a.ID
}

// AddCard registers a card and returns its id.
func (s *Store) AddCard(c core.Card) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.cards = append(s.cards, c)
	return c.ID
}

// AddPlan registers a fixed plan and returns its id.
func (s *Store) AddPlan(p core.Plan) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.plans = append(s.plans, p)
	return p.ID
}

// AddSubscription registers a subscription and returns its id.
func (s *Store) AddSubscription(sub core.Subscription) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.id()
	s.subscriptions = append(s.subscriptions, sub)
	return sub.ID
}

// AddVariablePayment registers a variable recurring payment.
func (s *Store) AddVariablePayment(v core.VariableRecurringPayment) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.id()
	s.vrps = append(s.vrps, v)
	return v.ID
}

// AddConfirmation registers a confirmed amount for one VRP occurrence.
func (s *Store) AddConfirmation(c core.VariableConfirmation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.confirmations = append(s.confirmations, c)
	return c.ID
}

// AddObligation registers a card obligation.
func (s *Store) AddObligation(o core.CardObligation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.id()
	s.obligations = append(s.obligations, o)
	return o.ID
}

// AddCardTransaction stores an imported card usage row and mirrors it into
// the event ledger as an authoritative import event.
func (s *Store) AddCardTransaction(tx core.CardTransaction) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.id()
	s.transactions = append(s.transactions, tx)
	s.events = append(s.events, core.CashflowEvent{
		ID:          s.id(),
		Date:        tx.Date,
		AmountYen:   tx.AmountYen,
		CardID:      tx.CardID,
		Source:      core.SourceImport,
		SourceID:    tx.ID,
		Description: tx.Merchant,
		Merchant:    tx.Merchant,
	})
	return tx.ID
}

// SaveCardTransactions stores a batch of imported rows, mirroring each into
// the event ledger the way the SQLite repository does.
func (s *Store) SaveCardTransactions(_ context.Context, txs []core.CardTransaction) error {
	for _, tx := range txs {
		s.AddCardTransaction(tx)
	}
	return nil
}

// AddOneoffEvent stores an authoritative one-off event.
func (s *Store) AddOneoffEvent(ev core.CashflowEvent) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.id()
	ev.Source = core.SourceOneoff
	s.events = append(s.events, ev)
	return ev.ID
}

func (s *Store) Accounts(context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) Cards(context.Context) ([]core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Card(nil), s.cards...), nil
}

func (s *Store) Plans(context.Context) ([]core.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Plan(nil), s.plans...), nil
}

func (s *Store) Subscriptions(context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Subscription(nil), s.subscriptions...), nil
}

func (s *Store) VariablePayments(context.Context) ([]core.VariableRecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.VariableRecurringPayment(nil), s.vrps...), nil
}

func (s *Store) VariableConfirmations(context.Context) ([]core.VariableConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.VariableConfirmation(nil), s.confirmations...), nil
}

func (s *Store) CardObligations(context.Context) ([]core.CardObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CardObligation(nil), s.obligations...), nil
}

func (s *Store) CardTransactionsBetween(_ context.Context, start, end core.Date) ([]core.CardTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CardTransaction
	for _, tx := range s.transactions {
		if !tx.Date.Before(start) && !tx.Date.After(end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) EventsBetween(_ context.Context, start, end core.Date) ([]core.CashflowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CashflowEvent
	for _, ev := range s.events {
		if !ev.Date.Before(start) && !ev.Date.After(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) CardEventsBetween(_ context.Context, cardID int64, start, end core.Date) ([]core.CashflowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CashflowEvent
	for _, ev := range s.events {
		if ev.CardID == cardID && !ev.Date.Before(start) && !ev.Date.After(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ReplaceDerivedEvents drops every derived-source event, inserts the fresh
// set and swaps the statements, all under one lock so no reader observes a
// half-replaced ledger.
func (s *Store) ReplaceDerivedEvents(_ context.Context, events []core.CashflowEvent, statements []core.CardStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0:0]
	for _, ev := range s.events {
		if !ev.Source.IsDerived() {
			kept = append(kept, ev)
		}
	}
	for _, ev := range events {
		ev.ID = s.id()
		kept = append(kept, ev)
	}
	s.events = kept

	s.statements = append([]core.CardStatement(nil), statements...)
	for i := range s.statements {
		s.statements[i].ID = s.id()
	}
	return nil
}

// Statements returns the statements written by the last rebuild.
func (s *Store) Statements() []core.CardStatement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CardStatement(nil), s.statements...)
}

// Events returns a snapshot of the whole event ledger.
func (s *Store) Events() []core.CashflowEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CashflowEvent(nil), s.events...)
}
