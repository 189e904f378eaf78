package services

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for the backing store. The SQLite repository implements all of them;
// the memory store mirrors it for tests.
type (
	// DefinitionReader loads the user's declared configuration as of rebuild
	// time. The engine never writes definitions; CRUD happens elsewhere.
	DefinitionReader interface {
		Accounts(ctx context.Context) ([]core.Account, error)
		Cards(ctx context.Context) ([]core.Card, error)
		Plans(ctx context.Context) ([]core.Plan, error)
		Subscriptions(ctx context.Context) ([]core.Subscription, error)
		VariablePayments(ctx context.Context) ([]core.VariableRecurringPayment, error)
		VariableConfirmations(ctx context.Context) ([]core.VariableConfirmation, error)
		CardObligations(ctx context.Context) ([]core.CardObligation, error)
	}

	// EventReader reads the materialized ledger. Results are ordered by
	// (date, id) so downstream computations are deterministic.
	EventReader interface {
		EventsBetween(ctx context.Context, start, end core.Date) ([]core.CashflowEvent, error)
		CardEventsBetween(ctx context.Context, cardID int64, start, end core.Date) ([]core.CashflowEvent, error)
	}

	// EventReplacer swaps the full derived-event set in one transaction.
	// Authoritative rows (oneoff, import) are untouched. Either the whole
	// replacement lands or the prior ledger stays intact.
	EventReplacer interface {
		ReplaceDerivedEvents(ctx context.Context, events []core.CashflowEvent, statements []core.CardStatement) error
	}

	// CardTransactionReader reads imported card usage rows, the authoritative
	// input for duplicate detection and reports.
	CardTransactionReader interface {
		CardTransactionsBetween(ctx context.Context, start, end core.Date) ([]core.CardTransaction, error)
	}

	// LedgerStore is everything the materializer needs.
	LedgerStore interface {
		DefinitionReader
		EventReader
		EventReplacer
	}

	// ReadStore is the read side used by the aggregator, the projector and
	// the report builder. Safe to use concurrently between rebuilds.
	ReadStore interface {
		DefinitionReader
		EventReader
		CardTransactionReader
	}
)
