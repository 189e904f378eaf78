// Package storage holds the SQLite repository behind the service ports.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kakeibo/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// dateToDB stores the zero date as NULL.
func dateToDB(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func dateFromDB(s sql.NullString) (core.Date, error) {
	if !s.Valid || s.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s.String)
}

func recurrenceColumns() string {
	return "freq, day, month, interval_months, interval_weeks, effective_start, effective_end"
}

func recurrenceValues(rec core.Recurrence) []any {
	return []any{
		string(rec.Freq), rec.Day, rec.Month, rec.IntervalMonths, rec.IntervalWeeks,
		rec.EffectiveStart.String(), dateToDB(rec.EffectiveEnd),
	}
}

func scanRecurrence(freq string, day, month, im, iw int, start string, end sql.NullString) (core.Recurrence, error) {
	effStart, err := core.ParseDate(start)
	if err != nil {
		return core.Recurrence{}, fmt.Errorf("effective start: %w", err)
	}
	effEnd, err := dateFromDB(end)
	if err != nil {
		return core.Recurrence{}, fmt.Errorf("effective end: %w", err)
	}
	return core.Recurrence{
		Freq: core.Frequency(freq), Day: day, Month: month,
		IntervalMonths: im, IntervalWeeks: iw,
		EffectiveStart: effStart, EffectiveEnd: effEnd,
	}, nil
}

// SaveAccount inserts an account and returns its id.
func (r *SQLiteRepository) SaveAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, balance_yen, effective_start, effective_end) VALUES (?, ?, ?, ?)`,
		a.Name, a.BalanceYen, dateToDB(a.EffectiveStart), dateToDB(a.EffectiveEnd))
	if err != nil {
		return 0, fmt.Errorf("save account: %w", err)
	}
	return res.LastInsertId()
}

// SaveCard inserts a card and returns its id.
func (r *SQLiteRepository) SaveCard(ctx context.Context, c core.Card) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("save card: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (name, closing_day, payment_day, payment_account_id, effective_start, effective_end)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.ClosingDay, c.PaymentDay, c.PaymentAccountID,
		dateToDB(c.EffectiveStart), dateToDB(c.EffectiveEnd))
	if err != nil {
		return 0, fmt.Errorf("save card: %w", err)
	}
	return res.LastInsertId()
}

// SavePlan inserts a fixed plan and returns its id.
func (r *SQLiteRepository) SavePlan(ctx context.Context, p core.Plan) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("save plan: %w", err)
	}
	args := []any{string(p.Type), p.Title, p.AmountYen, string(p.PaymentMethod), nullID(p.AccountID), nullID(p.CardID)}
	args = append(args, recurrenceValues(p.Recurrence)...)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO plans (type, title, amount_yen, payment_method, account_id, card_id, `+recurrenceColumns()+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return 0, fmt.Errorf("save plan: %w", err)
	}
	return res.LastInsertId()
}

// SaveSubscription inserts a subscription and returns its id.
func (r *SQLiteRepository) SaveSubscription(ctx context.Context, s core.Subscription) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, fmt.Errorf("save subscription: %w", err)
	}
	args := []any{s.Name, s.AmountYen, string(s.PaymentMethod), nullID(s.AccountID), nullID(s.CardID)}
	args = append(args, recurrenceValues(s.Recurrence)...)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (name, amount_yen, payment_method, account_id, card_id, `+recurrenceColumns()+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return 0, fmt.Errorf("save subscription: %w", err)
	}
	return res.LastInsertId()
}

// SaveVariablePayment inserts a variable recurring payment and returns its id.
func (r *SQLiteRepository) SaveVariablePayment(ctx context.Context, v core.VariableRecurringPayment) (int64, error) {
	if err := v.Validate(); err != nil {
		return 0, fmt.Errorf("save variable payment: %w", err)
	}
	args := []any{v.Name, v.EstimatedAmountYen, string(v.PaymentMethod), nullID(v.AccountID), nullID(v.CardID)}
	args = append(args, recurrenceValues(v.Recurrence)...)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO variable_payments (name, estimated_amount_yen, payment_method, account_id, card_id, `+recurrenceColumns()+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return 0, fmt.Errorf("save variable payment: %w", err)
	}
	return res.LastInsertId()
}

// SaveConfirmation upserts the confirmed amount for one occurrence.
func (r *SQLiteRepository) SaveConfirmation(ctx context.Context, c core.VariableConfirmation) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO variable_confirmations (variable_payment_id, occurrence_date, confirmed_amount_yen)
		 VALUES (?, ?, ?)
		 ON CONFLICT (variable_payment_id, occurrence_date)
		 DO UPDATE SET confirmed_amount_yen = excluded.confirmed_amount_yen`,
		c.VariablePaymentID, c.OccurrenceDate.String(), c.ConfirmedAmountYen)
	if err != nil {
		return 0, fmt.Errorf("save confirmation: %w", err)
	}
	return res.LastInsertId()
}

// SaveObligation inserts a card obligation and returns its id.
func (r *SQLiteRepository) SaveObligation(ctx context.Context, o core.CardObligation) (int64, error) {
	if err := o.Validate(); err != nil {
		return 0, fmt.Errorf("save obligation: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO card_obligations (card_id, kind, title, principal_yen, total_months, monthly_payment_yen, start_year, start_month, closed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.CardID, string(o.Kind), o.Title, o.PrincipalYen, o.TotalMonths,
		o.MonthlyPaymentYen, o.StartYear, o.StartMonth, boolToInt(o.Closed))
	if err != nil {
		return 0, fmt.Errorf("save obligation: %w", err)
	}
	return res.LastInsertId()
}

// CloseObligation marks a revolving obligation as paid off. Future rebuilds
// stop charging it.
func (r *SQLiteRepository) CloseObligation(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE card_obligations SET closed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("close obligation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close obligation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("close obligation %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// SaveOneoffEvent inserts an authoritative one-off row.
func (r *SQLiteRepository) SaveOneoffEvent(ctx context.Context, ev core.CashflowEvent) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (date, amount_yen, account_id, card_id, source, source_id, description, merchant)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Date.String(), ev.AmountYen, nullID(ev.AccountID), nullID(ev.CardID),
		string(core.SourceOneoff), ev.SourceID, ev.Description, ev.Merchant)
	if err != nil {
		return 0, fmt.Errorf("save one-off event: %w", err)
	}
	return res.LastInsertId()
}

// SaveCardTransactions inserts imported card usage rows and mirrors each one
// into the event ledger, in a single transaction.
func (r *SQLiteRepository) SaveCardTransactions(ctx context.Context, txs []core.CardTransaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save card transactions: begin: %w", err)
	}
	defer dbTx.Rollback()

	for _, t := range txs {
		res, err := dbTx.ExecContext(ctx,
			`INSERT INTO card_transactions (card_id, date, amount_yen, merchant, note, fingerprint)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.CardID, t.Date.String(), t.AmountYen, t.Merchant, t.Note, t.Fingerprint)
		if err != nil {
			return fmt.Errorf("save card transaction: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("save card transaction: %w", err)
		}
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO events (date, amount_yen, card_id, source, source_id, description, merchant)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.Date.String(), t.AmountYen, t.CardID, string(core.SourceImport), id, t.Merchant, t.Merchant); err != nil {
			return fmt.Errorf("mirror card transaction %d: %w", id, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("save card transactions: commit: %w", err)
	}

	slog.InfoContext(ctx, "Card transactions imported", "count", len(txs))
	return nil
}

func (r *SQLiteRepository) Accounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, balance_yen, effective_start, effective_end FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var start, end sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.BalanceYen, &start, &end); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.EffectiveStart, err = dateFromDB(start); err != nil {
			return nil, fmt.Errorf("account %d: %w", a.ID, err)
		}
		if a.EffectiveEnd, err = dateFromDB(end); err != nil {
			return nil, fmt.Errorf("account %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Cards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, closing_day, payment_day, payment_account_id, effective_start, effective_end
		 FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.Card
	for rows.Next() {
		var c core.Card
		var start, end sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.ClosingDay, &c.PaymentDay, &c.PaymentAccountID, &start, &end); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if c.EffectiveStart, err = dateFromDB(start); err != nil {
			return nil, fmt.Errorf("card %d: %w", c.ID, err)
		}
		if c.EffectiveEnd, err = dateFromDB(end); err != nil {
			return nil, fmt.Errorf("card %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Plans(ctx context.Context) ([]core.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, title, amount_yen, payment_method, account_id, card_id, `+recurrenceColumns()+`
		 FROM plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []core.Plan
	for rows.Next() {
		var p core.Plan
		var planType, method, freq, start string
		var accID, cardID sql.NullInt64
		var end sql.NullString
		var day, month, im, iw int
		if err := rows.Scan(&p.ID, &planType, &p.Title, &p.AmountYen, &method,
			&accID, &cardID, &freq, &day, &month, &im, &iw, &start, &end); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		p.Type = core.PlanType(planType)
		p.PaymentMethod = core.PaymentMethod(method)
		p.AccountID, p.CardID = accID.Int64, cardID.Int64
		if p.Recurrence, err = scanRecurrence(freq, day, month, im, iw, start, end); err != nil {
			return nil, fmt.Errorf("plan %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Subscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount_yen, payment_method, account_id, card_id, `+recurrenceColumns()+`
		 FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		var s core.Subscription
		var method, freq, start string
		var accID, cardID sql.NullInt64
		var end sql.NullString
		var day, month, im, iw int
		if err := rows.Scan(&s.ID, &s.Name, &s.AmountYen, &method,
			&accID, &cardID, &freq, &day, &month, &im, &iw, &start, &end); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		s.PaymentMethod = core.PaymentMethod(method)
		s.AccountID, s.CardID = accID.Int64, cardID.Int64
		if s.Recurrence, err = scanRecurrence(freq, day, month, im, iw, start, end); err != nil {
			return nil, fmt.Errorf("subscription %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) VariablePayments(ctx context.Context) ([]core.VariableRecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, estimated_amount_yen, payment_method, account_id, card_id, `+recurrenceColumns()+`
		 FROM variable_payments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list variable payments: %w", err)
	}
	defer rows.Close()

	var out []core.VariableRecurringPayment
	for rows.Next() {
		var v core.VariableRecurringPayment
		var method, freq, start string
		var accID, cardID sql.NullInt64
		var end sql.NullString
		var day, month, im, iw int
		if err := rows.Scan(&v.ID, &v.Name, &v.EstimatedAmountYen, &method,
			&accID, &cardID, &freq, &day, &month, &im, &iw, &start, &end); err != nil {
			return nil, fmt.Errorf("scan variable payment: %w", err)
		}
		v.PaymentMethod = core.PaymentMethod(method)
		v.AccountID, v.CardID = accID.Int64, cardID.Int64
		if v.Recurrence, err = scanRecurrence(freq, day, month, im, iw, start, end); err != nil {
			return nil, fmt.Errorf("variable payment %d: %w", v.ID, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) VariableConfirmations(ctx context.Context) ([]core.VariableConfirmation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, variable_payment_id, occurrence_date, confirmed_amount_yen
		 FROM variable_confirmations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list confirmations: %w", err)
	}
	defer rows.Close()

	var out []core.VariableConfirmation
	for rows.Next() {
		var c core.VariableConfirmation
		var date string
		if err := rows.Scan(&c.ID, &c.VariablePaymentID, &date, &c.ConfirmedAmountYen); err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		if c.OccurrenceDate, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("confirmation %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CardObligations(ctx context.Context) ([]core.CardObligation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, kind, title, principal_yen, total_months, monthly_payment_yen, start_year, start_month, closed
		 FROM card_obligations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var out []core.CardObligation
	for rows.Next() {
		var o core.CardObligation
		var kind string
		var closed int
		if err := rows.Scan(&o.ID, &o.CardID, &kind, &o.Title, &o.PrincipalYen,
			&o.TotalMonths, &o.MonthlyPaymentYen, &o.StartYear, &o.StartMonth, &closed); err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		o.Kind = core.ObligationKind(kind)
		o.Closed = closed != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CardTransactionsBetween(ctx context.Context, start, end core.Date) ([]core.CardTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, date, amount_yen, merchant, note, fingerprint
		 FROM card_transactions WHERE date >= ? AND date <= ? ORDER BY date, id`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list card transactions: %w", err)
	}
	defer rows.Close()

	var out []core.CardTransaction
	for rows.Next() {
		var t core.CardTransaction
		var date string
		if err := rows.Scan(&t.ID, &t.CardID, &date, &t.AmountYen, &t.Merchant, &t.Note, &t.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan card transaction: %w", err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("card transaction %d: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const eventColumns = `id, date, amount_yen, account_id, card_id, source, source_id, description, merchant`

func (r *SQLiteRepository) EventsBetween(ctx context.Context, start, end core.Date) ([]core.CashflowEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE date >= ? AND date <= ? ORDER BY date, id`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *SQLiteRepository) CardEventsBetween(ctx context.Context, cardID int64, start, end core.Date) ([]core.CashflowEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE card_id = ? AND date >= ? AND date <= ? ORDER BY date, id`,
		cardID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list card events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]core.CashflowEvent, error) {
	var out []core.CashflowEvent
	for rows.Next() {
		var ev core.CashflowEvent
		var date, source string
		var accID, cardID sql.NullInt64
		if err := rows.Scan(&ev.ID, &date, &ev.AmountYen, &accID, &cardID,
			&source, &ev.SourceID, &ev.Description, &ev.Merchant); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var err error
		if ev.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		ev.AccountID, ev.CardID = accID.Int64, cardID.Int64
		ev.Source = core.EventSource(source)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ReplaceDerivedEvents swaps the whole derived event set and the statement
// table in one transaction. A failing insert rolls everything back and the
// prior ledger stays intact.
func (r *SQLiteRepository) ReplaceDerivedEvents(ctx context.Context, events []core.CashflowEvent, statements []core.CardStatement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace derived events: begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(core.DerivedSources))
	args := make([]any, len(core.DerivedSources))
	for i, s := range core.DerivedSources {
		placeholders[i] = "?"
		args[i] = string(s)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE source IN (`+strings.Join(placeholders, ", ")+`)`, args...); err != nil {
		return fmt.Errorf("replace derived events: delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM card_statements`); err != nil {
		return fmt.Errorf("replace derived events: delete statements: %w", err)
	}

	for _, ev := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (date, amount_yen, account_id, card_id, source, source_id, description, merchant)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.Date.String(), ev.AmountYen, nullID(ev.AccountID), nullID(ev.CardID),
			string(ev.Source), ev.SourceID, ev.Description, ev.Merchant); err != nil {
			return fmt.Errorf("replace derived events: insert event: %w", err)
		}
	}
	for _, st := range statements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO card_statements (card_id, period_start, period_end, withdraw_date, amount_yen)
			 VALUES (?, ?, ?, ?, ?)`,
			st.CardID, st.PeriodStart.String(), st.PeriodEnd.String(),
			st.WithdrawDate.String(), st.AmountYen); err != nil {
			return fmt.Errorf("replace derived events: insert statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace derived events: commit: %w", err)
	}
	return nil
}

// Statements returns the statements written by the last rebuild, newest
// withdraw date last.
func (r *SQLiteRepository) Statements(ctx context.Context) ([]core.CardStatement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, card_id, period_start, period_end, withdraw_date, amount_yen
		 FROM card_statements ORDER BY withdraw_date, card_id`)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var out []core.CardStatement
	for rows.Next() {
		var st core.CardStatement
		var start, end, withdraw string
		if err := rows.Scan(&st.ID, &st.CardID, &start, &end, &withdraw, &st.AmountYen); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		if st.PeriodStart, err = core.ParseDate(start); err != nil {
			return nil, fmt.Errorf("statement %d: %w", st.ID, err)
		}
		if st.PeriodEnd, err = core.ParseDate(end); err != nil {
			return nil, fmt.Errorf("statement %d: %w", st.ID, err)
		}
		if st.WithdrawDate, err = core.ParseDate(withdraw); err != nil {
			return nil, fmt.Errorf("statement %d: %w", st.ID, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
