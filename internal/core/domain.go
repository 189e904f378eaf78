package core

import (
	"errors"
	"fmt"
	"strings"
)

// Frequency selects the recurrence grammar of a definition. Each frequency
// uses only its own interval fields; the expander dispatches on this tag.
type Frequency string

const (
	Monthly         Frequency = "monthly"
	Yearly          Frequency = "yearly"
	MonthlyInterval Frequency = "monthly_interval"
	WeeklyInterval  Frequency = "weekly_interval"
)

// PaymentMethod says whether a definition debits a bank account directly or
// rides on a card's billing cycle.
type PaymentMethod string

const (
	PayBank PaymentMethod = "bank"
	PayCard PaymentMethod = "card"
)

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidDay           = errors.New("billing day must be between 1 and 31")
	ErrInvalidMonth         = errors.New("billing month must be between 1 and 12")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidFrequency     = errors.New("unknown frequency")
	ErrInvalidInterval      = errors.New("interval must be at least 1")
	ErrInvertedRange        = errors.New("effective end before effective start")
	ErrAccountCardExclusive = errors.New("exactly one of account or card must be set")
	ErrEmptyTitle           = errors.New("empty title")
)

// Recurrence is the normalized recurrence rule every definition variant
// lowers to before expansion. EffectiveStart doubles as the anchor for the
// interval frequencies; a zero EffectiveEnd means open-ended.
type Recurrence struct {
	Freq           Frequency
	Day            int // day-of-month anchor (monthly family, yearly)
	Month          int // month anchor (yearly only)
	IntervalMonths int // monthly_interval only
	IntervalWeeks  int // weekly_interval only
	EffectiveStart Date
	EffectiveEnd   Date
}

// Validate rejects rules the expander must never see: unknown frequencies,
// zero or negative intervals, inverted effective ranges. The expander checks
// again defensively so bad data cannot make it loop.
func (r Recurrence) Validate() error {
	switch r.Freq {
	case Monthly, MonthlyInterval:
		if r.Day < 1 || r.Day > 31 {
			return ErrInvalidDay
		}
	case Yearly:
		if r.Day < 1 || r.Day > 31 {
			return ErrInvalidDay
		}
		if r.Month < 1 || r.Month > 12 {
			return ErrInvalidMonth
		}
	case WeeklyInterval:
		// The anchor is the effective start itself.
	default:
		return ErrInvalidFrequency
	}

	if r.Freq == MonthlyInterval && r.IntervalMonths < 1 {
		return ErrInvalidInterval
	}
	if r.Freq == WeeklyInterval && r.IntervalWeeks < 1 {
		return ErrInvalidInterval
	}

	if r.EffectiveStart.IsZero() {
		return errors.New("effective start is required")
	}
	if !r.EffectiveEnd.IsZero() && r.EffectiveEnd.Before(r.EffectiveStart) {
		return ErrInvertedRange
	}
	return nil
}

// Account is a money holder: a bank account, a cash wallet, an e-money
// balance. BalanceYen is the balance as of the effective start date.
type Account struct {
	ID             int64
	Name           string
	Kind           string // bank / cash / emoney / ...
	BalanceYen     int64
	EffectiveStart Date
	EffectiveEnd   Date
}

// ActiveOn reports whether the account exists on the given day.
func (a Account) ActiveOn(d Date) bool {
	if !a.EffectiveStart.IsZero() && d.Before(a.EffectiveStart) {
		return false
	}
	if !a.EffectiveEnd.IsZero() && d.After(a.EffectiveEnd) {
		return false
	}
	return true
}

// Card is a credit card. Charges up to and including ClosingDay of a month
// form one statement; the statement is withdrawn from the payment account on
// PaymentDay of the following month (month-end clamped).
type Card struct {
	ID               int64
	Name             string
	ClosingDay       int // 1-31
	PaymentDay       int // 1-31
	PaymentAccountID int64
	EffectiveStart   Date
	EffectiveEnd     Date
}

// ActiveOn reports whether the card is inside its validity window on d.
func (c Card) ActiveOn(d Date) bool {
	if !c.EffectiveStart.IsZero() && d.Before(c.EffectiveStart) {
		return false
	}
	if !c.EffectiveEnd.IsZero() && d.After(c.EffectiveEnd) {
		return false
	}
	return true
}

// Validate checks the billing-cycle anchors.
func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyTitle
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 || c.PaymentDay < 1 || c.PaymentDay > 31 {
		return ErrInvalidDay
	}
	if c.PaymentAccountID == 0 {
		return errors.New("payment account is required")
	}
	if !c.EffectiveEnd.IsZero() && !c.EffectiveStart.IsZero() && c.EffectiveEnd.Before(c.EffectiveStart) {
		return ErrInvertedRange
	}
	return nil
}

// PlanType distinguishes fixed income from fixed expense plans.
type PlanType string

const (
	PlanIncome  PlanType = "income"
	PlanExpense PlanType = "expense"
)

// Plan is a fixed recurring amount: salary, rent, loan payments. AmountYen
// is stored as a magnitude; SignedAmount applies the sign from the type.
type Plan struct {
	ID            int64
	Type          PlanType
	Title         string
	AmountYen     int64
	PaymentMethod PaymentMethod
	AccountID     int64
	CardID        int64
	Recurrence    Recurrence
}

// SignedAmount returns the amount with income positive, expense negative.
func (p Plan) SignedAmount() int64 {
	if p.Type == PlanIncome {
		return abs64(p.AmountYen)
	}
	return -abs64(p.AmountYen)
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.Type != PlanIncome && p.Type != PlanExpense {
		return errors.New("plan type must be income or expense")
	}
	if p.AmountYen <= 0 {
		return ErrInvalidAmount
	}
	if err := validateTarget(p.PaymentMethod, p.AccountID, p.CardID); err != nil {
		return err
	}
	// Weekly cadence belongs to subscriptions and variable payments; fixed
	// plans recur on month boundaries only.
	if p.Recurrence.Freq == WeeklyInterval {
		return fmt.Errorf("%w: %q is not valid for a fixed plan", ErrInvalidFrequency, p.Recurrence.Freq)
	}
	return p.Recurrence.Validate()
}

// Subscription is a recurring service charge, always an expense.
type Subscription struct {
	ID            int64
	Name          string
	AmountYen     int64 // magnitude
	PaymentMethod PaymentMethod
	AccountID     int64
	CardID        int64
	Recurrence    Recurrence
}

// SignedAmount is always negative for subscriptions.
func (s Subscription) SignedAmount() int64 { return -abs64(s.AmountYen) }

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyTitle
	}
	if s.AmountYen <= 0 {
		return ErrInvalidAmount
	}
	if err := validateTarget(s.PaymentMethod, s.AccountID, s.CardID); err != nil {
		return err
	}
	return s.Recurrence.Validate()
}

// VariableRecurringPayment is a recurring expense whose exact amount differs
// each cycle (utilities, usage-based services). The estimate is used until a
// confirmation pins the real amount for an occurrence date.
type VariableRecurringPayment struct {
	ID                 int64
	Name               string
	EstimatedAmountYen int64 // magnitude
	PaymentMethod      PaymentMethod
	AccountID          int64
	CardID             int64
	Recurrence         Recurrence
}

// SignedAmount is always negative for variable payments.
func (v VariableRecurringPayment) SignedAmount() int64 { return -abs64(v.EstimatedAmountYen) }

func (v VariableRecurringPayment) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return ErrEmptyTitle
	}
	if v.EstimatedAmountYen <= 0 {
		return ErrInvalidAmount
	}
	if err := validateTarget(v.PaymentMethod, v.AccountID, v.CardID); err != nil {
		return err
	}
	return v.Recurrence.Validate()
}

// VariableConfirmation overrides the estimated amount of one occurrence of a
// variable recurring payment.
type VariableConfirmation struct {
	ID                 int64
	VariablePaymentID  int64
	OccurrenceDate     Date
	ConfirmedAmountYen int64 // magnitude
}

// ObligationKind distinguishes the two multi-month card obligations.
type ObligationKind string

const (
	Revolving   ObligationKind = "revolving"
	Installment ObligationKind = "installment"
)

// CardObligation is a multi-month card debt. An installment repays a fixed
// principal over TotalMonths cycles; a revolving obligation charges a flat
// MonthlyPaymentYen every cycle until it is explicitly closed. The remaining
// balance is always derived from the start cycle, never stored, so rebuilds
// stay idempotent.
type CardObligation struct {
	ID                int64
	CardID            int64
	Kind              ObligationKind
	Title             string
	PrincipalYen      int64 // installment: total to repay
	TotalMonths       int   // installment only
	MonthlyPaymentYen int64 // revolving only
	StartYear         int   // first billing cycle (withdraw month)
	StartMonth        int
	Closed            bool // revolving: stops all further cycles
}

func (o CardObligation) Validate() error {
	if o.CardID == 0 {
		return errors.New("card is required")
	}
	if o.StartMonth < 1 || o.StartMonth > 12 {
		return ErrInvalidMonth
	}
	switch o.Kind {
	case Installment:
		if o.PrincipalYen <= 0 {
			return ErrInvalidAmount
		}
		if o.TotalMonths < 1 {
			return ErrInvalidInterval
		}
	case Revolving:
		if o.MonthlyPaymentYen <= 0 {
			return ErrInvalidAmount
		}
	default:
		return errors.New("obligation kind must be revolving or installment")
	}
	return nil
}

func validateTarget(method PaymentMethod, accountID, cardID int64) error {
	switch method {
	case PayBank:
		if accountID == 0 || cardID != 0 {
			return ErrAccountCardExclusive
		}
	case PayCard:
		if cardID == 0 || accountID != 0 {
			return ErrAccountCardExclusive
		}
	default:
		return errors.New("payment method must be bank or card")
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
