// Import row validation and duplicate detection. Raw statement text and CSV
// tokenization happen in an external collaborator; this side only receives
// already-split (date, title, amount) rows, checks their completeness and
// flags likely duplicates against the rows already in the ledger.
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"kakeibo/internal/core"
)

var (
	ErrMissingDate  = errors.New("missing date")
	ErrMissingTitle = errors.New("missing title")
)

// ImportRow is one parsed statement row as delivered by the import
// collaborator. All fields are still strings; validation happens here.
type ImportRow struct {
	Line   int
	Date   string
	Title  string
	Amount string
}

// RowError records why a single row was rejected. Errors are collected per
// row and returned together so the caller can fix a subset and resubmit.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParsedRow is a validated row ready to become a card transaction. Amounts
// are normalized so that expenses are negative.
type ParsedRow struct {
	Line        int
	Date        core.Date
	Title       string
	AmountYen   int64
	Fingerprint string
}

// ValidateRows checks every row and splits the batch into valid rows and
// per-row errors. It never fails fast: one bad row does not block the rest.
func ValidateRows(rows []ImportRow) ([]ParsedRow, []RowError) {
	var parsed []ParsedRow
	var rowErrs []RowError

	for _, r := range rows {
		if strings.TrimSpace(r.Date) == "" {
			rowErrs = append(rowErrs, RowError{Line: r.Line, Err: ErrMissingDate})
			continue
		}
		d, err := core.ParseDate(r.Date)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: r.Line, Err: fmt.Errorf("%w: %q", core.ErrInvalidDate, r.Date)})
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			rowErrs = append(rowErrs, RowError{Line: r.Line, Err: ErrMissingTitle})
			continue
		}
		amount, err := core.ParseYen(r.Amount)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: r.Line, Err: fmt.Errorf("%w: %q", core.ErrInvalidAmount, r.Amount)})
			continue
		}
		// Card statements list purchases as positive numbers; the ledger
		// stores outflows as negative.
		if amount > 0 {
			amount = -amount
		}

		parsed = append(parsed, ParsedRow{
			Line:        r.Line,
			Date:        d,
			Title:       title,
			AmountYen:   amount,
			Fingerprint: Fingerprint(d, amount, title),
		})
	}
	return parsed, rowErrs
}

var merchantNoise = regexp.MustCompile(`[^\p{L}\p{N} ]+`)

// NormalizeMerchant flattens a merchant label for matching: lowercase,
// collapsed whitespace, punctuation stripped.
func NormalizeMerchant(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "　", " ")
	s = merchantNoise.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint identifies a transaction by date, amount and normalized
// merchant. Two rows with the same fingerprint are the same purchase.
func Fingerprint(d core.Date, amountYen int64, merchant string) string {
	src := fmt.Sprintf("%s|%d|%s", d, amountYen, NormalizeMerchant(merchant))
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// DuplicateMatch links an incoming row to an existing transaction it likely
// duplicates. Exact means same date, amount and normalized merchant; a
// near match shares amount and merchant with a date at most three days off.
type DuplicateMatch struct {
	Line       int
	ExistingID int64
	Exact      bool
}

// FindDuplicates flags rows that look like transactions already imported.
// The row data itself is not modified; the caller decides whether to skip
// or force-import flagged rows.
func FindDuplicates(rows []ParsedRow, existing []core.CardTransaction) []DuplicateMatch {
	var matches []DuplicateMatch
	for _, row := range rows {
		for _, tx := range existing {
			if tx.Fingerprint == row.Fingerprint {
				matches = append(matches, DuplicateMatch{Line: row.Line, ExistingID: tx.ID, Exact: true})
				break
			}
			if tx.AmountYen == row.AmountYen &&
				NormalizeMerchant(tx.Merchant) == NormalizeMerchant(row.Title) &&
				daysApart(tx.Date, row.Date) <= 3 {
				matches = append(matches, DuplicateMatch{Line: row.Line, ExistingID: tx.ID})
				break
			}
		}
	}
	return matches
}

func daysApart(a, b core.Date) int {
	diff := int(a.Time.Sub(b.Time).Hours() / 24)
	if diff < 0 {
		return -diff
	}
	return diff
}
