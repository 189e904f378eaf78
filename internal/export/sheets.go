// Package export pushes monthly reports to a Google Sheet so the household
// dashboard lives where the rest of the family already looks.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kakeibo/internal/report"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsExporter builds an exporter authenticated with a service account
// credential file.
func NewSheetsExporter(ctx context.Context, spreadsheetID, sheetName, credentialFile string) (*SheetsExporter, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsFile(credentialFile),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// Export appends one summary row per report plus one row per card cycle.
// Amounts are plain yen integers; the sheet does its own formatting.
func (e *SheetsExporter) Export(ctx context.Context, r *report.MonthlyReport) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows := [][]any{
		{r.Year, r.Month, "summary", r.IncomeYen, r.ExpenseYen, r.NetYen, ""},
	}
	for _, section := range r.Cards {
		rows = append(rows, []any{
			r.Year, r.Month, "card:" + section.CardName,
			"", section.AmountYen, "",
			section.WithdrawDate.String(),
		})
	}

	rng := fmt.Sprintf("%s!A:G", e.sheetName)
	vr := &gsheet.ValueRange{Values: rows}
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append report %d-%02d to sheet %s: %w", r.Year, r.Month, e.sheetName, err)
	}

	slog.InfoContext(ctx, "Monthly report exported",
		"year", r.Year,
		"month", r.Month,
		"rows", len(rows),
		"sheet", e.sheetName)

	return nil
}
