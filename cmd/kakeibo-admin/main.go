// kakeibo-admin runs the engine's operations against the database directly,
// without going through the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/export"
	"kakeibo/internal/report"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

type Globals struct {
	DB string `help:"Path to the SQLite database file. Defaults to SQLITE_DB_PATH." short:"d"`
}

func (g *Globals) openRepo() (*storage.SQLiteRepository, *config.Config, error) {
	cfg := config.Load()
	if g.DB != "" {
		cfg.SQLiteDBPath = g.DB
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %q: %w", cfg.SQLiteDBPath, err)
	}
	return repo, cfg, nil
}

type RebuildCmd struct {
	AsOf    string `help:"Materialize from this date (YYYY-MM-DD)." default:""`
	Horizon int    `help:"Horizon length in months." default:"0"`
}

func (cmd *RebuildCmd) Run(globals *Globals) error {
	repo, cfg, err := globals.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	asOf := core.DateOf(time.Now())
	if cmd.AsOf != "" {
		if asOf, err = core.ParseDate(cmd.AsOf); err != nil {
			return err
		}
	}
	horizon := cmd.Horizon
	if horizon == 0 {
		horizon = cfg.HorizonMonths
	}

	created, err := services.NewMaterializer(repo).Rebuild(context.Background(), asOf, horizon)
	if err != nil {
		return err
	}
	fmt.Printf("materialized %d events from %s over %d months\n", created, asOf, horizon)
	return nil
}

type ForecastCmd struct {
	Start string `help:"First day of the forecast (YYYY-MM-DD)." default:""`
	Days  int    `help:"Horizon length in days." default:"0"`
	Free  bool   `help:"Show the free money series instead of account balances."`
}

func (cmd *ForecastCmd) Run(globals *Globals) error {
	repo, cfg, err := globals.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	start := core.DateOf(time.Now())
	if cmd.Start != "" {
		if start, err = core.ParseDate(cmd.Start); err != nil {
			return err
		}
	}
	days := cmd.Days
	if days == 0 {
		days = cfg.ForecastDays
	}

	projector := services.NewProjector(repo)
	projector.DangerThresholdYen = cfg.DangerThresholdYen
	ctx := context.Background()

	if cmd.Free {
		free, err := projector.ProjectFreeMoney(ctx, start, days)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tFREE YEN")
		for _, pt := range free {
			fmt.Fprintf(w, "%s\t%d\n", pt.Date, pt.BalanceYen)
		}
		return w.Flush()
	}

	f, err := projector.ProjectAccounts(ctx, start, days)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tSTART YEN\tMIN YEN\tMIN DATE\tEND YEN\tDANGER")
	for _, af := range f.Accounts {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\t%v\n",
			af.Name, af.StartBalanceYen,
			af.Summary.MinBalanceYen, af.Summary.MinDate,
			af.Summary.EndBalanceYen, af.Summary.IsDanger)
	}
	if n := len(f.Total); n > 0 {
		fmt.Fprintf(w, "TOTAL\t%d\t\t\t%d\t\n", f.Total[0].BalanceYen, f.Total[n-1].BalanceYen)
	}
	return w.Flush()
}

type StatementCmd struct {
	Card  int64 `help:"Card id." arg:""`
	Year  int   `help:"Withdrawal year." default:"0"`
	Month int   `help:"Withdrawal month." default:"0"`
}

func (cmd *StatementCmd) Run(globals *Globals) error {
	repo, _, err := globals.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	ctx := context.Background()

	year, month := cmd.Year, cmd.Month
	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}

	cards, err := repo.Cards(ctx)
	if err != nil {
		return err
	}
	var card core.Card
	found := false
	for _, c := range cards {
		if c.ID == cmd.Card {
			card, found = c, true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown card id %d", cmd.Card)
	}

	period := services.CardPeriod(card, year, month)
	aggregator := services.NewAggregator(repo)
	stmt, err := aggregator.Statement(ctx, card.ID, period.Start, period.End)
	if err != nil {
		return err
	}
	merchants, err := aggregator.MerchantBreakdown(ctx, card.ID, period.Start, period.End)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s .. %s, withdrawn %s: %d yen\n",
		card.Name, period.Start, period.End, period.Withdraw, stmt.AmountYen)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, m := range merchants {
		fmt.Fprintf(w, "  %s\t%d\t(%d)\n", m.Merchant, m.AmountYen, m.Count)
	}
	return w.Flush()
}

type ReportCmd struct {
	Year   int  `help:"Report year." default:"0"`
	Month  int  `help:"Report month." default:"0"`
	Export bool `help:"Append the report to the configured Google Sheet."`
}

func (cmd *ReportCmd) Run(globals *Globals) error {
	repo, cfg, err := globals.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()
	ctx := context.Background()

	year, month := cmd.Year, cmd.Month
	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}

	rep, err := report.NewBuilder(repo).Build(ctx, year, month)
	if err != nil {
		return err
	}

	fmt.Printf("%d-%02d: income %d, expenses %d, net %d\n",
		rep.Year, rep.Month, rep.IncomeYen, rep.ExpenseYen, rep.NetYen)
	for _, sec := range rep.Cards {
		fmt.Printf("  %s (%s .. %s, withdrawn %s): %d yen\n",
			sec.CardName, sec.PeriodStart, sec.PeriodEnd, sec.WithdrawDate, sec.AmountYen)
	}

	if !cmd.Export {
		return nil
	}
	if cfg.GoogleSpreadsheetID == "" {
		return fmt.Errorf("GOOGLE_SPREADSHEET_ID is not configured")
	}
	exporter, err := export.NewSheetsExporter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, cfg.GoogleCredentialFile)
	if err != nil {
		return err
	}
	if err := exporter.Export(ctx, rep); err != nil {
		return err
	}
	fmt.Println("report exported")
	return nil
}

var cli struct {
	Globals

	Rebuild   RebuildCmd   `cmd:"" help:"Rematerialize derived events over the horizon."`
	Forecast  ForecastCmd  `cmd:"" help:"Project daily balances from the materialized ledger."`
	Statement StatementCmd `cmd:"" help:"Show one card's billing cycle for a withdrawal month."`
	Report    ReportCmd    `cmd:"" help:"Build the monthly report, optionally exporting it."`
}

func main() {
	_ = godotenv.Load()

	ctx := kong.Parse(&cli,
		kong.Name("kakeibo-admin"),
		kong.Description("Maintenance commands for the kakeibo ledger."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
