package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"kakeibo/internal/core"
	httpapi "kakeibo/internal/http"
	"kakeibo/internal/log"
	"kakeibo/internal/storage/memory"
)

func newTestServer(store *memory.Store) *httpapi.Server {
	logger := log.New(log.Config{
		Handler:   slog.NewTextHandler(io.Discard, nil),
		Component: log.ComponentHTTP,
	})
	return httpapi.NewServer(store, logger, httpapi.Options{
		HorizonMonths: 3,
		ForecastDays:  30,
	})
}

func doJSON(t *testing.T, srv *httpapi.Server, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(memory.New())

	rec, body := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestRebuildAndForecast(t *testing.T) {
	store := memory.New()
	store.AddAccount(core.Account{Name: "checking", BalanceYen: 100000})
	store.AddPlan(core.Plan{
		Type:          core.PlanExpense,
		Title:         "rent",
		AmountYen:     60000,
		PaymentMethod: core.PayBank,
		AccountID:     1,
		Recurrence: core.Recurrence{
			Freq:           core.Monthly,
			Day:            5,
			EffectiveStart: core.NewDate(2024, 1, 1),
		},
	})
	srv := newTestServer(store)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/rebuild", map[string]any{
		"as_of":          "2025-01-01",
		"horizon_months": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body %v", rec.Code, body)
	}
	if created, _ := body["events_created"].(float64); created < 2 {
		t.Errorf("events_created = %v, want at least 2", body["events_created"])
	}

	rec, body = doJSON(t, srv, http.MethodGet, "/api/forecast/accounts?start=2025-01-01&days=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forecast status = %d, body %v", rec.Code, body)
	}
	accounts, _ := body["accounts"].([]any)
	if len(accounts) != 1 {
		t.Fatalf("forecast accounts = %d, want 1", len(accounts))
	}
	total, _ := body["total"].([]any)
	if len(total) != 11 {
		t.Fatalf("total series length = %d, want 11", len(total))
	}
	last, _ := total[len(total)-1].(map[string]any)
	if got, _ := last["balance_yen"].(float64); got != 40000 {
		t.Errorf("final total balance = %v, want 40000 after rent", last["balance_yen"])
	}
}

func TestRebuildRejectsBadDate(t *testing.T) {
	srv := newTestServer(memory.New())

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/rebuild", map[string]any{"as_of": "not-a-date"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRebuildClearsForecastCache(t *testing.T) {
	store := memory.New()
	store.AddAccount(core.Account{Name: "checking", BalanceYen: 50000})
	srv := newTestServer(store)

	const target = "/api/forecast/accounts?start=2025-03-01&days=5"
	rec, body := doJSON(t, srv, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forecast status = %d", rec.Code)
	}
	endBalance := func(body map[string]any) float64 {
		total, _ := body["total"].([]any)
		last, _ := total[len(total)-1].(map[string]any)
		v, _ := last["balance_yen"].(float64)
		return v
	}
	if got := endBalance(body); got != 50000 {
		t.Fatalf("initial end balance = %v, want 50000", got)
	}

	// New authoritative event; the cached series must keep serving until a
	// rebuild invalidates it.
	store.AddOneoffEvent(core.CashflowEvent{
		Date:        core.NewDate(2025, 3, 2),
		AmountYen:   -10000,
		AccountID:   1,
		Description: "repair",
	})
	_, body = doJSON(t, srv, http.MethodGet, target, nil)
	if got := endBalance(body); got != 50000 {
		t.Fatalf("cached end balance = %v, want 50000", got)
	}

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/rebuild", map[string]any{"as_of": "2025-03-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d", rec.Code)
	}
	_, body = doJSON(t, srv, http.MethodGet, target, nil)
	if got := endBalance(body); got != 40000 {
		t.Errorf("post-rebuild end balance = %v, want 40000", got)
	}
}

func TestImportCommitAndStatement(t *testing.T) {
	store := memory.New()
	store.AddAccount(core.Account{Name: "checking", BalanceYen: 200000})
	cardID := store.AddCard(core.Card{
		Name:             "main card",
		ClosingDay:       15,
		PaymentDay:       27,
		PaymentAccountID: 1,
	})
	srv := newTestServer(store)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/import/commit", map[string]any{
		"card_id": cardID,
		"rows": []map[string]any{
			{"line": 1, "date": "2025-01-10", "title": "Grocery Mart", "amount": "3,500"},
			{"line": 2, "date": "2025-01-12", "title": "Book Store", "amount": "1200"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body %v", rec.Code, body)
	}
	if got, _ := body["imported"].(float64); got != 2 {
		t.Fatalf("imported = %v, want 2", body["imported"])
	}

	// Both rows fall in the cycle that closes Jan 15 and withdraws Feb 27.
	rec, body = doJSON(t, srv, http.MethodGet, "/api/cards/2/statement?year=2025&month=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statement status = %d, body %v", rec.Code, body)
	}
	if got, _ := body["amount_yen"].(float64); got != -4700 {
		t.Errorf("statement amount = %v, want -4700", body["amount_yen"])
	}
	if body["period_start"] != "2024-12-16" || body["period_end"] != "2025-01-15" {
		t.Errorf("period = %v..%v, want 2024-12-16..2025-01-15", body["period_start"], body["period_end"])
	}
	if body["withdraw_date"] != "2025-02-27" {
		t.Errorf("withdraw_date = %v, want 2025-02-27", body["withdraw_date"])
	}

	rec, body = doJSON(t, srv, http.MethodGet, "/api/cards/2/merchants?year=2025&month=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("merchants status = %d", rec.Code)
	}
	merchants, _ := body["merchants"].([]any)
	if len(merchants) != 2 {
		t.Fatalf("merchants = %d entries, want 2", len(merchants))
	}
	first, _ := merchants[0].(map[string]any)
	if first["merchant"] != "Grocery Mart" {
		t.Errorf("top merchant = %v, want Grocery Mart", first["merchant"])
	}
}

func TestStatementRejectsOutOfRangeMonth(t *testing.T) {
	store := memory.New()
	store.AddCard(core.Card{Name: "main card", ClosingDay: 15, PaymentDay: 27, PaymentAccountID: 1})
	srv := newTestServer(store)

	for _, target := range []string{
		"/api/cards/1/statement?year=2025&month=13",
		"/api/cards/1/statement?year=2025&month=0",
		"/api/cards/1/merchants?year=2025&month=13",
		"/api/report?year=2025&month=13",
	} {
		rec, _ := doJSON(t, srv, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestStatementUnknownCard(t *testing.T) {
	srv := newTestServer(memory.New())

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/cards/99/statement", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestImportValidateReportsErrorsAndDuplicates(t *testing.T) {
	store := memory.New()
	cardID := store.AddCard(core.Card{Name: "main card", ClosingDay: 15, PaymentDay: 27, PaymentAccountID: 1})
	srv := newTestServer(store)

	commit := map[string]any{
		"card_id": cardID,
		"rows": []map[string]any{
			{"line": 1, "date": "2025-01-10", "title": "Grocery Mart", "amount": "3500"},
		},
	}
	if rec, body := doJSON(t, srv, http.MethodPost, "/api/import/commit", commit); rec.Code != http.StatusOK {
		t.Fatalf("seed commit status = %d, body %v", rec.Code, body)
	}

	rec, body := doJSON(t, srv, http.MethodPost, "/api/import/validate", map[string]any{
		"card_id": cardID,
		"rows": []map[string]any{
			{"line": 1, "date": "2025-01-10", "title": "Grocery Mart", "amount": "3500"},
			{"line": 2, "date": "what day", "title": "Book Store", "amount": "1200"},
			{"line": 3, "date": "2025-01-20", "title": "Cafe", "amount": "800"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body %v", rec.Code, body)
	}
	if got, _ := body["valid"].(float64); got != 2 {
		t.Errorf("valid = %v, want 2", body["valid"])
	}
	errs, _ := body["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("errors = %d, want 1", len(errs))
	}
	rowErr, _ := errs[0].(map[string]any)
	if got, _ := rowErr["line"].(float64); got != 2 {
		t.Errorf("error line = %v, want 2", rowErr["line"])
	}
	dups, _ := body["duplicates"].([]any)
	if len(dups) != 1 {
		t.Fatalf("duplicates = %d, want 1", len(dups))
	}
	dup, _ := dups[0].(map[string]any)
	if got, _ := dup["line"].(float64); got != 1 {
		t.Errorf("duplicate line = %v, want 1", dup["line"])
	}
	if exact, _ := dup["exact"].(bool); !exact {
		t.Errorf("duplicate exact = %v, want true", dup["exact"])
	}
}

func TestImportCommitSkipsDuplicates(t *testing.T) {
	store := memory.New()
	cardID := store.AddCard(core.Card{Name: "main card", ClosingDay: 15, PaymentDay: 27, PaymentAccountID: 1})
	srv := newTestServer(store)

	row := map[string]any{"line": 1, "date": "2025-01-10", "title": "Grocery Mart", "amount": "3500"}
	if rec, _ := doJSON(t, srv, http.MethodPost, "/api/import/commit", map[string]any{
		"card_id": cardID, "rows": []map[string]any{row},
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed commit status = %d", rec.Code)
	}

	rec, body := doJSON(t, srv, http.MethodPost, "/api/import/commit", map[string]any{
		"card_id":         cardID,
		"skip_duplicates": true,
		"rows":            []map[string]any{row},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body %v", rec.Code, body)
	}
	if got, _ := body["imported"].(float64); got != 0 {
		t.Errorf("imported = %v, want 0", body["imported"])
	}
	if got, _ := body["skipped"].(float64); got != 1 {
		t.Errorf("skipped = %v, want 1", body["skipped"])
	}
}

func TestImportCommitRejectsInvalidRows(t *testing.T) {
	store := memory.New()
	cardID := store.AddCard(core.Card{Name: "main card", ClosingDay: 15, PaymentDay: 27, PaymentAccountID: 1})
	srv := newTestServer(store)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/import/commit", map[string]any{
		"card_id": cardID,
		"rows": []map[string]any{
			{"line": 1, "date": "", "title": "Grocery Mart", "amount": "3500"},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	errs, _ := body["errors"].([]any)
	if len(errs) != 1 {
		t.Errorf("errors = %d, want 1", len(errs))
	}
}

func TestMonthlyReportEndpoint(t *testing.T) {
	store := memory.New()
	store.AddAccount(core.Account{Name: "checking", BalanceYen: 100000})
	store.AddOneoffEvent(core.CashflowEvent{
		Date:        core.NewDate(2025, 4, 25),
		AmountYen:   300000,
		AccountID:   1,
		Description: "salary",
	})
	store.AddOneoffEvent(core.CashflowEvent{
		Date:        core.NewDate(2025, 4, 5),
		AmountYen:   -60000,
		AccountID:   1,
		Description: "rent",
	})
	srv := newTestServer(store)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/report?year=2025&month=4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, body %v", rec.Code, body)
	}
	if got, _ := body["income_yen"].(float64); got != 300000 {
		t.Errorf("income_yen = %v, want 300000", body["income_yen"])
	}
	if got, _ := body["expense_yen"].(float64); got != 60000 {
		t.Errorf("expense_yen = %v, want 60000", body["expense_yen"])
	}
	if got, _ := body["net_yen"].(float64); got != 240000 {
		t.Errorf("net_yen = %v, want 240000", body["net_yen"])
	}
}
