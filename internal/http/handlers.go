package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type rebuildRequest struct {
	AsOf          string `json:"as_of"`
	HorizonMonths int    `json:"horizon_months"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	// An empty body means "rebuild with defaults".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asOf := core.DateOf(time.Now())
	if req.AsOf != "" {
		var err error
		if asOf, err = core.ParseDate(req.AsOf); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid as_of date: %q", req.AsOf))
			return
		}
	}
	horizon := req.HorizonMonths
	if horizon == 0 {
		horizon = s.opts.HorizonMonths
	}

	created, err := s.materializer.Rebuild(r.Context(), asOf, horizon)
	if err != nil {
		if errors.Is(err, services.ErrRebuildInProgress) {
			writeError(w, http.StatusConflict, "a rebuild is already running")
			return
		}
		s.logger.ErrorContext(r.Context(), "Rebuild failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "rebuild failed")
		return
	}

	s.forecastCache.Clear()

	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":          asOf.String(),
		"horizon_months": horizon,
		"events_created": created,
	})
}

type forecastPointDTO struct {
	Date       string `json:"date"`
	BalanceYen int64  `json:"balance_yen"`
}

type accountForecastDTO struct {
	AccountID       int64              `json:"account_id"`
	Name            string             `json:"name"`
	StartBalanceYen int64              `json:"start_balance_yen"`
	MinBalanceYen   int64              `json:"min_balance_yen"`
	MinDate         string             `json:"min_date"`
	EndBalanceYen   int64              `json:"end_balance_yen"`
	IsDanger        bool               `json:"is_danger"`
	Series          []forecastPointDTO `json:"series"`
}

func pointsDTO(points []core.ForecastPoint) []forecastPointDTO {
	out := make([]forecastPointDTO, len(points))
	for i, pt := range points {
		out[i] = forecastPointDTO{Date: pt.Date.String(), BalanceYen: pt.BalanceYen}
	}
	return out
}

func (s *Server) handleForecastAccounts(w http.ResponseWriter, r *http.Request) {
	start, err := parseStart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	days := parseDays(r, s.opts.ForecastDays)

	key := fmt.Sprintf("accounts:%s:%d", start, days)
	if cached, ok := s.forecastCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	f, err := s.projector.ProjectAccounts(r.Context(), start, days)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Forecast failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "forecast failed")
		return
	}

	accounts := make([]accountForecastDTO, len(f.Accounts))
	for i, af := range f.Accounts {
		accounts[i] = accountForecastDTO{
			AccountID:       af.AccountID,
			Name:            af.Name,
			StartBalanceYen: af.StartBalanceYen,
			MinBalanceYen:   af.Summary.MinBalanceYen,
			MinDate:         af.Summary.MinDate.String(),
			EndBalanceYen:   af.Summary.EndBalanceYen,
			IsDanger:        af.Summary.IsDanger,
			Series:          pointsDTO(af.Series),
		}
	}
	body, err := json.Marshal(map[string]any{
		"start":    f.Start.String(),
		"end":      f.End.String(),
		"accounts": accounts,
		"total":    pointsDTO(f.Total),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "forecast failed")
		return
	}

	s.forecastCache.Set(key, body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleForecastFree(w http.ResponseWriter, r *http.Request) {
	start, err := parseStart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	days := parseDays(r, s.opts.ForecastDays)

	key := fmt.Sprintf("free:%s:%d", start, days)
	if cached, ok := s.forecastCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	free, err := s.projector.ProjectFreeMoney(r.Context(), start, days)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Free money forecast failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "forecast failed")
		return
	}

	body, err := json.Marshal(map[string]any{
		"start": start.String(),
		"free":  pointsDTO(free),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "forecast failed")
		return
	}

	s.forecastCache.Set(key, body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) cardByID(r *http.Request) (core.Card, bool, error) {
	id, ok := pathID(r)
	if !ok {
		return core.Card{}, false, nil
	}
	cards, err := s.store.Cards(r.Context())
	if err != nil {
		return core.Card{}, false, err
	}
	for _, c := range cards {
		if c.ID == id {
			return c, true, nil
		}
	}
	return core.Card{}, false, nil
}

func (s *Server) handleCardStatement(w http.ResponseWriter, r *http.Request) {
	card, found, err := s.cardByID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load card failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown card")
		return
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	period := services.CardPeriod(card, year, month)
	stmt, err := s.aggregator.Statement(r.Context(), card.ID, period.Start, period.End)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Statement failed", log.FieldCardID, card.ID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "statement failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card_id":       card.ID,
		"card_name":     card.Name,
		"period_start":  period.Start.String(),
		"period_end":    period.End.String(),
		"withdraw_date": period.Withdraw.String(),
		"amount_yen":    stmt.AmountYen,
	})
}

func (s *Server) handleCardMerchants(w http.ResponseWriter, r *http.Request) {
	card, found, err := s.cardByID(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load card failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown card")
		return
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	period := services.CardPeriod(card, year, month)
	merchants, err := s.aggregator.MerchantBreakdown(r.Context(), card.ID, period.Start, period.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "merchant breakdown failed")
		return
	}

	type merchantDTO struct {
		Merchant  string `json:"merchant"`
		AmountYen int64  `json:"amount_yen"`
		Count     int    `json:"count"`
	}
	out := make([]merchantDTO, len(merchants))
	for i, m := range merchants {
		out[i] = merchantDTO{Merchant: m.Merchant, AmountYen: m.AmountYen, Count: m.Count}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"card_id":      card.ID,
		"period_start": period.Start.String(),
		"period_end":   period.End.String(),
		"merchants":    out,
	})
}

type importRowDTO struct {
	Line   int    `json:"line"`
	Date   string `json:"date"`
	Title  string `json:"title"`
	Amount string `json:"amount"`
}

type importRequest struct {
	CardID         int64          `json:"card_id"`
	SkipDuplicates bool           `json:"skip_duplicates"`
	Rows           []importRowDTO `json:"rows"`
}

type rowErrorDTO struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type duplicateDTO struct {
	Line       int   `json:"line"`
	ExistingID int64 `json:"existing_id"`
	Exact      bool  `json:"exact"`
}

func (s *Server) decodeImport(r *http.Request) (importRequest, []services.ParsedRow, []services.RowError, []services.DuplicateMatch, error) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, nil, nil, fmt.Errorf("invalid request body")
	}
	if req.CardID == 0 || len(req.Rows) == 0 {
		return req, nil, nil, nil, fmt.Errorf("card_id and rows are required")
	}

	rows := make([]services.ImportRow, len(req.Rows))
	for i, row := range req.Rows {
		rows[i] = services.ImportRow{Line: row.Line, Date: row.Date, Title: row.Title, Amount: row.Amount}
	}
	parsed, rowErrs := services.ValidateRows(rows)

	var dups []services.DuplicateMatch
	if len(parsed) > 0 {
		lo, hi := parsed[0].Date, parsed[0].Date
		for _, p := range parsed[1:] {
			if p.Date.Before(lo) {
				lo = p.Date
			}
			if p.Date.After(hi) {
				hi = p.Date
			}
		}
		existing, err := s.store.CardTransactionsBetween(r.Context(), lo.AddDays(-3), hi.AddDays(3))
		if err != nil {
			return req, nil, nil, nil, fmt.Errorf("load existing transactions")
		}
		dups = services.FindDuplicates(parsed, existing)
	}
	return req, parsed, rowErrs, dups, nil
}

func (s *Server) handleImportValidate(w http.ResponseWriter, r *http.Request) {
	_, parsed, rowErrs, dups, err := s.decodeImport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	errsDTO := make([]rowErrorDTO, len(rowErrs))
	for i, re := range rowErrs {
		errsDTO[i] = rowErrorDTO{Line: re.Line, Error: re.Err.Error()}
	}
	dupsDTO := make([]duplicateDTO, len(dups))
	for i, d := range dups {
		dupsDTO[i] = duplicateDTO{Line: d.Line, ExistingID: d.ExistingID, Exact: d.Exact}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      len(parsed),
		"errors":     errsDTO,
		"duplicates": dupsDTO,
	})
}

func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	req, parsed, rowErrs, dups, err := s.decodeImport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rowErrs) > 0 {
		errsDTO := make([]rowErrorDTO, len(rowErrs))
		for i, re := range rowErrs {
			errsDTO[i] = rowErrorDTO{Line: re.Line, Error: re.Err.Error()}
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "rows failed validation",
			"errors": errsDTO,
		})
		return
	}

	dupLines := map[int]bool{}
	if req.SkipDuplicates {
		for _, d := range dups {
			dupLines[d.Line] = true
		}
	}

	var txs []core.CardTransaction
	skipped := 0
	for _, p := range parsed {
		if dupLines[p.Line] {
			skipped++
			continue
		}
		txs = append(txs, core.CardTransaction{
			CardID:      req.CardID,
			Date:        p.Date,
			AmountYen:   p.AmountYen,
			Merchant:    p.Title,
			Fingerprint: p.Fingerprint,
		})
	}

	if len(txs) > 0 {
		if err := s.store.SaveCardTransactions(r.Context(), txs); err != nil {
			s.logger.ErrorContext(r.Context(), "Import commit failed", log.FieldError, err)
			writeError(w, http.StatusInternalServerError, "import failed")
			return
		}
	}

	s.logger.InfoContext(r.Context(), "Card transactions imported",
		log.FieldCardID, req.CardID,
		log.FieldRowCount, len(txs),
		"skipped", skipped)

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(txs),
		"skipped":  skipped,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.reports.Build(r.Context(), year, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Report failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
