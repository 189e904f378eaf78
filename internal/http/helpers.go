package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseYearMonth extracts year and month from query parameters, defaulting
// to the current month. Out-of-range values are an error, never normalized
// into an adjacent year.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, convErr := strconv.Atoi(v)
		if convErr != nil || y < 1 {
			return 0, 0, fmt.Errorf("invalid year: %q", v)
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, convErr := strconv.Atoi(v)
		if convErr != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("invalid month: %q", v)
		}
		month = m
	}
	return year, month, nil
}

// parseDays reads the forecast window length, bounded to keep responses
// small.
func parseDays(r *http.Request, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get("days"))
	if v == "" {
		return fallback
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 {
		return fallback
	}
	if days > 730 {
		return 730
	}
	return days
}

// parseStart reads the forecast start date, defaulting to today.
func parseStart(r *http.Request) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("start"))
	if v == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(v)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
