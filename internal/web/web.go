// Package web exposes the academic calendar over HTTP.
package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"schoolcal/internal/calendar"
	"schoolcal/internal/config"
	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/eventmodel"
	"schoolcal/internal/holiday"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
	"schoolcal/internal/view"
)

// calendarCacheTTL bounds how long a built month stays cached.
const calendarCacheTTL = 30 * time.Second

// Calendar is the subset of calendar.Service used by the server.
type Calendar interface {
	Holidays(year int) holiday.Map
	Build(ctx context.Context, year int, opts eventmodel.Options) (calendar.Snapshot, error)
	Export(ctx context.Context, year int, w io.Writer) error
	SyncFeeds(ctx context.Context, year int) (int, []error)
	Persist(ctx context.Context, year int) (int, error)
}

// Server provides the HTTP API.
type Server struct {
	cfg *config.Config
	cal Calendar
	mux *http.ServeMux
	now func() time.Time

	// /api/calendar 응답 캐시. 키는 year/month/printable.
	cacheMu sync.RWMutex
	cache   map[cacheKey]*calendarCache
}

type cacheKey struct {
	year      int
	month     int
	printable bool
}

// calendarCache holds a cached /api/calendar response and its timestamp.
type calendarCache struct {
	resp      calendarResponse
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cal Calendar) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:   cfg,
		cal:   cal,
		mux:   http.NewServeMux(),
		now:   time.Now,
		cache: make(map[cacheKey]*calendarCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.BasicAuth.Enabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="SchoolCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleICS)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/basic-schedule", s.handlePersist)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// holidayDTO is one date of the statutory holiday set.
type holidayDTO struct {
	Date  string   `json:"date"`
	Names []string `json:"names"`
}

type holidaysResponse struct {
	Year     int          `json:"year"`
	Holidays []holidayDTO `json:"holidays"`
}

// handleHolidays returns the computed holidays of an academic year.
//
// GET /api/holidays?year=2025
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := s.yearParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	entries := s.cal.Holidays(year).Entries()
	resp := holidaysResponse{Year: year, Holidays: make([]holidayDTO, 0, len(entries))}
	for _, e := range entries {
		resp.Holidays = append(resp.Holidays, holidayDTO{Date: model.Key(e.Date), Names: e.Names})
	}
	writeJSON(w, http.StatusOK, resp)
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Year   int        `json:"year"`
	Month  int        `json:"month,omitempty"`
	School string     `json:"school,omitempty"`
	Days   []view.Day `json:"days"`
}

// handleCalendar returns grouped display days.
//
// GET /api/calendar?year=2025&month=4&printable=1
//   - year:      학년도 (기본: 설정값 또는 오늘이 속한 학년도)
//   - month:     1-12, 생략하면 학년도 전체
//   - printable: 1 이면 인쇄용 부서 일정만 포함
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := s.yearParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	q := r.URL.Query()
	month := parseIntDefault(q.Get("month"), 0)
	if month < 0 || month > 12 {
		writeAppError(w, apperrors.WithMetadata(apperrors.CodeValidation, "month must be 1-12", map[string]string{"month": q.Get("month")}))
		return
	}
	printable := q.Get("printable") == "1" || q.Get("printable") == "true"

	key := cacheKey{year: year, month: month, printable: printable}
	now := s.now()

	s.cacheMu.RLock()
	cc := s.cache[key]
	s.cacheMu.RUnlock()
	if cc != nil && now.Sub(cc.updatedAt) < calendarCacheTTL {
		writeJSON(w, http.StatusOK, cc.resp)
		return
	}

	snap, err := s.cal.Build(r.Context(), year, eventmodel.Options{PrintableOnly: printable})
	if err != nil {
		appLog.Error("api calendar: build failed", err, "year", year)
		writeAppError(w, err)
		return
	}

	days := snap.Days()
	if month != 0 {
		m := time.Month(month)
		days = view.Month(days, model.YearForMonth(year, m), m)
	}
	if days == nil {
		days = []view.Day{}
	}
	resp := calendarResponse{
		Year:   year,
		Month:  month,
		School: snap.Data.Settings.SchoolName,
		Days:   days,
	}

	s.cacheMu.Lock()
	s.cache[key] = &calendarCache{resp: resp, updatedAt: now}
	s.cacheMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleICS serves the ICS export of a year.
//
// GET /api/calendar.ics?year=2025
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	year, err := s.yearParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	// 에러가 나면 JSON 으로 응답해야 하므로 버퍼에 먼저 쓴다.
	var buf bytes.Buffer
	if err := s.cal.Export(r.Context(), year, &buf); err != nil {
		appLog.Error("api ics: export failed", err, "year", year)
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="schoolcal-%d.ics"`, year))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type refreshResponse struct {
	Year   int      `json:"year"`
	Synced int      `json:"synced"`
	Errors []string `json:"errors,omitempty"`
}

// handleRefresh syncs department feeds and drops the calendar cache.
//
// POST /api/refresh?year=2025
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	year, err := s.yearParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	n, errs := s.cal.SyncFeeds(r.Context(), year)
	s.Invalidate()

	resp := refreshResponse{Year: year, Synced: n}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, e.Error())
	}
	if len(errs) > 0 {
		appLog.Error("api refresh: one or more feeds failed", errors.Join(errs...), "error_count", len(errs))
	}
	writeJSON(w, http.StatusOK, resp)
}

type persistResponse struct {
	Year int `json:"year"`
	Rows int `json:"rows"`
}

// handlePersist re-derives the basic schedule of a year and stores it.
//
// POST /api/basic-schedule?year=2025
func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	year, err := s.yearParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	n, err := s.cal.Persist(r.Context(), year)
	if err != nil {
		appLog.Error("api basic schedule: save failed", err, "year", year)
		writeAppError(w, err)
		return
	}
	s.Invalidate()
	writeJSON(w, http.StatusOK, persistResponse{Year: year, Rows: n})
}

// Invalidate drops every cached calendar response.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	s.cache = make(map[cacheKey]*calendarCache)
	s.cacheMu.Unlock()
}

// yearParam reads ?year=, falling back to the configured year and then to
// the academic year of today.
func (s *Server) yearParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		if s.cfg.AcademicYear != 0 {
			return s.cfg.AcademicYear, nil
		}
		return model.AcademicYearOf(s.now()), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1901 || year > 2098 {
		return 0, apperrors.WithMetadata(apperrors.CodeValidation, "invalid year", map[string]string{"year": raw})
	}
	return year, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error    string            `json:"error"`
	Code     string            `json:"code,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeAppError maps a domain error to its HTTP status. Causes are not
// exposed to clients.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, appErr.Code.HTTPStatus(), errResp{
		Error:    appErr.Message,
		Code:     string(appErr.Code),
		Metadata: appErr.Metadata,
	})
}
