// Package sqlite provides the SQLite-backed calendar store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/model"
	"schoolcal/internal/store/sqlite/migrations"
)

// Store persists settings, departments and schedules in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open opens a SQLite calendar store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.CodePersistence, op, err)
}

func yearMeta(year int) map[string]string {
	return map[string]string{"year": strconv.Itoa(year)}
}

// GetSettings returns the settings row of year.
func (s *Store) GetSettings(ctx context.Context, year int) (model.Settings, error) {
	out := model.Settings{AcademicYear: year}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT school_name, school_code, region FROM settings WHERE academic_year = ?`, year,
	).Scan(&out.SchoolName, &out.SchoolCode, &out.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, apperrors.WithMetadata(apperrors.CodeNotFound, "settings not found", yearMeta(year))
	}
	if err != nil {
		return model.Settings{}, persistence("get settings", err)
	}
	return out, nil
}

// SaveSettings inserts or updates the settings row of st.AcademicYear.
func (s *Store) SaveSettings(ctx context.Context, st model.Settings) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (academic_year, school_name, school_code, region)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (academic_year) DO UPDATE SET
		   school_name = excluded.school_name,
		   school_code = excluded.school_code,
		   region = excluded.region`,
		st.AcademicYear, strings.TrimSpace(st.SchoolName), strings.TrimSpace(st.SchoolCode), strings.TrimSpace(st.Region),
	)
	return persistence("save settings", err)
}

// ListDepartments returns every department of year, active or not, in
// display order.
func (s *Store) ListDepartments(ctx context.Context, year int) ([]model.Department, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, academic_year, dept_name, dept_short, dept_color, sort_order, is_active, kind
		 FROM departments WHERE academic_year = ?
		 ORDER BY sort_order, dept_name`, year)
	if err != nil {
		return nil, persistence("list departments", err)
	}
	defer rows.Close()

	var out []model.Department
	for rows.Next() {
		var d model.Department
		var kind string
		if err := rows.Scan(&d.ID, &d.AcademicYear, &d.Name, &d.Short, &d.Color, &d.SortOrder, &d.IsActive, &kind); err != nil {
			return nil, persistence("scan department", err)
		}
		d.Kind = model.DeptKind(kind)
		out = append(out, d)
	}
	return out, persistence("list departments", rows.Err())
}

// SaveDepartment inserts or updates d. An empty ID is generated for
// general departments.
func (s *Store) SaveDepartment(ctx context.Context, d model.Department) (model.Department, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return model.Department{}, apperrors.Validation("department name is required")
	}
	if d.Kind == "" {
		d.Kind = model.DeptGeneral
	}
	if d.Kind == model.DeptSpecial && !model.IsSpecialDepartment(d.ID) {
		return model.Department{}, apperrors.WithMetadata(apperrors.CodeValidation, "unknown special department", map[string]string{"id": d.ID})
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO departments (id, academic_year, dept_name, dept_short, dept_color, sort_order, is_active, kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (academic_year, id) DO UPDATE SET
		   dept_name = excluded.dept_name,
		   dept_short = excluded.dept_short,
		   dept_color = excluded.dept_color,
		   sort_order = excluded.sort_order,
		   is_active = excluded.is_active`,
		d.ID, d.AcademicYear, d.Name, d.Short, d.Color, d.SortOrder, d.IsActive, string(d.Kind),
	)
	if err != nil {
		return model.Department{}, persistence("save department", err)
	}
	return d, nil
}

// EnsureSpecialDepartments creates the fixed identities of year that do
// not exist yet. Existing rows keep their active flag.
func (s *Store) EnsureSpecialDepartments(ctx context.Context, year int) error {
	for _, d := range model.SpecialDepartments(year) {
		_, err := s.sqlDB.ExecContext(ctx,
			`INSERT OR IGNORE INTO departments (id, academic_year, dept_name, dept_short, dept_color, sort_order, is_active, kind)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, year, d.Name, d.Short, d.Color, d.SortOrder, d.IsActive, string(d.Kind),
		)
		if err != nil {
			return persistence("ensure special departments", err)
		}
	}
	return nil
}

// ListBasicRows returns the basic schedule of year ordered by start date.
func (s *Store) ListBasicRows(ctx context.Context, year int) ([]model.BasicScheduleRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT type, code, name, start_date, end_date, is_holiday
		 FROM basic_schedules WHERE academic_year = ?
		 ORDER BY id`, year)
	if err != nil {
		return nil, persistence("list basic schedules", err)
	}
	defer rows.Close()

	var out []model.BasicScheduleRow
	for rows.Next() {
		var (
			typ, name, start, end string
			code                  sql.NullString
			r                     = model.BasicScheduleRow{AcademicYear: year}
		)
		if err := rows.Scan(&typ, &code, &name, &start, &end, &r.IsHoliday); err != nil {
			return nil, persistence("scan basic schedule", err)
		}
		if r.Type, err = model.ParseRowType(typ); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, "stored basic schedule row", err)
		}
		r.Code = code.String
		r.Name = name
		if r.StartDate, err = model.ParseDate(start); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, "stored basic schedule start", err)
		}
		if r.EndDate, err = model.ParseDate(end); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, "stored basic schedule end", err)
		}
		out = append(out, r)
	}
	return out, persistence("list basic schedules", rows.Err())
}

// DeleteBasicRows removes every basic schedule row of year.
func (s *Store) DeleteBasicRows(ctx context.Context, year int) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM basic_schedules WHERE academic_year = ?`, year)
	return persistence("delete basic schedules", err)
}

// InsertBasicRows inserts rows outside a transaction.
func (s *Store) InsertBasicRows(ctx context.Context, rows []model.BasicScheduleRow) error {
	return insertBasicRows(ctx, s.sqlDB, rows)
}

// ReplaceBasicRows deletes and re-inserts the rows of year in one
// transaction.
func (s *Store) ReplaceBasicRows(ctx context.Context, year int, rows []model.BasicScheduleRow) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin replace", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM basic_schedules WHERE academic_year = ?`, year); err != nil {
		_ = tx.Rollback()
		return persistence("delete basic schedules", err)
	}
	if err := insertBasicRows(ctx, tx, rows); err != nil {
		_ = tx.Rollback()
		return err
	}
	return persistence("commit replace", tx.Commit())
}

func insertBasicRows(ctx context.Context, db execer, rows []model.BasicScheduleRow) error {
	for _, r := range rows {
		if !r.Type.Valid() {
			return apperrors.WithMetadata(apperrors.CodeValidation, "unknown row type", map[string]string{"type": r.Type.String()})
		}
		if r.StartDate.IsZero() {
			return apperrors.WithMetadata(apperrors.CodeValidation, "start date is required", map[string]string{"name": r.Name})
		}
		end := r.EndDate
		if end.IsZero() {
			end = r.StartDate
		}
		var code any
		if r.Code != "" {
			code = r.Code
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO basic_schedules (academic_year, type, code, name, start_date, end_date, is_holiday)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.AcademicYear, r.Type.String(), code, r.Name, model.Key(r.StartDate), model.Key(end), r.IsHoliday,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.WrapWithMetadata(apperrors.CodeValidation, "duplicate schedule code", map[string]string{
					"year": strconv.Itoa(r.AcademicYear),
					"code": r.Code,
				}, err)
			}
			return persistence("insert basic schedule", err)
		}
	}
	return nil
}

// ListSchedules returns the department events overlapping [from, to].
func (s *Store) ListSchedules(ctx context.Context, from, to time.Time) ([]model.DepartmentEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, title, start_date, end_date, dept_id, visibility, description, is_printable, source
		 FROM schedules
		 WHERE start_date <= ? AND end_date >= ?
		 ORDER BY start_date, id`, model.Key(to), model.Key(from))
	if err != nil {
		return nil, persistence("list schedules", err)
	}
	defer rows.Close()

	var out []model.DepartmentEvent
	for rows.Next() {
		var ev model.DepartmentEvent
		var start, end string
		if err := rows.Scan(&ev.ID, &ev.Title, &start, &end, &ev.DeptID, &ev.Visibility, &ev.Description, &ev.IsPrintable, &ev.Source); err != nil {
			return nil, persistence("scan schedule", err)
		}
		if ev.StartDate, err = model.ParseDate(start); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, "stored schedule start", err)
		}
		if ev.EndDate, err = model.ParseDate(end); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, "stored schedule end", err)
		}
		out = append(out, ev)
	}
	return out, persistence("list schedules", rows.Err())
}

// SaveSchedules inserts or replaces events by id.
func (s *Store) SaveSchedules(ctx context.Context, events []model.DepartmentEvent) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin save schedules", err)
	}
	if err := upsertSchedules(ctx, tx, events); err != nil {
		_ = tx.Rollback()
		return err
	}
	return persistence("commit save schedules", tx.Commit())
}

// ReplaceSourceSchedules swaps every event of source for events in one
// transaction. Feed sync uses it so that removed feed entries disappear.
func (s *Store) ReplaceSourceSchedules(ctx context.Context, source string, events []model.DepartmentEvent) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin replace schedules", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE source = ?`, source); err != nil {
		_ = tx.Rollback()
		return persistence("delete source schedules", err)
	}
	for i := range events {
		events[i].Source = source
	}
	if err := upsertSchedules(ctx, tx, events); err != nil {
		_ = tx.Rollback()
		return err
	}
	return persistence("commit replace schedules", tx.Commit())
}

// DeleteSchedule removes one event.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return persistence("delete schedule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "schedule not found", map[string]string{"id": id})
	}
	return nil
}

func upsertSchedules(ctx context.Context, db execer, events []model.DepartmentEvent) error {
	for _, ev := range events {
		title := strings.TrimSpace(ev.Title)
		if title == "" {
			return apperrors.Validation("schedule title is required")
		}
		if ev.StartDate.IsZero() {
			return apperrors.WithMetadata(apperrors.CodeValidation, "start date is required", map[string]string{"title": title})
		}
		end := ev.EndDate
		if end.IsZero() {
			end = ev.StartDate
		}
		if end.Before(ev.StartDate) {
			return apperrors.WithMetadata(apperrors.CodeValidation, "schedule ends before it starts", map[string]string{"title": title})
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Visibility == "" {
			ev.Visibility = "public"
		}
		if ev.Source == "" {
			ev.Source = model.SourceManual
		}
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO schedules (id, title, start_date, end_date, dept_id, visibility, description, is_printable, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, title, model.Key(ev.StartDate), model.Key(end), ev.DeptID, ev.Visibility, ev.Description, ev.IsPrintable, ev.Source,
		)
		if err != nil {
			return persistence("save schedule", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
