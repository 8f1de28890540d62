// Package calendar wires the holiday engine, the schedule graph and the
// event aggregator to a persistence collaborator.
package calendar

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/eventmodel"
	"schoolcal/internal/holiday"
	"schoolcal/internal/ics"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
	"schoolcal/internal/observance"
	"schoolcal/internal/schedule"
	"schoolcal/internal/view"
)

// Repository is the persistence collaborator of the service.
type Repository interface {
	GetSettings(ctx context.Context, year int) (model.Settings, error)
	ListDepartments(ctx context.Context, year int) ([]model.Department, error)
	ListBasicRows(ctx context.Context, year int) ([]model.BasicScheduleRow, error)
	ListSchedules(ctx context.Context, from, to time.Time) ([]model.DepartmentEvent, error)
	DeleteBasicRows(ctx context.Context, year int) error
	InsertBasicRows(ctx context.Context, rows []model.BasicScheduleRow) error
}

// TxReplacer is implemented by repositories that can replace a year's
// basic schedule atomically.
type TxReplacer interface {
	ReplaceBasicRows(ctx context.Context, year int, rows []model.BasicScheduleRow) error
}

// ScheduleWriter stores department events.
type ScheduleWriter interface {
	SaveSchedules(ctx context.Context, events []model.DepartmentEvent) error
	ReplaceSourceSchedules(ctx context.Context, source string, events []model.DepartmentEvent) error
}

// FeedFetcher downloads department ICS feeds.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Service is safe for concurrent use as long as its collaborators are.
type Service struct {
	repo        Repository
	engine      *holiday.Engine
	observances []observance.Observance
	fetcher     FeedFetcher
	feeds       []ics.Source
}

// Option configures a Service.
type Option func(*Service)

// WithObservances replaces the default observance catalogue.
func WithObservances(list []observance.Observance) Option {
	return func(s *Service) { s.observances = list }
}

// WithFeeds enables SyncFeeds.
func WithFeeds(fetcher FeedFetcher, feeds []ics.Source) Option {
	return func(s *Service) {
		s.fetcher = fetcher
		s.feeds = feeds
	}
}

// NewService creates a Service. A nil engine uses the default lunar
// converter.
func NewService(repo Repository, engine *holiday.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = holiday.NewEngine(nil)
	}
	s := &Service{
		repo:        repo,
		engine:      engine,
		observances: observance.Defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// YearData is everything stored for one academic year.
type YearData struct {
	Settings    model.Settings
	Departments []model.Department
	BasicRows   []model.BasicScheduleRow
	Schedules   []model.DepartmentEvent
}

// LoadYear reads settings, active departments, basic rows and department
// schedules of year concurrently. Missing settings are not an error.
// Events of inactive departments are dropped.
func (s *Service) LoadYear(ctx context.Context, year int) (YearData, error) {
	var data YearData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st, err := s.repo.GetSettings(gctx, year)
		if errors.Is(err, apperrors.ErrNotFound) {
			st, err = model.Settings{AcademicYear: year}, nil
		}
		data.Settings = st
		return err
	})
	var inactive map[string]bool
	g.Go(func() error {
		depts, err := s.repo.ListDepartments(gctx, year)
		inactive = make(map[string]bool)
		for _, d := range depts {
			if d.IsActive {
				data.Departments = append(data.Departments, d)
				continue
			}
			inactive[d.ID] = true
		}
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListBasicRows(gctx, year)
		data.BasicRows = rows
		return err
	})
	g.Go(func() error {
		from, to := model.AcademicRange(year)
		events, err := s.repo.ListSchedules(gctx, from, to)
		data.Schedules = events
		return err
	})

	if err := g.Wait(); err != nil {
		appLog.Error("load year failed", err, "year", year)
		return YearData{}, err
	}
	data.Schedules = dropInactive(data.Schedules, inactive)
	return data, nil
}

// dropInactive removes events owned by an inactive department. Ids that
// match no department at all are kept for the "other" bucket.
func dropInactive(events []model.DepartmentEvent, inactive map[string]bool) []model.DepartmentEvent {
	if len(inactive) == 0 {
		return events
	}
	kept := events[:0:0]
	for _, ev := range events {
		if inactive[ev.DeptID] {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

// Holidays computes the statutory holidays of year.
func (s *Service) Holidays(year int) holiday.Map {
	return s.engine.Compute(year)
}

// Open returns the editing context of year, loaded from the stored basic
// schedule and recomputed. An empty store yields a fully derived graph.
func (s *Service) Open(ctx context.Context, year int) (*schedule.Graph, error) {
	rows, err := s.repo.ListBasicRows(ctx, year)
	if err != nil {
		return nil, err
	}
	return s.graph(year, rows)
}

func (s *Service) graph(year int, rows []model.BasicScheduleRow) (*schedule.Graph, error) {
	g := schedule.New(year, s.engine.Compute(year))
	if err := g.Load(rows); err != nil {
		return nil, err
	}
	g.Recompute()
	return g, nil
}

// Save replaces the stored basic schedule of g's year with g.Rows().
//
// A TxReplacer repository does it in one transaction. Otherwise the rows
// are deleted then inserted; an insert failure after the delete is reported
// as PARTIAL_REPLACE and not retried.
func (s *Service) Save(ctx context.Context, g *schedule.Graph) error {
	year := g.Year()
	rows := g.Rows()
	meta := map[string]string{"year": strconv.Itoa(year)}

	if tx, ok := s.repo.(TxReplacer); ok {
		if err := tx.ReplaceBasicRows(ctx, year, rows); err != nil {
			appLog.Error("basic schedule replace failed", err, "year", year)
			return err
		}
		appLog.Info("basic schedule saved", "year", year, "rows", len(rows))
		return nil
	}

	if err := s.repo.DeleteBasicRows(ctx, year); err != nil {
		appLog.Error("basic schedule delete failed", err, "year", year)
		return err
	}
	if err := s.repo.InsertBasicRows(ctx, rows); err != nil {
		perr := apperrors.WrapWithMetadata(apperrors.CodePartialReplace, "basic schedule deleted but not re-inserted", meta, err)
		appLog.Error("basic schedule partially replaced", perr, "year", year)
		return perr
	}
	appLog.Info("basic schedule saved", "year", year, "rows", len(rows))
	return nil
}

// Persist opens year, re-derives its automatic fields against the current
// holiday set and writes the result back. It returns the number of rows
// stored.
func (s *Service) Persist(ctx context.Context, year int) (int, error) {
	g, err := s.Open(ctx, year)
	if err != nil {
		return 0, err
	}
	if err := s.Save(ctx, g); err != nil {
		return 0, err
	}
	return len(g.Rows()), nil
}

// Snapshot is a built model with the data it was built from.
type Snapshot struct {
	Year  int
	Data  YearData
	Model eventmodel.Model
}

// Days groups the snapshot for display.
func (s Snapshot) Days() []view.Day {
	return view.Group(s.Model, s.Data.Departments)
}

// BasicRows returns the rows the model was built from.
func (s Snapshot) BasicRows() []model.BasicScheduleRow {
	return s.Data.BasicRows
}

// Build loads year and merges it into an eventmodel.Model. When nothing is
// stored yet, the rows of a freshly derived graph are used so that the
// statutory holidays still show.
func (s *Service) Build(ctx context.Context, year int, opts eventmodel.Options) (Snapshot, error) {
	data, err := s.LoadYear(ctx, year)
	if err != nil {
		return Snapshot{}, err
	}
	if len(data.BasicRows) == 0 {
		g, err := s.graph(year, nil)
		if err != nil {
			return Snapshot{}, err
		}
		data.BasicRows = g.Rows()
	}

	m := eventmodel.Build(eventmodel.Input{
		Year:           year,
		BasicRows:      data.BasicRows,
		DepartmentRows: data.Schedules,
		Observances:    s.observances,
		Departments:    data.Departments,
		Options:        opts,
	})
	return Snapshot{Year: year, Data: data, Model: m}, nil
}

// Export writes the ICS export of year to w.
func (s *Service) Export(ctx context.Context, year int, w io.Writer) error {
	snap, err := s.Build(ctx, year, eventmodel.Options{})
	if err != nil {
		return err
	}
	name := snap.Data.Settings.SchoolName
	if name == "" {
		name = "학사일정"
	}
	exp := ics.Export{
		Name:             name + " " + strconv.Itoa(year),
		Year:             year,
		BasicRows:        snap.Data.BasicRows,
		DepartmentEvents: snap.Data.Schedules,
	}
	_, err = exp.WriteTo(w)
	return err
}

// ImportSchedules stores imported department events.
func (s *Service) ImportSchedules(ctx context.Context, events []model.DepartmentEvent) error {
	w, ok := s.repo.(ScheduleWriter)
	if !ok {
		return apperrors.New(apperrors.CodePersistence, "repository cannot store schedules")
	}
	if err := w.SaveSchedules(ctx, events); err != nil {
		appLog.Error("schedule import failed", err, "count", len(events))
		return err
	}
	appLog.Info("schedules imported", "count", len(events))
	return nil
}

// SyncFeeds fetches every configured department feed and replaces the
// stored events of each feed that succeeded. It returns the number of
// stored events and the per-feed errors.
func (s *Service) SyncFeeds(ctx context.Context, year int) (int, []error) {
	if s.fetcher == nil || len(s.feeds) == 0 {
		return 0, nil
	}
	w, ok := s.repo.(ScheduleWriter)
	if !ok {
		return 0, []error{apperrors.New(apperrors.CodePersistence, "repository cannot store schedules")}
	}

	results, errs := s.fetcher.FetchAll(ctx, s.feeds)
	total := 0
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			perr := apperrors.WrapWithMetadata(apperrors.CodeFetch, "parse department feed", map[string]string{"feed": res.Source.ID}, err)
			appLog.Error("feed parse failed", perr, "feed", res.Source.ID)
			errs = append(errs, perr)
			continue
		}
		events := ics.DepartmentEvents(res.Source, parsed, year)
		if err := w.ReplaceSourceSchedules(ctx, model.SourceFeedPrefix+res.Source.ID, events); err != nil {
			appLog.Error("feed store failed", err, "feed", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		total += len(events)
		appLog.Info("feed synced", "feed", res.Source.ID, "dept", res.Source.DeptID, "events", len(events), "from_cache", res.FromCache)
	}
	return total, errs
}
