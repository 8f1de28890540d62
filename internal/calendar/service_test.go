package calendar

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/eventmodel"
	"schoolcal/internal/holiday"
	"schoolcal/internal/ics"
	"schoolcal/internal/model"
	"schoolcal/internal/schedule"
)

type noLunar struct{}

func (noLunar) ToSolar(int, int, int) (time.Time, error) {
	return time.Time{}, errors.New("no lunar table")
}

// memRepo is an in-memory Repository without transactional replace.
type memRepo struct {
	mu        sync.Mutex
	settings  map[int]model.Settings
	depts     []model.Department
	rows      map[int][]model.BasicScheduleRow
	schedules []model.DepartmentEvent
	insertErr error
	listErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{settings: map[int]model.Settings{}, rows: map[int][]model.BasicScheduleRow{}}
}

func (r *memRepo) GetSettings(_ context.Context, year int) (model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.settings[year]
	if !ok {
		return model.Settings{}, apperrors.New(apperrors.CodeNotFound, "settings not found")
	}
	return st, nil
}

func (r *memRepo) ListDepartments(_ context.Context, year int) ([]model.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Department
	for _, d := range r.depts {
		if d.AcademicYear == year {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) ListBasicRows(_ context.Context, year int) ([]model.BasicScheduleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]model.BasicScheduleRow(nil), r.rows[year]...), nil
}

func (r *memRepo) ListSchedules(_ context.Context, from, to time.Time) ([]model.DepartmentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DepartmentEvent
	for _, ev := range r.schedules {
		if !ev.StartDate.After(to) && !ev.EndDate.Before(from) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteBasicRows(_ context.Context, year int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, year)
	return nil
}

func (r *memRepo) InsertBasicRows(_ context.Context, rows []model.BasicScheduleRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, row := range rows {
		r.rows[row.AcademicYear] = append(r.rows[row.AcademicYear], row)
	}
	return nil
}

func (r *memRepo) SaveSchedules(_ context.Context, events []model.DepartmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules = append(r.schedules, events...)
	return nil
}

func (r *memRepo) ReplaceSourceSchedules(_ context.Context, source string, events []model.DepartmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.schedules[:0]
	for _, ev := range r.schedules {
		if ev.Source != source {
			kept = append(kept, ev)
		}
	}
	for _, ev := range events {
		ev.Source = source
		kept = append(kept, ev)
	}
	r.schedules = kept
	return nil
}

// txRepo adds an atomic replace.
type txRepo struct {
	*memRepo
	replaced int
}

func (r *txRepo) ReplaceBasicRows(_ context.Context, year int, rows []model.BasicScheduleRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced++
	r.rows[year] = append([]model.BasicScheduleRow(nil), rows...)
	return nil
}

func newService(repo Repository, opts ...Option) *Service {
	return NewService(repo, holiday.NewEngine(noLunar{}), opts...)
}

func TestOpenEmptyStoreDerivesAnchors(t *testing.T) {
	svc := newService(newMemRepo())

	g, err := svc.Open(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := model.Key(g.Anchor(schedule.Semester1Start).Value); got != "2025-03-04" {
		t.Fatalf("semester1 start = %s", got)
	}
	if got := model.Key(g.Anchor(schedule.WinterVacationEnd).Value); got != "2026-02-28" {
		t.Fatalf("winter end = %s", got)
	}
}

func TestSaveThenOpenKeepsEdits(t *testing.T) {
	repo := &txRepo{memRepo: newMemRepo()}
	svc := newService(repo)
	ctx := context.Background()

	g, err := svc.Open(ctx, 2025)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := g.Set(schedule.SummerVacationStart, model.MustDate("2025-07-21")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := g.Set(schedule.SummerVacationEnd, model.MustDate("2025-08-17")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := g.Set(schedule.Semester2Start, model.MustDate("2025-08-19")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := svc.Save(ctx, g); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if repo.replaced != 1 {
		t.Fatalf("replaced = %d, want 1", repo.replaced)
	}

	reopened, err := svc.Open(ctx, 2025)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for _, a := range g.Anchors() {
		if !reopened.Anchor(a.Code).Value.Equal(a.Value) {
			t.Fatalf("%s = %s, want %s", a.Code, model.Key(reopened.Anchor(a.Code).Value), model.Key(a.Value))
		}
	}
	if !reopened.Anchor(schedule.Semester2Start).IsManual {
		t.Fatal("edited semester2 start must reload as manual")
	}
}

func TestPersistStoresDerivedYear(t *testing.T) {
	repo := &txRepo{memRepo: newMemRepo()}
	svc := newService(repo)

	n, err := svc.Persist(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if n == 0 || len(repo.rows[2025]) != n {
		t.Fatalf("stored %d rows, reported %d", len(repo.rows[2025]), n)
	}
	var sem1 string
	for _, r := range repo.rows[2025] {
		if r.Code == string(schedule.Semester1Start) {
			sem1 = model.Key(r.StartDate)
		}
	}
	if sem1 != "2025-03-04" {
		t.Fatalf("semester1 start row = %q", sem1)
	}

	// 다시 저장해도 자동 필드는 수동으로 바뀌지 않는다.
	if _, err := svc.Persist(context.Background(), 2025); err != nil {
		t.Fatalf("second Persist: %v", err)
	}
	g, err := svc.Open(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, a := range g.Anchors() {
		if a.IsManual {
			t.Fatalf("%s became manual after persisting derived values", a.Code)
		}
	}
}

func TestSaveReportsPartialReplace(t *testing.T) {
	repo := newMemRepo()
	repo.rows[2025] = []model.BasicScheduleRow{{AcademicYear: 2025, Type: model.RowEvent, Name: "old", StartDate: model.MustDate("2025-04-01"), EndDate: model.MustDate("2025-04-01")}}
	driverErr := errors.New("disk full")
	repo.insertErr = driverErr
	svc := newService(repo)

	g, err := svc.Open(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = svc.Save(context.Background(), g)
	if !errors.Is(err, apperrors.ErrPartialReplace) {
		t.Fatalf("expected partial replace, got %v", err)
	}
	if !errors.Is(err, driverErr) {
		t.Fatal("cause must be preserved")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Metadata["year"] != "2025" {
		t.Fatalf("metadata = %+v", appErr)
	}
}

func TestLoadYear(t *testing.T) {
	repo := newMemRepo()
	repo.depts = []model.Department{
		{ID: "dept-1", Name: "교무부", IsActive: true, AcademicYear: 2025},
		{ID: "dept-2", Name: "폐지된 부서", IsActive: false, AcademicYear: 2025},
		{ID: "dept-3", Name: "다음 해", IsActive: true, AcademicYear: 2026},
	}
	repo.schedules = []model.DepartmentEvent{
		{ID: "a", Title: "in", StartDate: model.MustDate("2025-06-01"), EndDate: model.MustDate("2025-06-01")},
		{ID: "b", Title: "out", StartDate: model.MustDate("2025-02-01"), EndDate: model.MustDate("2025-02-01")},
	}
	svc := newService(repo)

	data, err := svc.LoadYear(context.Background(), 2025)
	if err != nil {
		t.Fatalf("LoadYear: %v", err)
	}
	if data.Settings.AcademicYear != 2025 {
		t.Fatalf("settings = %+v", data.Settings)
	}
	if len(data.Departments) != 1 || data.Departments[0].ID != "dept-1" {
		t.Fatalf("departments = %+v", data.Departments)
	}
	if len(data.Schedules) != 1 || data.Schedules[0].ID != "a" {
		t.Fatalf("schedules = %+v", data.Schedules)
	}

	repo.listErr = apperrors.Wrap(apperrors.CodePersistence, "list basic schedules", errors.New("locked"))
	if _, err := svc.LoadYear(context.Background(), 2025); !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestBuildDropsInactiveDepartmentEvents(t *testing.T) {
	repo := newMemRepo()
	repo.depts = append([]model.Department{
		{ID: "dept-a", Name: "교무부", IsActive: true, AcademicYear: 2025},
		{ID: "dept-b", Name: "폐지된 부서", IsActive: false, AcademicYear: 2025},
	}, model.SpecialDepartments(2025)...)
	day := model.MustDate("2025-04-10")
	repo.schedules = []model.DepartmentEvent{
		{ID: "1", Title: "교직원 회의", DeptID: "dept-a", StartDate: day, EndDate: day},
		{ID: "2", Title: "부서 워크숍", DeptID: "dept-b", StartDate: day, EndDate: day},
		{ID: "3", Title: "예산 설명회", DeptID: model.DeptAdminOffice, StartDate: day, EndDate: day},
		{ID: "4", Title: "외부 행사", DeptID: "dept-unknown", StartDate: day, EndDate: day},
	}
	svc := newService(repo)

	snap, err := svc.Build(context.Background(), 2025, eventmodel.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	buckets := snap.Model.Schedule["2025-04-10"]
	tests := []struct {
		bucket string
		want   int
	}{
		{"dept-a", 1},
		{"dept-b", 0},
		{model.DeptAdminOffice, 0},
		{model.DeptOther, 1},
	}
	for _, tc := range tests {
		t.Run(tc.bucket, func(t *testing.T) {
			if got := len(buckets[tc.bucket]); got != tc.want {
				t.Fatalf("%s events = %d, want %d (buckets=%v)", tc.bucket, got, tc.want, buckets)
			}
		})
	}
	if other := buckets[model.DeptOther]; len(other) != 1 || other[0].Label != "외부 행사" {
		t.Fatalf("other bucket = %+v, want unknown dept event only", other)
	}
}

func TestBuildOnEmptyStoreShowsHolidays(t *testing.T) {
	svc := newService(newMemRepo())

	snap, err := svc.Build(context.Background(), 2025, eventmodel.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !snap.Model.RedDays["2025-03-03"] {
		t.Fatal("substitute for 삼일절 must be red")
	}
	if got := snap.Model.Holidays["2025-03-03"]; len(got) != 1 || got[0] != holiday.SubstituteName("삼일절") {
		t.Fatalf("holidays = %v", got)
	}
	if len(snap.Days()) == 0 {
		t.Fatal("expected grouped days")
	}
}

func TestExport(t *testing.T) {
	svc := newService(newMemRepo())
	var buf bytes.Buffer
	if err := svc.Export(context.Background(), 2025, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), "삼일절") {
		t.Fatal("export must contain holidays")
	}
}

type fakeFetcher struct {
	body string
}

func (f fakeFetcher) FetchAll(_ context.Context, sources []ics.Source) ([]ics.FetchResult, []error) {
	var out []ics.FetchResult
	var errs []error
	for _, src := range sources {
		if src.URL == "" {
			errs = append(errs, apperrors.New(apperrors.CodeFetch, "fetch department feed"))
			continue
		}
		out = append(out, ics.FetchResult{Source: src, Body: []byte(f.body)})
	}
	return out, errs
}

const feedBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:1@t\r\nDTSTART;VALUE=DATE:20250410\r\nDTEND;VALUE=DATE:20250411\r\nSUMMARY:과학의 날 행사\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestSyncFeeds(t *testing.T) {
	repo := newMemRepo()
	repo.schedules = []model.DepartmentEvent{
		{ID: "stale", Title: "old", StartDate: model.MustDate("2025-04-01"), EndDate: model.MustDate("2025-04-01"), Source: "feed:sci"},
		{ID: "manual", Title: "keep", StartDate: model.MustDate("2025-04-02"), EndDate: model.MustDate("2025-04-02"), Source: model.SourceManual},
	}
	svc := newService(repo, WithFeeds(fakeFetcher{body: feedBody}, []ics.Source{
		{ID: "sci", DeptID: "dept-sci", URL: "https://example.com/sci.ics"},
		{ID: "broken", DeptID: "dept-x"},
	}))

	n, errs := svc.SyncFeeds(context.Background(), 2025)
	if n != 1 {
		t.Fatalf("synced = %d, want 1", n)
	}
	if len(errs) != 1 || !errors.Is(errs[0], apperrors.ErrFetch) {
		t.Fatalf("errs = %v", errs)
	}

	var ids []string
	for _, ev := range repo.schedules {
		ids = append(ids, ev.Source+"/"+ev.Title)
	}
	if len(repo.schedules) != 2 {
		t.Fatalf("schedules = %v", ids)
	}
	for _, ev := range repo.schedules {
		if ev.ID == "stale" {
			t.Fatal("stale feed event must be replaced")
		}
		if ev.Source == "feed:sci" && ev.DeptID != "dept-sci" {
			t.Fatalf("feed event dept = %s", ev.DeptID)
		}
	}
}
