package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"schoolcal/internal/calendar"
	"schoolcal/internal/config"
	"schoolcal/internal/holiday"
	"schoolcal/internal/ics"
	"schoolcal/internal/importer"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
	"schoolcal/internal/store/sqlite"
	"schoolcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	year       int
	once       bool
	save       bool
	exportPath string
	importPath string
	importDept string
	debug      bool
}

func main() {
	appLog.Info("schoolcal starting", "version", "0.1.0")

	flags := parseFlags()

	// .env 는 선택 사항이다. 없으면 환경변수만 사용한다.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			appLog.Warn("failed to load .env", "err", err.Error())
		}
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.year != 0 {
		conf.AcademicYear = flags.year
	}
	if flags.exportPath != "" {
		conf.ExportPath = flags.exportPath
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	year := conf.AcademicYear
	if year == 0 {
		year = model.AcademicYearOf(time.Now())
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"database", conf.DatabasePath,
		"year", year,
		"refresh", conf.RefreshCron,
		"feeds", len(conf.Feeds),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags, year); err != nil {
		appLog.Error("schoolcal failed", err)
		os.Exit(1)
	}
	appLog.Info("schoolcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, year int) error {
	if err := os.MkdirAll(filepath.Dir(conf.DatabasePath), 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := sqlite.Open(conf.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSpecialDepartments(ctx, year); err != nil {
		return err
	}

	svc := calendar.NewService(store, holiday.NewEngine(nil),
		calendar.WithObservances(conf.ObservanceList()),
		calendar.WithFeeds(ics.NewFetcher(conf.CacheDir, nil), feedSources(conf.Feeds)),
	)

	if flags.importPath != "" {
		return runImport(ctx, svc, flags)
	}
	if flags.save {
		n, err := svc.Persist(ctx, year)
		if err != nil {
			return err
		}
		appLog.Info("basic schedule stored", "year", year, "rows", n)
		if !flags.once {
			return nil
		}
	}
	if flags.once {
		return runOnce(ctx, svc, conf, year)
	}
	return serve(ctx, svc, conf, year)
}

func feedSources(feeds []config.FeedConfig) []ics.Source {
	out := make([]ics.Source, 0, len(feeds))
	for _, f := range feeds {
		if f.URL == "" {
			continue
		}
		out = append(out, ics.Source{ID: f.ID, DeptID: f.DeptID, URL: f.URL})
	}
	return out
}

func runImport(ctx context.Context, svc *calendar.Service, flags flagConfig) error {
	rows, err := importer.ReadFile(flags.importPath)
	if err != nil {
		return err
	}
	dept := flags.importDept
	if dept == "" {
		dept = model.DeptOther
	}
	events, err := importer.Parse(rows, importer.Options{DefaultDept: dept})
	if err != nil {
		return err
	}
	return svc.ImportSchedules(ctx, events)
}

// runOnce prints the holiday set, syncs feeds once and writes the export.
func runOnce(ctx context.Context, svc *calendar.Service, conf *config.Config, year int) error {
	for _, e := range svc.Holidays(year).Entries() {
		fmt.Printf("%s\t%s\n", model.Key(e.Date), strings.Join(e.Names, ", "))
	}
	refresh(ctx, svc, conf, year)
	return nil
}

// refresh syncs department feeds and rewrites the ICS export file.
func refresh(ctx context.Context, svc *calendar.Service, conf *config.Config, year int) {
	n, errs := svc.SyncFeeds(ctx, year)
	if len(errs) > 0 {
		appLog.Error("feed sync: one or more feeds failed", errors.Join(errs...), "error_count", len(errs))
	}
	appLog.Info("feed sync done", "year", year, "events", n)

	if conf.ExportPath == "" {
		return
	}
	if err := writeExport(ctx, svc, conf.ExportPath, year); err != nil {
		appLog.Error("ics export failed", err, "path", conf.ExportPath)
		return
	}
	appLog.Info("ics export written", "path", conf.ExportPath, "year", year)
}

// writeExport writes to a temp file and renames it so readers never see a
// partial calendar.
func writeExport(ctx context.Context, svc *calendar.Service, path string, year int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".schoolcal-export-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := svc.Export(ctx, year, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func serve(ctx context.Context, svc *calendar.Service, conf *config.Config, year int) error {
	srv := web.NewServer(conf, svc)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 4*time.Minute)
		defer cancel()
		refresh(jobCtx, svc, conf, year)
		srv.Invalidate()
	}); err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	// 시작 시 한 번 동기화한다.
	go func() {
		refresh(ctx, svc, conf, year)
		srv.Invalidate()
	}()

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.IntVar(&cfg.year, "year", 0, "Academic year (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print holidays, sync feeds, write the ICS export and exit")
	flag.BoolVar(&cfg.save, "save", false, "Derive and store the basic schedule of the year, then exit (combine with -once to also export)")
	flag.StringVar(&cfg.exportPath, "export", "", "ICS export path (overrides config if set)")
	flag.StringVar(&cfg.importPath, "import", "", "Import department schedules from an .xlsx or .csv file and exit")
	flag.StringVar(&cfg.importDept, "dept", "", "Department id for imported rows without a department column")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
