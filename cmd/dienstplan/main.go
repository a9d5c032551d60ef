package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/FailDerErste/dienstplan-app/internal/api"
	"github.com/FailDerErste/dienstplan-app/internal/backup"
	"github.com/FailDerErste/dienstplan-app/internal/config"
	"github.com/FailDerErste/dienstplan-app/internal/events"
	"github.com/FailDerErste/dienstplan-app/internal/export"
	"github.com/FailDerErste/dienstplan-app/internal/google"
	"github.com/FailDerErste/dienstplan-app/internal/metrics"
	"github.com/FailDerErste/dienstplan-app/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("DIENSTPLAN_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	bus := events.NewBus()
	bus.Subscribe("", func(ev events.Event) {
		logger.Debug().
			Str("type", ev.Type).
			Str("date", ev.Date).
			Str("service_id", ev.ServiceID).
			Msg("schedule event")
	})

	st := store.New(db, bus, &logger)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	st.Load(loadCtx)
	cancelLoad()

	// Config default applies only until the user saves a preference.
	if !hasStoredPreference(db) {
		st.SetIs24h(cfg.Schedule.DefaultTimeFormat == "24")
	}

	// Startup validation report: informational, never blocking.
	if issues := st.ValidateAll(); len(issues) > 0 {
		for _, issue := range issues {
			logger.Warn().Str("issue", issue).Msg("schedule validation")
		}
	} else {
		logger.Info().Msg("schedule validation clean")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inserter export.CalendarInserter
	if cfg.Google.Enabled {
		exporter, err := google.NewCalendarExporter(ctx, google.Config{
			CredentialsFile:  cfg.Google.CredentialsFile,
			TokenFile:        cfg.Google.TokenFile,
			CalendarID:       cfg.Google.CalendarID,
			Zone:             cfg.Export.Timezone,
			Location:         cfg.Location(),
			DefaultStart:     cfg.Export.DefaultStart,
			DefaultEnd:       cfg.Export.DefaultEnd,
			InsertsPerSecond: cfg.Google.InsertsPerSecond,
		}, &logger)
		if err != nil {
			logger.Warn().Err(err).Msg("native calendar export unavailable")
		} else {
			inserter = exporter
		}
	}

	runner := export.NewRunner(export.Options{
		ProdID:    cfg.Export.ProdID,
		OutputDir: cfg.Export.OutputDir,
		Location:  cfg.Location(),
	}, inserter, bus, &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backupSvc := backup.NewService(cfg.Database.Path, backup.Config{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		Path:          cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backupSvc.Start(ctx)

	srv := api.NewServer(cfg.Server.Port, st, runner, &logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("API server error")
			stop()
		}
	}()

	logger.Info().Msg("dienstplan started")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}
	st.Wait()
	logger.Info().Msg("dienstplan stopped")
}

func hasStoredPreference(db *store.DB) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	format, err := db.LoadTimeFormat(ctx)
	return err == nil && format != ""
}

func startHealthServer(ctx context.Context, port int, db *store.DB, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "db unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("health server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
