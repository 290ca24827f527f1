package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"bundy/internal/bundy/identity"
	"bundy/internal/bundy/policy"
	"bundy/internal/bundy/service"
	sqlitestore "bundy/internal/bundy/store/sqlite"
	"bundy/internal/config"
	"bundy/internal/db"
	"bundy/internal/httpapi"
)

func main() {
	cfg := config.FromEnv()

	logger := logrus.New()
	if cfg.Env == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			logger.WithError(err).Fatal("seed dev data")
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	templateStore := sqlitestore.NewTemplateStore(conn, writer)
	attendanceStore := sqlitestore.NewAttendanceStore(conn, writer)

	// Policy
	source := policy.NewHTTPSource(cfg.PolicyURL, cfg.PolicyFetchTimeout)
	policyCache := policy.NewCache(source, cfg.PolicyTTL, logger)

	// Identity
	resolver := identity.NewResolver(templateStore, identity.ExactMatcher{}, logger)
	if err := resolver.Reload(ctx); err != nil {
		// Start anyway: an empty index reports every capture as
		// not-registered until a reload succeeds.
		logger.WithError(err).Warn("initial template load failed")
	}

	refresher := identity.NewRefresher(resolver, identity.RefresherConfig{
		IntervalMinutes: cfg.TemplateRefreshMinutes,
	}, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	// Orchestration
	ledger := service.NewLedger(attendanceStore)
	notifier := service.NewLogNotifier(logger)
	attendanceSvc := service.NewAttendanceService(resolver, policyCache, ledger, notifier, logger)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:          logger,
		Addr:            cfg.HTTPAddr,
		Attendance:      attendanceSvc,
		Policy:          policyCache,
		Templates:       resolver,
		AttendanceStore: attendanceStore,
	})

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.Start(); err != nil {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
