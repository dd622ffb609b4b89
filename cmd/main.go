package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oracle/internal/adapters/config"
	"oracle/internal/adapters/errors/noop"
	"oracle/internal/adapters/errors/sentry"
	"oracle/internal/adapters/kafka"
	"oracle/internal/adapters/postgres"
	"oracle/internal/adapters/redis"
	"oracle/internal/agents"
	"oracle/internal/api"
	"oracle/internal/delivery"
	"oracle/internal/domain/report"
	"oracle/internal/providers"
	"oracle/internal/repository/memory"
	pgrepo "oracle/internal/repository/postgres"
	"oracle/internal/runlock"
	"oracle/internal/scheduler"
	"oracle/internal/services/research"
	"oracle/internal/synthesis"
	"oracle/internal/trace"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

func main() {
	generateType := flag.String("generate", "", "one-shot mode: generate this report type and exit (premarket|postmarket|weekly)")
	generateDate := flag.String("date", "", "report date for one-shot mode, YYYY-MM-DD (default: today in the schedule timezone)")
	force := flag.Bool("force", false, "regenerate even if a complete report exists")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	app, err := buildApp(cfg, errorTracker)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	if *generateType != "" {
		os.Exit(runOnce(app, cfg, *generateType, *generateDate, *force))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		if err := app.Scheduler.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	} else {
		log.Info("Scheduler disabled by config")
	}

	go func() {
		if err := app.Server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, app, errorTracker, log)
}

// app bundles every long-lived component with its owned connections
type app struct {
	Store     report.Repository
	Research  *research.Service
	Scheduler *scheduler.Scheduler
	Server    *api.Server

	pg         *postgres.Client
	rd         *redis.Client
	producer   *kafka.Producer
	recorder   trace.Recorder
	chRecorder *trace.ClickHouseRecorder
	log        *logger.Logger
}

// buildApp wires the full dependency graph from config
func buildApp(cfg *config.Config, tracker errors.Tracker) (*app, error) {
	log := logger.Get()
	a := &app{log: log}

	// Optional infrastructure: each falls back cleanly when unconfigured.
	if cfg.Redis.Enabled() {
		rd, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		a.rd = rd
		log.Info("Redis connected, provider cache and distributed run lock enabled")
	}

	if cfg.Postgres.Enabled() {
		pg, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres")
		}
		a.pg = pg
		a.Store = pgrepo.NewReportRepository(pg.DB())
		log.Info("Postgres report store enabled")
	} else {
		a.Store = memory.NewReportRepository()
		log.Warn("Postgres not configured, using in-memory report store")
	}

	recorders := []trace.Recorder{trace.NewZapRecorder()}
	if cfg.ClickHouse.Enabled() {
		ch, err := trace.NewClickHouseRecorder(cfg.ClickHouse)
		if err != nil {
			return nil, errors.Wrap(err, "connect clickhouse")
		}
		a.chRecorder = ch
		recorders = append(recorders, ch)
		log.Info("ClickHouse trace sink enabled")
	}
	a.recorder = trace.NewMulti(recorders...)

	set := providers.NewSet(cfg.Providers, a.rd)
	if cfg.Pipeline.MaxConcurrentAgents <= 0 {
		cfg.Pipeline.MaxConcurrentAgents = set.Count()
	}

	registry, err := agents.BuildRegistry(set, cfg.Pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "build agent graphs")
	}

	synth, err := synthesis.NewOpenAI(cfg.AI)
	if err != nil {
		return nil, errors.Wrap(err, "init synthesis")
	}

	pipeline := agents.NewPipeline(registry, synth, a.Store, a.recorder, tracker, cfg.Pipeline)

	fanout, err := buildDelivery(cfg, a)
	if err != nil {
		return nil, err
	}

	var lock runlock.Locker
	if a.rd != nil {
		lock = runlock.NewRedis(a.rd)
	} else {
		lock = runlock.NewLocal()
	}

	a.Research = research.NewService(pipeline, lock, cfg.Scheduler.RunLockTTL, fanout)

	a.Scheduler, err = scheduler.New(cfg.Scheduler, a.Research)
	if err != nil {
		return nil, errors.Wrap(err, "build scheduler")
	}

	a.Server = api.NewFromAppConfig(cfg, a.Store, a.Research, a.Scheduler)
	return a, nil
}

// buildDelivery assembles the notification channels
func buildDelivery(cfg *config.Config, a *app) (*delivery.Fanout, error) {
	var notifiers []delivery.Notifier

	fileWriter, err := delivery.NewFileWriter(cfg.Delivery.ReportsDir)
	if err != nil {
		return nil, err
	}
	notifiers = append(notifiers, fileWriter)

	if cfg.Kafka.Enabled() {
		a.producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		notifiers = append(notifiers, delivery.NewKafkaNotifier(a.producer))
		a.log.Info("Kafka report events enabled")
	}

	if cfg.Delivery.TelegramToken != "" && cfg.Delivery.TelegramChatID != 0 {
		tg, err := delivery.NewTelegramNotifier(cfg.Delivery.TelegramToken, cfg.Delivery.TelegramChatID)
		if err != nil {
			a.log.Warnf("Telegram notifier disabled: %v", err)
		} else {
			notifiers = append(notifiers, tg)
			a.log.Info("Telegram notifications enabled")
		}
	}

	return delivery.NewFanout(notifiers...), nil
}

// runOnce executes a single generation run and exits with a status code
func runOnce(a *app, cfg *config.Config, rawType, rawDate string, force bool) int {
	typ := report.Type(rawType)

	date := rawDate
	if date == "" {
		loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
		if err != nil {
			a.log.Errorf("Invalid schedule timezone: %v", err)
			return 1
		}
		date = report.DateOf(time.Now().In(loc))
	} else if _, err := time.Parse(report.DateFormat, date); err != nil {
		a.log.Errorf("Invalid date %q, want YYYY-MM-DD", date)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.Deadline+cfg.Pipeline.SynthesisTimeout)
	defer cancel()

	rec, err := a.Research.Generate(ctx, typ, date, force)
	if err != nil {
		a.log.Errorf("Generation failed: %v", err)
		return 1
	}

	fmt.Printf("Report %s %s complete (attempt %d)\n", rec.Type, rec.Date, rec.Attempt)
	return 0
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// Close releases connections in reverse dependency order
func (a *app) Close() {
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.chRecorder != nil {
		_ = a.chRecorder.Close()
	}
	if a.rd != nil {
		_ = a.rd.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
}

// waitForShutdown blocks until a signal arrives, then stops components in order
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, a *app, tracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}
	if err := a.Scheduler.Stop(); err != nil && !errors.Is(err, errors.ErrInternal) {
		log.Warnf("Scheduler stop: %v", err)
	}

	cancel()

	if err := a.recorder.Flush(shutdownCtx); err != nil {
		log.Warnf("Trace flush: %v", err)
	}
	if err := tracker.Flush(shutdownCtx); err != nil {
		log.Warnf("Error tracker flush: %v", err)
	}

	log.Info("Shutdown complete")
}
