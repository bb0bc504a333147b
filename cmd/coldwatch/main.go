package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coldwatch/coldwatch/internal/alerter"
	"github.com/coldwatch/coldwatch/internal/api"
	"github.com/coldwatch/coldwatch/internal/broker"
	"github.com/coldwatch/coldwatch/internal/config"
	"github.com/coldwatch/coldwatch/internal/evaluator"
	"github.com/coldwatch/coldwatch/internal/ingest"
	"github.com/coldwatch/coldwatch/internal/logbuffer"
	"github.com/coldwatch/coldwatch/internal/logging"
	"github.com/coldwatch/coldwatch/internal/notifier"
	"github.com/coldwatch/coldwatch/internal/store"
	"github.com/coldwatch/coldwatch/internal/version"
)

// recordStore is a record backend that can also list recent readings
type recordStore interface {
	store.RecordAppender
	api.RecentReader
}

func main() {
	configPath := flag.String("config", "/etc/coldwatch/coldwatch.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "coldwatch:", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	// Keep the last 1000 log lines for /api/logs
	logBuffer := logbuffer.New(1000)

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}, logBuffer)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger = logger.With().Str("version", version.Version).Logger()
	logger.Info().
		Str("broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)).
		Str("topic", cfg.Broker.Topic).
		Float64("threshold", cfg.ThresholdValue()).
		Msg("Starting coldwatch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, closeRecords, err := openRecords(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	last := store.NewLastFile(cfg.Storage.LastReadingPath)
	readings := &store.Store{Records: records, Last: last}

	var sink alerter.Notifier
	if cfg.Telegram.Token != "" {
		sink = notifier.NewTelegram(notifier.TelegramConfig{
			APIURL:  cfg.Telegram.APIURL,
			Token:   cfg.Telegram.Token,
			ChatID:  cfg.Telegram.ChatID,
			Timeout: cfg.Ingest.SinkTimeout,
		}, logger)
	} else {
		logger.Warn().Msg("Telegram token not set, alerts will only be logged")
		sink = notifier.NewLog(logger)
	}

	engine := alerter.NewEngine(
		evaluator.NewEvaluator(cfg.ThresholdValue()),
		sink,
		cfg.Alert.Label,
		cfg.Ingest.SinkTimeout,
		logger,
	)

	pipeline := ingest.NewPipeline(readings, engine, cfg.Ingest.SinkTimeout, logger)

	dialer := broker.NewDialer(broker.Config{
		Host:           cfg.Broker.Host,
		Port:           cfg.Broker.Port,
		TLS:            cfg.Broker.TLS,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		Topic:          cfg.Broker.Topic,
		KeepAlive:      cfg.Broker.KeepAlive,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
	}, logger)

	session := ingest.NewSession(dialer, pipeline, ingest.Options{
		PollInterval:  cfg.Ingest.PollInterval,
		RetryInterval: cfg.Ingest.RetryInterval,
		StaleTimeout:  cfg.Ingest.StaleTimeout,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Run(gctx)
	})

	if cfg.API.Listen != "off" {
		server := api.NewServer(session, engine, logger, cfg.API.Listen)
		server.SetReadings(last, records)
		server.SetLogBuffer(logBuffer)
		server.SetAlertInfo(cfg.ThresholdValue(), cfg.Alert.Label)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info().Msg("Shutdown complete")
	return err
}

// openRecords connects to PostgreSQL when a DSN is configured and falls
// back to an in-memory buffer otherwise.
func openRecords(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (recordStore, func(), error) {
	if cfg.Storage.DatabaseURL == "" {
		logger.Info().
			Int("capacity", cfg.Storage.MemoryCapacity).
			Msg("No database configured, keeping readings in memory")
		return store.NewMemoryRecords(cfg.Storage.MemoryCapacity), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	records := store.NewPostgresRecords(pool)
	if err := records.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info().Msg("Recording readings to PostgreSQL")
	return records, pool.Close, nil
}
