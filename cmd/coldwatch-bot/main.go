package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coldwatch/coldwatch/internal/chatbot"
	"github.com/coldwatch/coldwatch/internal/config"
	"github.com/coldwatch/coldwatch/internal/logging"
	"github.com/coldwatch/coldwatch/internal/store"
	"github.com/coldwatch/coldwatch/internal/version"
)

const pollTimeout = 60 * time.Second

func main() {
	configPath := flag.String("config", "/etc/coldwatch/coldwatch.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	flag.Parse()

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "coldwatch-bot:", err)
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
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required for the chat bot")
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger = logger.With().Str("version", version.Version).Logger()

	// Long polling holds the request open for pollTimeout.
	httpClient := &http.Client{Timeout: pollTimeout + 10*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, cfg.Telegram.APIURL+"/bot%s/%s", httpClient)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	logger.Info().
		Str("bot", api.Self.UserName).
		Str("last_reading_path", cfg.Storage.LastReadingPath).
		Msg("Authorized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responder := chatbot.NewResponder(store.NewLastFile(cfg.Storage.LastReadingPath), cfg.Alert.Label, logger)
	return chatbot.NewBot(api, responder, pollTimeout, logger).Run(ctx)
}
