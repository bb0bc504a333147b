package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrUndelivered is returned when the Bot API refuses or fails a send
	ErrUndelivered = errors.New("notification not delivered")
	// ErrSuspended is returned while the circuit breaker is open
	ErrSuspended = errors.New("notifications suspended after repeated failures")
)

// TelegramConfig holds the settings for the Bot API sink
type TelegramConfig struct {
	APIURL  string
	Token   string
	ChatID  int64
	Timeout time.Duration
}

// Telegram delivers alerts as chat messages through the Bot API
// sendMessage method. Each Deliver is a single attempt.
type Telegram struct {
	cfg     TelegramConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

// NewTelegram creates a Bot API sink
func NewTelegram(cfg TelegramConfig, logger zerolog.Logger) *Telegram {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	logger = logger.With().Str("component", "notifier").Logger()

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Telegram{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
		logger:  logger,
	}
}

// apiResponse is the envelope every Bot API method returns
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Deliver sends message to the configured chat
func (t *Telegram) Deliver(ctx context.Context, message string) error {
	_, err := t.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, t.send(ctx, message)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrSuspended, err)
	}
	if err != nil {
		return err
	}

	t.logger.Info().
		Int64("chat_id", t.cfg.ChatID).
		Msg("Notification sent")
	return nil
}

func (t *Telegram) send(ctx context.Context, message string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(t.cfg.ChatID, 10))
	form.Set("text", message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIURL, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the bot token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: %v", ErrUndelivered, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUndelivered, err)
	}

	var parsed apiResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrUndelivered, resp.StatusCode, parsed.Description)
	}
	if !parsed.OK {
		return fmt.Errorf("%w: %s", ErrUndelivered, parsed.Description)
	}
	return nil
}

// Log is the sink used when no chat is configured; alerts only reach the log
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log-only sink
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notifier").Logger()}
}

// Deliver writes message to the log
func (l *Log) Deliver(_ context.Context, message string) error {
	l.logger.Warn().
		Str("message", message).
		Msg("Would send notification (telegram not configured)")
	return nil
}
