package chatbot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coldwatch/coldwatch/internal/store"
	"github.com/coldwatch/coldwatch/internal/types"
)

// Commands understood by the bot.
const (
	CommandStart  = "/start"
	CommandLatest = "Get temperature"
)

// Fixed replies.
const (
	ReplyInvalid   = "Invalid command, please enter a command again"
	ReplyNoReading = "No readings yet"
)

// LatestReader is the last-reading slot the bot answers from.
type LatestReader interface {
	Latest(ctx context.Context) (types.Reading, error)
}

// Reply is the answer to one incoming message. Text is HTML.
type Reply struct {
	Text     string
	Keyboard bool
}

// Responder maps a user's message to a reply. It only ever reads.
type Responder struct {
	latest LatestReader
	label  string
	logger zerolog.Logger
}

// NewResponder creates a responder reporting readings for label
func NewResponder(latest LatestReader, label string, logger zerolog.Logger) *Responder {
	return &Responder{
		latest: latest,
		label:  label,
		logger: logger.With().Str("component", "chatbot").Logger(),
	}
}

// Respond answers text sent by the user called name
func (r *Responder) Respond(ctx context.Context, text, name string) Reply {
	text = strings.TrimSpace(text)

	switch {
	case text == CommandStart || strings.HasPrefix(text, CommandStart+" ") || strings.HasPrefix(text, CommandStart+"@"):
		return Reply{
			Text:     fmt.Sprintf("Hello, <b>%s</b>! Enter a command.", html.EscapeString(name)),
			Keyboard: true,
		}
	case text == CommandLatest:
		return Reply{Text: r.latestReply(ctx)}
	default:
		return Reply{Text: ReplyInvalid}
	}
}

func (r *Responder) latestReply(ctx context.Context) string {
	reading, err := r.latest.Latest(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoReading) {
			r.logger.Error().Err(err).Msg("Can not get data from the last reading")
		}
		return ReplyNoReading
	}

	return fmt.Sprintf("%s %s\nTemperature of %s:\n<b>%s</b> °C",
		reading.Date(),
		reading.Clock(),
		html.EscapeString(r.label),
		reading.FormattedValue(),
	)
}
