package chatbot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Client is the subset of *tgbotapi.BotAPI the update loop uses.
type Client interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

// Bot long-polls for updates and answers each message
type Bot struct {
	client      Client
	responder   *Responder
	pollTimeout time.Duration
	logger      zerolog.Logger
}

// NewBot creates the update loop
func NewBot(client Client, responder *Responder, pollTimeout time.Duration, logger zerolog.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 60 * time.Second
	}
	return &Bot{
		client:      client,
		responder:   responder,
		pollTimeout: pollTimeout,
		logger:      logger.With().Str("component", "chatbot").Logger(),
	}
}

// Keyboard is the reply keyboard shown after /start
func Keyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(CommandStart),
			tgbotapi.NewKeyboardButton(CommandLatest),
		),
	)
}

// Run answers messages until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)

	updates := b.client.GetUpdatesChan(u)
	defer b.client.StopReceivingUpdates()

	b.logger.Info().Msg("Bot started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot exit")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	name := ""
	if msg.From != nil {
		name = fullName(msg.From)
	}

	reply := b.responder.Respond(ctx, msg.Text, name)

	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	out.ParseMode = tgbotapi.ModeHTML
	if reply.Keyboard {
		out.ReplyMarkup = Keyboard()
	}

	if _, err := b.client.Send(out); err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", msg.Chat.ID).
			Msg("Failed to send reply")
	}
}

func fullName(u *tgbotapi.User) string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
