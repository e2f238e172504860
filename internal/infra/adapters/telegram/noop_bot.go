package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.Transport = (*NoopBot)(nil)

// NoopBot logs outbound traffic instead of calling Telegram. Used for local
// runs without a bot token.
type NoopBot struct {
	log zerolog.Logger
}

func NewNoopBot(logger *zerolog.Logger) *NoopBot {
	return &NoopBot{log: logger.With().Str("component", "noop-telegram").Logger()}
}

func (b *NoopBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("send")
	return nil
}

func (b *NoopBot) SendPrompt(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Int("rows", len(rows)).Msg("send prompt")
	return nil
}

func (b *NoopBot) SendTyping(ctx context.Context, chatID int64) (stop func()) {
	b.log.Debug().Int64("chat_id", chatID).Msg("typing")
	return func() {}
}

func (b *NoopBot) EditButtons(ctx context.Context, chatID int64, messageID int, pressed string) error {
	b.log.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Str("pressed", pressed).Msg("edit buttons")
	return nil
}
