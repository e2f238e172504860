package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/application"
	"telegram-gpt-bot/internal/config"
	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.Transport = (*RealBot)(nil)

const typingInterval = 5 * time.Second

// RealBot polls Telegram over long polling, classifies updates and fans them
// out to the dispatcher. It also implements the outbound transport port.
type RealBot struct {
	bot     *tgbotapi.BotAPI
	cfg     *config.BotConfig
	disp    *application.Dispatcher
	log     zerolog.Logger
	workers int

	// keyboards cache the last sent markup per chat/message so EditButtons
	// can re-render it with the pressed button marked.
	mu        sync.Mutex
	keyboards map[string]tgbotapi.InlineKeyboardMarkup

	cancelPolling context.CancelFunc
}

func NewRealBot(cfg *config.BotConfig, logger *zerolog.Logger) (*RealBot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &RealBot{
		bot:       bot,
		cfg:       cfg,
		log:       logger.With().Str("component", "telegram").Logger(),
		workers:   workers,
		keyboards: map[string]tgbotapi.InlineKeyboardMarkup{},
	}, nil
}

// SetDispatcher wires the update handler. The dispatcher needs the transport
// at construction time, so the bot is built first and wired after.
func (b *RealBot) SetDispatcher(d *application.Dispatcher) { b.disp = d }

func (b *RealBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	queue := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-queue:
					b.handleUpdate(ctx, up)
				}
			}
		}(i)
	}

	b.log.Info().Int("workers", b.workers).Str("username", b.bot.Self.UserName).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			queue <- up
		}
	}
}

func (b *RealBot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

func (b *RealBot) handleUpdate(ctx context.Context, up tgbotapi.Update) {
	upd, ok := b.classify(up)
	if !ok {
		return
	}
	b.disp.Dispatch(ctx, upd)
}

// classify maps a raw Telegram update to the dispatcher's shape. Exactly one
// of Command, CallbackData or Text ends up set.
func (b *RealBot) classify(up tgbotapi.Update) (application.Update, bool) {
	if q := up.CallbackQuery; q != nil {
		// Ack the spinner right away; the reply comes through SendMessage.
		_, _ = b.bot.Request(tgbotapi.NewCallback(q.ID, ""))

		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return application.Update{}, false
		}
		chatID := q.Message.Chat.ID
		if markup := q.Message.ReplyMarkup; markup != nil {
			b.rememberKeyboard(chatID, q.Message.MessageID, *markup)
		}
		return application.Update{
			ChatID:       chatID,
			SenderName:   q.From.UserName,
			CallbackData: q.Data,
			MessageID:    q.Message.MessageID,
		}, true
	}

	msg := up.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return application.Update{}, false
	}
	upd := application.Update{
		ChatID:     msg.Chat.ID,
		SenderName: msg.From.UserName,
		MessageID:  msg.MessageID,
	}
	if cmd := msg.Command(); cmd != "" {
		upd.Command = cmd
		return upd, true
	}
	if msg.Text == "" {
		return application.Update{}, false
	}
	upd.Text = msg.Text
	return upd, true
}

func (b *RealBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := b.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *RealBot) SendPrompt(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = buildKeyboard(rows)
	_, err := b.bot.Send(msg)
	return err
}

// SendTyping re-issues the chat action until the stop function is called.
// Telegram drops the indicator after a few seconds on its own, so one shot is
// not enough for long model calls.
func (b *RealBot) SendTyping(ctx context.Context, chatID int64) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			_, _ = b.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// EditButtons re-renders a previously sent keyboard with the pressed button
// marked. Unknown messages are a no-op; the cache only spans this process.
func (b *RealBot) EditButtons(ctx context.Context, chatID int64, messageID int, pressed string) error {
	markup, ok := b.takeKeyboard(chatID, messageID)
	if !ok {
		return nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(markup.InlineKeyboard))
	for _, row := range markup.InlineKeyboard {
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == pressed {
				btn.Text = "✅ " + btn.Text
			}
			out = append(out, btn)
		}
		rows = append(rows, out)
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.NewInlineKeyboardMarkup(rows...))
	_, err := b.bot.Request(edit)
	return err
}

func (b *RealBot) rememberKeyboard(chatID int64, messageID int, markup tgbotapi.InlineKeyboardMarkup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keyboards[keyboardKey(chatID, messageID)] = markup
}

func (b *RealBot) takeKeyboard(chatID int64, messageID int) (tgbotapi.InlineKeyboardMarkup, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := keyboardKey(chatID, messageID)
	markup, ok := b.keyboards[key]
	if ok {
		delete(b.keyboards, key)
	}
	return markup, ok
}

func keyboardKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

func buildKeyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := btn.Text
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}
