package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Transport is the chat-transport port. The flow engine owns the grammar of
// button Data payloads; the transport only echoes them back on press.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPrompt(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error

	// SendTyping starts re-issuing a typing indicator on a fixed interval and
	// returns a stop function. Stopping is unconditional and idempotent.
	SendTyping(ctx context.Context, chatID int64) (stop func())

	// EditButtons marks the pressed button on an already-sent keyboard.
	EditButtons(ctx context.Context, chatID int64, messageID int, pressed string) error
}
