package repository

import (
	"context"

	"telegram-gpt-bot/internal/domain/model"
)

// MessageRepository owns the stored conversation history. "Oldest" is defined
// by the minimum message ID; persistence assigns IDs in insertion order.
type MessageRepository interface {
	Create(ctx context.Context, contextID int64, role model.Role, content string) (*model.Message, error)
	ListByContext(ctx context.Context, contextID int64) ([]*model.Message, error)
	CountByContext(ctx context.Context, contextID int64) (int, error)

	// PruneOldest deletes the single minimum-ID message of the context.
	// Deleting from an empty context is a no-op.
	PruneOldest(ctx context.Context, contextID int64) error

	// ClearByChat removes every stored message for the chat's context.
	ClearByChat(ctx context.Context, chatID int64) error
}
