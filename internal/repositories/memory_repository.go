package repositories

import (
	"context"
	"errors"

	"healthbridge/internal/models"
)

// ConversationStore persists per-user conversation logs. Implementations
// must make Append atomic per user: two concurrent appends for the same user
// may be ordered either way, but neither may be lost or partially interleaved.
type ConversationStore interface {
	// Append adds a message to the user's log and truncates the log to the
	// most recent models.MaxMessagesPerUser entries, dropping oldest first.
	Append(ctx context.Context, userID string, msg models.ConversationMessage) error

	// Messages returns the user's log in insertion order, optionally filtered
	// by conversation id. max <= 0 means no limit; otherwise the most recent
	// max entries are returned, still in insertion order.
	Messages(ctx context.Context, userID string, conversationID string, max int) ([]models.ConversationMessage, error)

	// UserCount returns the number of users with at least one stored message.
	UserCount(ctx context.Context) (int, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	Save(ctx context.Context, profile models.UserProfile) error
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Count(ctx context.Context) (int, error)
}

// ErrProfileNotFound is returned by ProfileStore.Get for unknown users.
var ErrProfileNotFound = errors.New("profile not found")
