// Package session persists per-conversation chat history. A session is just
// an ordered, append-only list of messages with an expiry; there is no other
// lifecycle.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/mhrezaei/newsrag/models"
)

// Store is the narrow interface the chat handlers consume.
type Store interface {
	Append(ctx context.Context, sessionID string, msg models.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	Clear(ctx context.Context, sessionID string) error
}

// NewSessionID mints an id for a fresh conversation.
func NewSessionID() string {
	return uuid.NewString()
}
