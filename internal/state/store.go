package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("conversation not found")

// Store is the checkpoint store. One record per conversation, keyed by
// conversation id; the engine saves after every processed turn and the saved
// snapshot always reflects that turn's final state.
type Store interface {
	Save(ctx context.Context, c *Conversation) error
	Load(ctx context.Context, conversationID string) (*Conversation, error)
	// ListExpired returns ids of conversations whose inactivity TTL elapsed
	// before now and which are not yet closed.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}

// NewStore picks the Postgres store when a database URL is configured and
// falls back to the in-process store otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
