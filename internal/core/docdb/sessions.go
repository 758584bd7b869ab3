package docdb

import (
	"context"
	"time"

	"github.com/tradepost/deal-service/internal/domain/models"
)

// SessionStore persists chat sessions and their message logs. A
// session exclusively owns its ordered log; no message outlives its
// session.
type SessionStore interface {
	// Insert stores a new session. Returns ErrDuplicateKey if a session
	// with the same participant key already exists.
	Insert(ctx context.Context, session *models.ChatSession) error

	// Get retrieves a session by id. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*models.ChatSession, error)

	// GetByKey retrieves a session by its canonical participant key.
	// Returns ErrNotFound if no such session exists.
	GetByKey(ctx context.Context, participantKey string) (*models.ChatSession, error)

	// ListByParticipant returns all sessions the principal belongs to,
	// most recently active first.
	ListByParticipant(ctx context.Context, userID string) ([]*models.ChatSession, error)

	// AppendMessage atomically assigns the next sequence number,
	// inserts the message, and updates the session's last-message
	// summary and the receiver's unread counter. A reader never
	// observes a summary referencing a message absent from the log, nor
	// the reverse. Returns the updated session.
	AppendMessage(ctx context.Context, sessionID string, msg *models.ChatMessage) (*models.ChatSession, error)

	// Messages returns the session's log in ascending sequence order.
	// A limit of zero means no limit.
	Messages(ctx context.Context, sessionID string, limit int64) ([]*models.ChatMessage, error)

	// MarkRead zeroes the reader's unread counter and flags unread
	// messages addressed to them as read. Idempotent.
	MarkRead(ctx context.Context, sessionID, readerID string, at time.Time) error

	// MarkDelivered flips a message's delivered flag. Monotonic;
	// flipping an already delivered message is a no-op.
	MarkDelivered(ctx context.Context, messageID string) error

	// ListDueExpiry returns sessions past their retention expiry that
	// have not yet been marked expired.
	ListDueExpiry(ctx context.Context, now time.Time) ([]*models.ChatSession, error)

	// MarkExpired flags a session as past retention. Returns false if
	// the session was already marked (another sweep won).
	MarkExpired(ctx context.Context, sessionID string) (bool, error)
}
