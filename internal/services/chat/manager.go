// Package chat implements the conversation session manager. Sessions
// are ephemeral two-party channels with a fixed retention window;
// within the window the manager is the single source of truth for
// message ordering.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/core/docdb"
	domainerrors "github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/domain/models"
	"github.com/tradepost/deal-service/internal/pkg/clock"
	"github.com/tradepost/deal-service/internal/services/marketplace"
)

// DefaultStoreTimeout bounds a single store operation.
const DefaultStoreTimeout = 5 * time.Second

// MaxMessageLength caps a single message body.
const MaxMessageLength = 4000

// EventSink receives the event emitted by each committed transition.
type EventSink interface {
	Emit(event *models.Event)
}

// Roster answers whether a principal is currently joined to a session's
// room. Used to mark live-delivered messages; fan-out itself stays the
// hub's job and never gates persistence.
type Roster interface {
	IsJoined(sessionID, userID string) bool
}

// PresenceChecker answers whether a principal is currently online and
// when they were last active.
type PresenceChecker interface {
	Online(ctx context.Context, userID string) bool
	LastSeen(ctx context.Context, userID string) (time.Time, bool)
}

// SessionSummary is a session annotated for listing: days until
// retention expiry, the caller's unread counter and the peer's
// presence.
type SessionSummary struct {
	*models.ChatSession
	DaysRemaining int        `json:"daysRemaining"`
	UnreadCount   int        `json:"unreadCount"`
	PeerOnline    bool       `json:"peerOnline"`
	PeerLastSeen  *time.Time `json:"peerLastSeen,omitempty"`
}

// Manager defines the conversation session operations.
type Manager interface {
	// CreateOrGet returns the session for the unordered participant
	// pair plus optional product, creating it on first contact. The
	// boolean reports whether this call created it.
	CreateOrGet(ctx context.Context, initiatorID, counterpartyID, productID string) (*models.ChatSession, bool, error)

	// Get returns a session the requester participates in.
	Get(ctx context.Context, sessionID, requesterID string) (*models.ChatSession, error)

	// List returns the caller's sessions with listing annotations.
	List(ctx context.Context, userID string) ([]*SessionSummary, error)

	// PostMessage appends a message to a session's log.
	PostMessage(ctx context.Context, sessionID, senderID, body string) (*models.ChatMessage, error)

	// Messages returns the ordered log. History stays retrievable after
	// the retention window; only appends are refused.
	Messages(ctx context.Context, sessionID, requesterID string, limit int64) ([]*models.ChatMessage, error)

	// MarkRead zeroes the reader's unread counter. Idempotent.
	MarkRead(ctx context.Context, sessionID, readerID string) error

	// ExpireDue marks sessions past retention and returns how many
	// transitions committed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// manager implements the Manager interface.
type manager struct {
	store        docdb.SessionStore
	catalog      marketplace.Client
	clk          clock.Clock
	events       EventSink
	roster       Roster
	presence     PresenceChecker
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// Config holds the configuration for the session manager.
type Config struct {
	Store        docdb.SessionStore
	Catalog      marketplace.Client
	Clock        clock.Clock
	Events       EventSink
	Roster       Roster
	Presence     PresenceChecker
	StoreTimeout time.Duration
}

// NewManager creates a new session manager.
func NewManager(cfg *Config) (Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.Events == nil {
		return nil, errors.New("event sink is required")
	}

	timeout := cfg.StoreTimeout
	if timeout == 0 {
		timeout = DefaultStoreTimeout
	}

	return &manager{
		store:        cfg.Store,
		catalog:      cfg.Catalog,
		clk:          cfg.Clock,
		events:       cfg.Events,
		roster:       cfg.Roster,
		presence:     cfg.Presence,
		storeTimeout: timeout,
		logger:       log.With().Str("component", "session-manager").Logger(),
	}, nil
}

// CreateOrGet looks up or creates the session for the canonical
// participant key. Concurrent first-contact requests race on the
// unique key; the loser re-reads the winner's session.
func (m *manager) CreateOrGet(ctx context.Context, initiatorID, counterpartyID, productID string) (*models.ChatSession, bool, error) {
	if initiatorID == counterpartyID {
		return nil, false, domainerrors.NewValidationError("cannot open a session with yourself", initiatorID)
	}

	title := ""
	if productID != "" && m.catalog != nil {
		product, err := m.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, false, err
		}
		title = product.Title
	}

	key := models.ParticipantKey(initiatorID, counterpartyID, productID)

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	existing, err := m.store.GetByKey(opCtx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, docdb.ErrNotFound) {
		return nil, false, m.storeError("get session", err)
	}

	session := models.NewChatSession(initiatorID, counterpartyID, productID, title, m.clk.Now())

	if err := m.store.Insert(opCtx, session); err != nil {
		if errors.Is(err, docdb.ErrDuplicateKey) {
			winner, getErr := m.store.GetByKey(opCtx, key)
			if getErr != nil {
				return nil, false, m.storeError("get session", getErr)
			}
			return winner, false, nil
		}
		return nil, false, m.storeError("create session", err)
	}

	m.logger.Info().
		Str("session_id", session.ID).
		Str("initiator_id", initiatorID).
		Str("counterparty_id", counterpartyID).
		Str("product_id", productID).
		Msg("session created")

	return session, true, nil
}

// Get returns a session the requester participates in. Unknown ids are
// NotFound; sessions past retention are Gone so clients can render
// "expired" instead of "doesn't exist".
func (m *manager) Get(ctx context.Context, sessionID, requesterID string) (*models.ChatSession, error) {
	session, err := m.authorizedSession(ctx, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	if session.IsPastRetention(m.clk.Now()) {
		return nil, domainerrors.NewGoneError("session", sessionID)
	}

	return session, nil
}

// List returns the caller's sessions annotated with days-remaining,
// the caller's unread counter and peer presence. Expired sessions are
// included (read-only, zero days remaining) until the reaper removes
// them.
func (m *manager) List(ctx context.Context, userID string) ([]*SessionSummary, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	sessions, err := m.store.ListByParticipant(opCtx, userID)
	if err != nil {
		return nil, m.storeError("list sessions", err)
	}

	now := m.clk.Now()
	summaries := make([]*SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summary := &SessionSummary{
			ChatSession:   session,
			DaysRemaining: session.DaysRemaining(now),
			UnreadCount:   session.UnreadFor(userID),
		}
		if m.presence != nil {
			peer := session.Peer(userID)
			summary.PeerOnline = m.presence.Online(ctx, peer)
			if at, ok := m.presence.LastSeen(ctx, peer); ok {
				summary.PeerLastSeen = &at
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// PostMessage appends a message to the session's log. The store commits
// the message, the session summary and the receiver's unread counter
// atomically; the live fan-out happens after and its failure never
// fails the post.
func (m *manager) PostMessage(ctx context.Context, sessionID, senderID, body string) (*models.ChatMessage, error) {
	if body == "" {
		return nil, domainerrors.NewValidationError("message body must not be empty", "")
	}
	if len(body) > MaxMessageLength {
		return nil, domainerrors.NewValidationError("message body too long", "")
	}

	session, err := m.authorizedSession(ctx, sessionID, senderID)
	if err != nil {
		return nil, err
	}

	now := m.clk.Now()
	if session.IsPastRetention(now) {
		return nil, domainerrors.NewGoneError("session", sessionID)
	}

	msg := models.NewChatMessage(sessionID, senderID, session.Peer(senderID), body, now)

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if _, err := m.store.AppendMessage(opCtx, sessionID, msg); err != nil {
		if errors.Is(err, docdb.ErrNotFound) {
			return nil, domainerrors.NewNotFoundError("session", sessionID)
		}
		return nil, m.storeError("post message", err)
	}

	// The receiver is live right now, so the fan-out below reaches
	// them; everyone else catches up through history.
	if m.roster != nil && m.roster.IsJoined(sessionID, msg.ReceiverID) {
		if err := m.store.MarkDelivered(opCtx, msg.ID); err != nil {
			m.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to mark message delivered")
		} else {
			msg.Delivered = true
		}
	}

	m.events.Emit(&models.Event{
		Type:      models.EventMessageReceived,
		SessionID: sessionID,
		UserID:    senderID,
		Message:   msg,
		At:        now,
	})

	return msg, nil
}

// Messages returns the ordered log. Allowed on expired sessions: the
// retention window refuses appends, not reads.
func (m *manager) Messages(ctx context.Context, sessionID, requesterID string, limit int64) ([]*models.ChatMessage, error) {
	if _, err := m.authorizedSession(ctx, sessionID, requesterID); err != nil {
		return nil, err
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	messages, err := m.store.Messages(opCtx, sessionID, limit)
	if err != nil {
		return nil, m.storeError("list messages", err)
	}
	return messages, nil
}

// MarkRead zeroes the reader's unread counter, flags their unread
// messages read, and emits a read receipt. Safe to call repeatedly.
func (m *manager) MarkRead(ctx context.Context, sessionID, readerID string) error {
	if _, err := m.authorizedSession(ctx, sessionID, readerID); err != nil {
		return err
	}

	now := m.clk.Now()

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if err := m.store.MarkRead(opCtx, sessionID, readerID, now); err != nil {
		if errors.Is(err, docdb.ErrNotFound) {
			return domainerrors.NewNotFoundError("session", sessionID)
		}
		return m.storeError("mark read", err)
	}

	m.events.Emit(&models.Event{
		Type:      models.EventReadReceipt,
		SessionID: sessionID,
		UserID:    readerID,
		At:        now,
	})

	return nil
}

// ExpireDue marks sessions past retention and emits session-expired
// for each committed transition. Read-only enforcement never depends
// on this running; Gone is derived from the clock on every access.
func (m *manager) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	due, err := m.store.ListDueExpiry(opCtx, now)
	if err != nil {
		return 0, m.storeError("list due sessions", err)
	}

	expired := 0
	for _, session := range due {
		committed, err := m.store.MarkExpired(opCtx, session.ID)
		if err != nil {
			m.logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to mark session expired")
			continue
		}
		if !committed {
			continue
		}
		expired++

		m.logger.Info().Str("session_id", session.ID).Msg("session passed retention window")

		m.events.Emit(&models.Event{
			Type:      models.EventSessionExpired,
			SessionID: session.ID,
			At:        now,
		})
	}

	return expired, nil
}

// authorizedSession loads a session and verifies the requester is one
// of its two participants.
func (m *manager) authorizedSession(ctx context.Context, sessionID, requesterID string) (*models.ChatSession, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	session, err := m.store.Get(opCtx, sessionID)
	if err != nil {
		if errors.Is(err, docdb.ErrNotFound) {
			return nil, domainerrors.NewNotFoundError("session", sessionID)
		}
		return nil, m.storeError("get session", err)
	}

	if !session.HasParticipant(requesterID) {
		return nil, domainerrors.NewForbiddenError("not a session participant")
	}

	return session, nil
}

// opContext bounds a store operation with the configured timeout.
func (m *manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.storeTimeout)
}

// storeError maps a failed store call to the taxonomy.
func (m *manager) storeError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.NewTimeoutError(operation)
	}
	return domainerrors.NewInternalError("session store failure", err)
}
