// Package hub maintains live room membership per session and fans
// events out to connected participants. Delivery is best-effort and
// at-most-once: persistence always precedes fan-out, and a member that
// is not joined at publish time catches up through history, never
// through replay.
package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/domain/models"
)

// DefaultTypingWindow bounds how long a typing indicator survives
// without a stop signal or a message, so a disconnected peer cannot
// leave a stale "is typing" behind.
const DefaultTypingWindow = 6 * time.Second

// Subscriber is a live outbound channel to one connected participant.
// Send must not block; it reports false when the event was dropped.
type Subscriber interface {
	Send(event *models.Event) bool
}

// Hub tracks which principals are attached to which sessions and
// routes events to them.
type Hub struct {
	mu sync.RWMutex

	// rooms maps session id to the subscribers of currently joined
	// participants.
	rooms map[string]map[string]Subscriber

	// userRooms maps a principal to the sessions they are joined to.
	userRooms map[string]map[string]bool

	// productRooms maps a product id to the sessions negotiating it,
	// so lease transitions reach their live observers.
	productRooms map[string]map[string]bool

	// sessionProducts maps a session back to its product so an emptied
	// room can be pruned from productRooms.
	sessionProducts map[string]string

	// typing tracks the debounce timer per (session, user).
	typing map[string]*time.Timer

	typingWindow time.Duration
	presence     *Presence
	logger       zerolog.Logger
}

// Config holds the configuration for the hub.
type Config struct {
	TypingWindow time.Duration
	Presence     *Presence
}

// New creates an empty hub.
func New(cfg *Config) *Hub {
	window := DefaultTypingWindow
	var presence *Presence
	if cfg != nil {
		if cfg.TypingWindow > 0 {
			window = cfg.TypingWindow
		}
		presence = cfg.Presence
	}
	return &Hub{
		rooms:           make(map[string]map[string]Subscriber),
		userRooms:       make(map[string]map[string]bool),
		productRooms:    make(map[string]map[string]bool),
		sessionProducts: make(map[string]string),
		typing:          make(map[string]*time.Timer),
		typingWindow:    window,
		presence:        presence,
		logger:          log.With().Str("component", "hub").Logger(),
	}
}

// Join attaches a subscriber to a session's room. The caller is
// responsible for having verified participation. Joining again
// replaces the previous subscriber (reconnect). The first room a
// principal joins flips them online.
func (h *Hub) Join(sessionID, userID, productID string, sub Subscriber) {
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]Subscriber)
		h.rooms[sessionID] = room
	}
	room[userID] = sub

	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[string]bool)
	}
	wasOffline := len(h.userRooms[userID]) == 0
	h.userRooms[userID][sessionID] = true

	if productID != "" {
		if h.productRooms[productID] == nil {
			h.productRooms[productID] = make(map[string]bool)
		}
		h.productRooms[productID][sessionID] = true
		h.sessionProducts[sessionID] = productID
	}
	h.mu.Unlock()

	h.logger.Debug().Str("session_id", sessionID).Str("user_id", userID).Msg("joined room")

	if wasOffline {
		h.PublishPresence(userID, true)
	}
}

// Leave detaches a principal from a session's room. Safe to call
// redundantly; it is the only cancellation primitive for a join.
// Leaving the last room flips the principal offline.
func (h *Hub) Leave(sessionID, userID string) {
	h.mu.Lock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
			// Prune the emptied room from its product's set so the
			// maps don't grow for the lifetime of the process.
			if productID, ok := h.sessionProducts[sessionID]; ok {
				delete(h.productRooms[productID], sessionID)
				if len(h.productRooms[productID]) == 0 {
					delete(h.productRooms, productID)
				}
				delete(h.sessionProducts, sessionID)
			}
		}
	}
	nowOffline := false
	if rooms, ok := h.userRooms[userID]; ok {
		delete(rooms, sessionID)
		if len(rooms) == 0 {
			delete(h.userRooms, userID)
			nowOffline = true
		}
	}
	h.stopTypingTimerLocked(sessionID, userID)
	h.mu.Unlock()

	h.logger.Debug().Str("session_id", sessionID).Str("user_id", userID).Msg("left room")

	// The membership maps no longer know the principal, so the offline
	// transition is fanned out to the room they just departed.
	if nowOffline {
		if h.presence != nil {
			h.presence.Record(userID, false)
		}
		online := false
		h.fanOut(sessionID, &models.Event{
			Type:      models.EventPresenceChanged,
			SessionID: sessionID,
			UserID:    userID,
			Online:    &online,
			At:        time.Now().UTC(),
		}, userID)
	}
}

// IsJoined reports whether a principal is currently attached to a
// session's room.
func (h *Hub) IsJoined(sessionID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return false
	}
	_, joined := room[userID]
	return joined
}

// Emit routes a committed transition's event to its live observers.
// Implements the managers' EventSink. Fan-out failure is invisible to
// the emitting transition; the store stays authoritative.
func (h *Hub) Emit(event *models.Event) {
	switch event.Type {
	case models.EventMessageReceived:
		// A message supersedes any pending typing indicator.
		h.mu.Lock()
		h.stopTypingTimerLocked(event.SessionID, event.UserID)
		h.mu.Unlock()
		h.fanOut(event.SessionID, event, event.UserID)
	case models.EventReadReceipt:
		h.fanOut(event.SessionID, event, event.UserID)
	case models.EventSessionExpired:
		h.fanOut(event.SessionID, event, "")
	case models.EventLeaseCreated, models.EventLeaseCancelled, models.EventLeaseExpired:
		h.fanOutProduct(event.ProductID, event)
	default:
		h.fanOut(event.SessionID, event, event.UserID)
	}
}

// PublishTyping broadcasts a typing-start signal and arms the debounce
// timer. Repeated signals re-arm it.
func (h *Hub) PublishTyping(sessionID, userID string) {
	h.mu.Lock()
	h.stopTypingTimerLocked(sessionID, userID)
	key := typingKey(sessionID, userID)
	h.typing[key] = time.AfterFunc(h.typingWindow, func() {
		h.mu.Lock()
		delete(h.typing, key)
		h.mu.Unlock()
		h.fanOut(sessionID, &models.Event{
			Type:      models.EventTypingStop,
			SessionID: sessionID,
			UserID:    userID,
			At:        time.Now().UTC(),
		}, userID)
	})
	h.mu.Unlock()

	h.fanOut(sessionID, &models.Event{
		Type:      models.EventTypingStart,
		SessionID: sessionID,
		UserID:    userID,
		At:        time.Now().UTC(),
	}, userID)
}

// PublishStopTyping broadcasts a typing-stop signal and disarms the
// debounce timer.
func (h *Hub) PublishStopTyping(sessionID, userID string) {
	h.mu.Lock()
	h.stopTypingTimerLocked(sessionID, userID)
	h.mu.Unlock()

	h.fanOut(sessionID, &models.Event{
		Type:      models.EventTypingStop,
		SessionID: sessionID,
		UserID:    userID,
		At:        time.Now().UTC(),
	}, userID)
}

// PublishPresence broadcasts an online/offline transition to every
// room the principal currently belongs to and records it in the
// presence registry.
func (h *Hub) PublishPresence(userID string, online bool) {
	if h.presence != nil {
		h.presence.Record(userID, online)
	}

	h.mu.RLock()
	sessionIDs := make([]string, 0, len(h.userRooms[userID]))
	for sessionID := range h.userRooms[userID] {
		sessionIDs = append(sessionIDs, sessionID)
	}
	h.mu.RUnlock()

	event := &models.Event{
		Type:   models.EventPresenceChanged,
		UserID: userID,
		Online: &online,
		At:     time.Now().UTC(),
	}
	for _, sessionID := range sessionIDs {
		scoped := *event
		scoped.SessionID = sessionID
		h.fanOut(sessionID, &scoped, userID)
	}
}

// fanOut delivers an event to every joined member of a session except
// the origin. Sends never block; a slow consumer just misses the event
// and recovers through history.
func (h *Hub) fanOut(sessionID string, event *models.Event, exceptUserID string) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.rooms[sessionID]))
	for userID, sub := range h.rooms[sessionID] {
		if userID == exceptUserID {
			continue
		}
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.Send(event) {
			h.logger.Warn().
				Str("session_id", sessionID).
				Str("event_type", string(event.Type)).
				Msg("dropped event for slow subscriber")
		}
	}
}

// fanOutProduct delivers a lease event to every room negotiating the
// product.
func (h *Hub) fanOutProduct(productID string, event *models.Event) {
	h.mu.RLock()
	sessionIDs := make([]string, 0, len(h.productRooms[productID]))
	for sessionID := range h.productRooms[productID] {
		sessionIDs = append(sessionIDs, sessionID)
	}
	h.mu.RUnlock()

	for _, sessionID := range sessionIDs {
		scoped := *event
		scoped.SessionID = sessionID
		h.fanOut(sessionID, &scoped, "")
	}
}

// stopTypingTimerLocked disarms a pending typing debounce. Caller holds
// the hub lock.
func (h *Hub) stopTypingTimerLocked(sessionID, userID string) {
	key := typingKey(sessionID, userID)
	if timer, ok := h.typing[key]; ok {
		timer.Stop()
		delete(h.typing, key)
	}
}

func typingKey(sessionID, userID string) string {
	return sessionID + ":" + userID
}
