// Package memory provides an in-process store implementation. It backs
// local development without a MongoDB instance and the service-level
// tests. Semantics mirror the MongoDB implementation, including
// first-writer-wins status transitions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tradepost/deal-service/internal/core/docdb"
	"github.com/tradepost/deal-service/internal/domain/models"
)

// Client implements the docdb.Client interface in memory.
type Client struct {
	leases   *LeaseStore
	sessions *SessionStore
}

// NewClient creates an empty in-memory store.
func NewClient() *Client {
	return &Client{
		leases:   &LeaseStore{leases: make(map[string]*models.Lease)},
		sessions: &SessionStore{
			sessions: make(map[string]*models.ChatSession),
			byKey:    make(map[string]string),
			messages: make(map[string][]*models.ChatMessage),
		},
	}
}

// Leases returns the lease store.
func (c *Client) Leases() docdb.LeaseStore { return c.leases }

// Sessions returns the session store.
func (c *Client) Sessions() docdb.SessionStore { return c.sessions }

// EnsureIndexes is a no-op; uniqueness is enforced inline.
func (c *Client) EnsureIndexes(ctx context.Context) error { return nil }

// Ping always succeeds.
func (c *Client) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (c *Client) Close(ctx context.Context) error { return nil }

// LeaseStore implements docdb.LeaseStore in memory.
type LeaseStore struct {
	mu     sync.RWMutex
	leases map[string]*models.Lease
}

// Insert stores a new ACTIVE lease, enforcing at most one ACTIVE lease
// per product under the store lock.
func (s *LeaseStore) Insert(ctx context.Context, lease *models.Lease) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.leases {
		if l.ProductID == lease.ProductID && l.Status == models.LeaseStatusActive {
			return &docdb.ActiveLeaseError{ExistingID: l.ID}
		}
	}

	cp := *lease
	s.leases[lease.ID] = &cp
	return nil
}

// Get retrieves a lease by id.
func (s *LeaseStore) Get(ctx context.Context, id string) (*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leases[id]
	if !ok {
		return nil, docdb.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// ActiveForProduct returns the ACTIVE lease for a product, or nil.
func (s *LeaseStore) ActiveForProduct(ctx context.Context, productID string) (*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.leases {
		if l.ProductID == productID && l.Status == models.LeaseStatusActive {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

// ListByHolder returns all leases held by a principal, newest first.
func (s *LeaseStore) ListByHolder(ctx context.Context, holderID string) ([]*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Lease
	for _, l := range s.leases {
		if l.HolderID == holderID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// TransitionStatus atomically moves a lease between statuses.
func (s *LeaseStore) TransitionStatus(ctx context.Context, id string, from, to models.LeaseStatus, at time.Time) (*models.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[id]
	if !ok || l.Status != from {
		return nil, docdb.ErrNoTransition
	}
	l.Status = to
	l.UpdatedAt = at.UTC()
	cp := *l
	return &cp, nil
}

// ListDue returns ACTIVE leases whose expiry has passed.
func (s *LeaseStore) ListDue(ctx context.Context, now time.Time) ([]*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Lease
	for _, l := range s.leases {
		if l.Status == models.LeaseStatusActive && !now.Before(l.ExpiresAt) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// SessionStore implements docdb.SessionStore in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
	byKey    map[string]string
	messages map[string][]*models.ChatMessage
}

// Insert stores a new session, enforcing participant-key uniqueness.
func (s *SessionStore) Insert(ctx context.Context, session *models.ChatSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[session.ParticipantKey]; ok {
		return docdb.ErrDuplicateKey
	}

	cp := copySession(session)
	s.sessions[session.ID] = cp
	s.byKey[session.ParticipantKey] = session.ID
	return nil
}

// Get retrieves a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, docdb.ErrNotFound
	}
	return copySession(sess), nil
}

// GetByKey retrieves a session by its canonical participant key.
func (s *SessionStore) GetByKey(ctx context.Context, participantKey string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[participantKey]
	if !ok {
		return nil, docdb.ErrNotFound
	}
	return copySession(s.sessions[id]), nil
}

// ListByParticipant returns the principal's sessions, most recently
// active first.
func (s *SessionStore) ListByParticipant(ctx context.Context, userID string) ([]*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ChatSession
	for _, sess := range s.sessions {
		if sess.HasParticipant(userID) {
			out = append(out, copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// AppendMessage assigns the next sequence number, inserts the message,
// and updates the summary and unread counter under one lock.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID string, msg *models.ChatMessage) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, docdb.ErrNotFound
	}

	sess.Seq++
	if sess.Unread == nil {
		sess.Unread = make(map[string]int)
	}
	sess.Unread[msg.ReceiverID]++
	sess.LastMessage = msg.Body
	sess.LastMessageAt = msg.CreatedAt
	sess.UpdatedAt = msg.CreatedAt

	msg.Seq = sess.Seq
	cp := *msg
	s.messages[sessionID] = append(s.messages[sessionID], &cp)

	return copySession(sess), nil
}

// Messages returns the session's log in ascending sequence order.
func (s *SessionStore) Messages(ctx context.Context, sessionID string, limit int64) ([]*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[sessionID]
	out := make([]*models.ChatMessage, 0, len(log))
	for _, m := range log {
		cp := *m
		out = append(out, &cp)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

// MarkRead zeroes the reader's unread counter and flags their unread
// messages as read.
func (s *SessionStore) MarkRead(ctx context.Context, sessionID, readerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return docdb.ErrNotFound
	}
	if sess.Unread == nil {
		sess.Unread = make(map[string]int)
	}
	sess.Unread[readerID] = 0
	sess.UpdatedAt = at.UTC()

	for _, m := range s.messages[sessionID] {
		if m.ReceiverID == readerID {
			m.Read = true
		}
	}
	return nil
}

// MarkDelivered flips a message's delivered flag.
func (s *SessionStore) MarkDelivered(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, log := range s.messages {
		for _, m := range log {
			if m.ID == messageID {
				m.Delivered = true
				return nil
			}
		}
	}
	return nil
}

// ListDueExpiry returns sessions past retention not yet marked expired.
func (s *SessionStore) ListDueExpiry(ctx context.Context, now time.Time) ([]*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ChatSession
	for _, sess := range s.sessions {
		if !sess.Expired && !now.Before(sess.ExpiresAt) {
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

// MarkExpired flags a session as past retention.
func (s *SessionStore) MarkExpired(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Expired {
		return false, nil
	}
	sess.Expired = true
	return true, nil
}

func copySession(s *models.ChatSession) *models.ChatSession {
	cp := *s
	cp.Participants = append([]string(nil), s.Participants...)
	cp.Unread = make(map[string]int, len(s.Unread))
	for k, v := range s.Unread {
		cp.Unread[k] = v
	}
	return &cp
}
