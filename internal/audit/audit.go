// Package audit records who unlocked the wallet, changed its keychain or
// asked it to sign, and keeps the trail in a Store.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/better-wallet/seedless/internal/logger"
	"github.com/better-wallet/seedless/internal/middleware"
	apperrors "github.com/better-wallet/seedless/pkg/errors"
	"github.com/better-wallet/seedless/pkg/types"
)

// Store persists audit events. storage.AuditRepository implements it for
// Postgres, MemoryStore for the in-memory secure store.
type Store interface {
	Create(ctx context.Context, event *types.AuditEvent) error
	Recent(ctx context.Context, q types.AuditQuery) ([]*types.AuditEvent, error)
}

// Event describes one audited operation
type Event struct {
	Action       string
	ResourceType string
	ResourceID   string
	TxHash       string
	Metadata     map[string]any
}

// Recorder stamps events with the wallet and request context and writes
// them to a Store. A nil *Recorder discards everything.
type Recorder struct {
	store    Store
	walletID string
}

// NewRecorder creates a recorder for walletID
func NewRecorder(store Store, walletID string) *Recorder {
	return &Recorder{store: store, walletID: walletID}
}

// Record writes ev with the outcome of err. A failed write is logged and
// never fails the audited operation.
func (r *Recorder) Record(ctx context.Context, ev Event, err error) {
	if r == nil {
		return
	}

	event := &types.AuditEvent{
		WalletID:     r.walletID,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		Outcome:      types.AuditOutcomeSuccess,
		Metadata:     ev.Metadata,
		ClientIP:     middleware.GetClientIP(ctx),
		UserAgent:    middleware.GetUserAgent(ctx),
	}
	if event.ResourceType == "" {
		event.ResourceType = "wallet"
		event.ResourceID = r.walletID
	}
	if ev.TxHash != "" {
		event.TxHash = &ev.TxHash
	}
	if id := logger.GetRequestID(ctx); id != "" {
		event.RequestID = &id
	}
	if err != nil {
		event.Outcome = types.AuditOutcomeFailure
		code := apperrors.ErrCodeInternalError
		if appErr, ok := apperrors.IsAppError(err); ok {
			code = appErr.Code
		}
		event.ErrorCode = &code
	}

	if werr := r.store.Create(ctx, event); werr != nil {
		logger.Error(ctx, "failed to write audit event", "action", ev.Action, "error", werr)
	}
}

// Recent returns the wallet's newest events first
func (r *Recorder) Recent(ctx context.Context, action string, limit int) ([]*types.AuditEvent, error) {
	if r == nil {
		return nil, errors.New("audit trail is disabled")
	}
	return r.store.Recent(ctx, types.AuditQuery{WalletID: r.walletID, Action: action, Limit: limit})
}

// MemoryStore keeps the newest events in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	events []*types.AuditEvent
	nextID int64
	max    int
}

// NewMemoryStore creates a store that keeps at most max events
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{max: max}
}

// Create appends a copy of event, dropping the oldest beyond the cap
func (s *MemoryStore) Create(ctx context.Context, event *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID
	event.CreatedAt = time.Now().UTC()

	stored := *event
	s.events = append(s.events, &stored)
	if s.max > 0 && len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
	return nil
}

// Recent returns matching events, newest first
func (s *MemoryStore) Recent(ctx context.Context, q types.AuditQuery) ([]*types.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if q.WalletID != "" && e.WalletID != q.WalletID {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
