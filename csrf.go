package pathpal

import (
	"context"
	"time"

	"github.com/pathpal/pathpal/internal"
	"github.com/pathpal/pathpal/internal/kv"
)

// CSRFRecord binds an issued anti-forgery token to a session principal.
type CSRFRecord struct {
	UserID   int64
	IssuedAt time.Time
}

// CSRFStore persists issued tokens keyed by token value. Implementations
// may keep entries a little past the validity window; the guard checks
// IssuedAt itself and evicts what it finds expired.
type CSRFStore interface {
	Put(ctx context.Context, token string, rec CSRFRecord) error
	Get(ctx context.Context, token string) (CSRFRecord, bool, error)
	Delete(ctx context.Context, token string) error
	Close()
}

// CSRFGuard issues and validates per-session anti-forgery tokens.
//
// A validated token is deliberately not consumed: multi-step flows (an OTP
// submission following the call that started it) share one token for the
// validity window. This trades single-use strictness for replay-within-
// window, and is a conscious policy, not an oversight.
type CSRFGuard struct {
	store    CSRFStore
	validity time.Duration
	now      func() time.Time
}

// NewCSRFGuard creates a guard over store with the given validity window.
func NewCSRFGuard(store CSRFStore, validity time.Duration) *CSRFGuard {
	return &CSRFGuard{store: store, validity: validity, now: time.Now}
}

// Issue generates a 256-bit random token bound to userID and stores it.
func (g *CSRFGuard) Issue(ctx context.Context, userID int64) (string, error) {
	token, err := internal.NewCSRFToken()
	if err != nil {
		return "", err
	}
	if err := g.store.Put(ctx, token, CSRFRecord{UserID: userID, IssuedAt: g.now()}); err != nil {
		return "", err
	}
	return token, nil
}

// Check validates token for the session principal userID. An empty token is
// ErrCSRFMissing; unknown tokens and tokens bound to another user are
// ErrCSRFInvalid; tokens past the validity window are evicted and reported
// as ErrCSRFExpired. A passing token stays valid.
func (g *CSRFGuard) Check(ctx context.Context, userID int64, token string) error {
	if token == "" {
		return ErrCSRFMissing
	}

	rec, ok, err := g.store.Get(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCSRFInvalid
	}
	if g.now().Sub(rec.IssuedAt) > g.validity {
		_ = g.store.Delete(ctx, token)
		return ErrCSRFExpired
	}
	if rec.UserID != userID {
		return ErrCSRFInvalid
	}
	return nil
}

// MemoryCSRFStore keeps tokens in-process. Physical retention runs at twice
// the validity window so the guard can still distinguish "expired" from
// "never issued"; the sweeper bounds memory behind that.
type MemoryCSRFStore struct {
	entries *kv.Store[CSRFRecord]
}

// NewMemoryCSRFStore creates an in-process token store for the given
// validity window and starts its sweeper.
func NewMemoryCSRFStore(validity time.Duration) *MemoryCSRFStore {
	s := &MemoryCSRFStore{entries: kv.NewStore[CSRFRecord](2 * validity)}
	s.entries.StartSweeper(validity)
	return s
}

func (s *MemoryCSRFStore) Put(_ context.Context, token string, rec CSRFRecord) error {
	s.entries.Put(token, rec)
	return nil
}

func (s *MemoryCSRFStore) Get(_ context.Context, token string) (CSRFRecord, bool, error) {
	rec, ok := s.entries.Get(token)
	return rec, ok, nil
}

func (s *MemoryCSRFStore) Delete(_ context.Context, token string) error {
	s.entries.Delete(token)
	return nil
}

func (s *MemoryCSRFStore) Close() {
	s.entries.Close()
}
