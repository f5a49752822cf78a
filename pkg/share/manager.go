// Package share implements the share-link subsystem: minting, validating,
// consuming, revoking, and garbage-collecting temporary download links.
//
// A share link grants time- and count-limited, optionally PIN-protected,
// unauthenticated access to a single file. The Manager holds the business
// rules; persistence is delegated to a store.Store implementation (BadgerDB
// in production, in-memory for tests).
package share

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"go.uber.org/zap"

	store "github.com/marmos91/sharegate/pkg/store/share"
)

// DefaultRetention is how long expired links are kept around before
// PurgeExpired removes them. Keeping them briefly preserves an audit trail
// of what was shared.
const DefaultRetention = 7 * 24 * time.Hour

// ValidationStatus classifies the outcome of validating a token.
//
// The statuses are deliberately distinct: callers must be able to render
// "PIN required" and "wrong PIN" differently from "this link is gone"
// without ever revealing whether a token existed versus expired.
type ValidationStatus int

const (
	// StatusInactive means the token is unknown, expired, revoked, or has
	// exhausted its download limit. All four collapse into one status on
	// purpose so the response leaks nothing about token existence.
	StatusInactive ValidationStatus = iota

	// StatusRequiresPIN means the link is live but PIN-protected and no
	// PIN was supplied.
	StatusRequiresPIN

	// StatusInvalidPIN means a PIN was supplied and did not match.
	StatusInvalidPIN

	// StatusActive means the link is live and the PIN check (if any)
	// passed.
	StatusActive
)

// String returns the status name for logging.
func (s ValidationStatus) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusRequiresPIN:
		return "requires_pin"
	case StatusInvalidPIN:
		return "invalid_pin"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// Validation is the result of validating a token.
type Validation struct {
	Status ValidationStatus

	// FileName is set for StatusRequiresPIN and StatusActive. It is the
	// only file identity revealed before a PIN check passes.
	FileName string

	// Link is the full record, set only for StatusActive.
	Link *store.Link
}

// MintRequest carries the parameters for creating a new share link.
type MintRequest struct {
	// FilePath is the file to share, relative to the served root.
	FilePath string

	// Expiry is how long the link stays valid. Zero selects the
	// manager's default.
	Expiry time.Duration

	// MaxDownloads caps how many times the link may be consumed.
	// Zero means unlimited.
	MaxDownloads int

	// PIN optionally protects the download. Never persisted raw.
	PIN string

	// Creator optionally records who minted the link.
	Creator string
}

// Manager implements the share-link operations over a backing store.
//
// All methods are safe for concurrent use; the store serializes mutations.
type Manager struct {
	store         store.Store
	log           *zap.Logger
	defaultExpiry time.Duration
	now           func() time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock injects a time source. Tests use this to control expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithDefaultExpiry sets the expiry used when a mint request leaves it zero.
func WithDefaultExpiry(d time.Duration) ManagerOption {
	return func(m *Manager) { m.defaultExpiry = d }
}

// NewManager creates a share-link manager over the given store.
func NewManager(s store.Store, log *zap.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		store:         s,
		log:           log,
		defaultExpiry: 24 * time.Hour,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mint creates and persists a new share link.
//
// The returned record never includes the raw PIN; callers building API
// responses should expose HasPIN() rather than the hash fields.
func (m *Manager) Mint(ctx context.Context, req MintRequest) (*store.Link, error) {
	if req.FilePath == "" {
		return nil, fmt.Errorf("share: file path is required")
	}
	if req.MaxDownloads < 0 {
		return nil, fmt.Errorf("share: max downloads must not be negative")
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	expiry := req.Expiry
	if expiry <= 0 {
		expiry = m.defaultExpiry
	}

	now := m.now()
	link := &store.Link{
		Token:        token,
		FilePath:     req.FilePath,
		FileName:     path.Base(req.FilePath),
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiry),
		MaxDownloads: req.MaxDownloads,
		Creator:      req.Creator,
	}

	if req.PIN != "" {
		salt, err := randBytes(pinSaltLen)
		if err != nil {
			return nil, fmt.Errorf("share: failed to generate pin salt: %w", err)
		}
		link.PINSalt = salt
		link.PINHash = hashPIN(req.PIN, salt)
	}

	if err := m.store.Put(ctx, link); err != nil {
		return nil, fmt.Errorf("share: failed to persist link: %w", err)
	}

	m.log.Info("share link minted",
		zap.String("file", link.FileName),
		zap.Time("expires_at", link.ExpiresAt),
		zap.Int("max_downloads", link.MaxDownloads),
		zap.Bool("has_pin", link.HasPIN()),
		zap.String("creator", link.Creator),
	)

	return link, nil
}

// Validate checks a token (and optional PIN) without consuming a download.
//
// Unknown tokens and inactive links both come back as StatusInactive. A
// failed PIN check never counts toward the main attempt tracker; the
// share-link and main-auth brute-force surfaces are independent.
func (m *Manager) Validate(ctx context.Context, token, pin string) (Validation, error) {
	link, err := m.store.Get(ctx, token)
	if errors.Is(err, store.ErrLinkNotFound) {
		return Validation{Status: StatusInactive}, nil
	}
	if err != nil {
		return Validation{}, err
	}

	if !link.Active(m.now()) {
		return Validation{Status: StatusInactive}, nil
	}

	if link.HasPIN() {
		if pin == "" {
			return Validation{Status: StatusRequiresPIN, FileName: link.FileName}, nil
		}
		if !verifyPIN(pin, link.PINSalt, link.PINHash) {
			m.log.Warn("share link pin rejected", zap.String("file", link.FileName))
			return Validation{Status: StatusInvalidPIN}, nil
		}
	}

	return Validation{Status: StatusActive, FileName: link.FileName, Link: link}, nil
}

// Consume atomically increments the download counter for a link.
//
// When the new count reaches MaxDownloads (> 0), the link is revoked in the
// same transaction, which is what makes one-time links truly single-use
// under concurrent downloads. Returns store.ErrLinkInactive when the link
// can no longer be consumed.
func (m *Manager) Consume(ctx context.Context, token string) error {
	now := m.now()
	_, err := m.store.Update(ctx, token, func(l *store.Link) error {
		if !l.Active(now) {
			return store.ErrLinkInactive
		}
		l.DownloadCount++
		t := now
		l.LastAccessedAt = &t
		if l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads {
			l.Revoked = true
		}
		return nil
	})
	if errors.Is(err, store.ErrLinkNotFound) {
		return store.ErrLinkInactive
	}
	return err
}

// Revoke marks a link unusable.
//
// Idempotent: the first call on a live link returns true, any later call
// (or a call on an unknown token) returns false.
func (m *Manager) Revoke(ctx context.Context, token string) (bool, error) {
	_, err := m.store.Update(ctx, token, func(l *store.Link) error {
		if l.Revoked {
			return store.ErrLinkInactive
		}
		l.Revoked = true
		return nil
	})
	switch {
	case err == nil:
		m.log.Info("share link revoked", zap.String("token_prefix", tokenPrefix(token)))
		return true, nil
	case errors.Is(err, store.ErrLinkNotFound), errors.Is(err, store.ErrLinkInactive):
		return false, nil
	default:
		return false, err
	}
}

// ListActive returns all live links, newest first.
func (m *Manager) ListActive(ctx context.Context) ([]*store.Link, error) {
	links, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	active := links[:0]
	for _, l := range links {
		if !l.Revoked && l.ExpiresAt.After(now) {
			active = append(active, l)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// Stats returns the full record for a token, for authenticated inspection.
func (m *Manager) Stats(ctx context.Context, token string) (*store.Link, error) {
	return m.store.Get(ctx, token)
}

// PurgeExpired deletes links that expired more than retention ago and
// returns how many were removed. A non-positive retention selects
// DefaultRetention.
func (m *Manager) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	purged, err := m.store.PurgeExpired(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		m.log.Info("purged expired share links", zap.Int("count", purged))
	}
	return purged, nil
}

// tokenPrefix returns a short, log-safe prefix of a token.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
