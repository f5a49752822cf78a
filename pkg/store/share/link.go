package share

import "time"

// Link is a single share-link record: an unguessable token granting
// time- and count-limited unauthenticated access to one file.
//
// A link is considered inactive as soon as any of the following holds:
//   - Revoked is true (manual revocation or auto-revoke at the download limit)
//   - ExpiresAt is in the past
//   - MaxDownloads > 0 and DownloadCount has reached it
//
// Invariant: DownloadCount never exceeds MaxDownloads when MaxDownloads > 0.
// Stores uphold this by serializing mutations (see Store.Update).
//
// PINHash and PINSalt hold the argon2id digest of the optional PIN. The raw
// PIN is never stored and never serialized back to clients.
type Link struct {
	// Token uniquely identifies the link. It is a high-entropy random
	// string (>= 128 bits) generated at mint time.
	Token string `json:"token"`

	// FilePath is the path of the shared file, relative to the served root.
	FilePath string `json:"file_path"`

	// FileName is the display name shown to downloaders.
	FileName string `json:"file_name"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// MaxDownloads limits how many times the link may be consumed.
	// Zero means unlimited.
	MaxDownloads int `json:"max_downloads"`

	// DownloadCount is incremented once per successful download.
	DownloadCount int `json:"download_count"`

	// PINHash is the argon2id digest of the PIN, nil when no PIN is set.
	PINHash []byte `json:"pin_hash,omitempty"`

	// PINSalt is the random salt used to derive PINHash.
	PINSalt []byte `json:"pin_salt,omitempty"`

	// Creator optionally records who minted the link (an IP in the
	// default deployment).
	Creator string `json:"creator,omitempty"`

	// LastAccessedAt records the most recent consume, nil if never used.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Revoked marks the link permanently unusable. Set manually via
	// revocation or automatically when the download limit is reached.
	Revoked bool `json:"revoked"`
}

// HasPIN reports whether the link requires a PIN to download.
func (l *Link) HasPIN() bool {
	return len(l.PINHash) > 0
}

// Active reports whether the link may still be used at the given instant.
func (l *Link) Active(now time.Time) bool {
	if l.Revoked {
		return false
	}
	if now.After(l.ExpiresAt) {
		return false
	}
	if l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads {
		return false
	}
	return true
}

// Clone returns a deep copy of the link. Stores hand out clones so callers
// can never mutate persisted state behind the store's back.
func (l *Link) Clone() *Link {
	c := *l
	if l.PINHash != nil {
		c.PINHash = append([]byte(nil), l.PINHash...)
	}
	if l.PINSalt != nil {
		c.PINSalt = append([]byte(nil), l.PINSalt...)
	}
	if l.LastAccessedAt != nil {
		t := *l.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}
