package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize data
// types into logical namespaces. Share links are the only first-class record
// today, but the prefix scheme leaves room for future record types without a
// schema migration.
//
// Key Namespace Prefixes:
//
// Data Type       Prefix    Key Format        Value Type
// =============================================================
// Share Links     "link:"   link:<token>      Link (JSON)
//
// Tokens are high-entropy URL-safe strings, so they are used directly as the
// key suffix: point lookups by token are O(1), and enumerating all links is
// a single prefix scan.

const linkKeyPrefix = "link:"

// keyLink builds the database key for a share-link token.
func keyLink(token string) []byte {
	return []byte(linkKeyPrefix + token)
}
