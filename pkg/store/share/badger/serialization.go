package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/sharegate/pkg/store/share"
)

// Serialization Strategy
// ======================
//
// Link records are stored as JSON. Records are small (a few hundred bytes),
// written rarely relative to reads, and benefit from being inspectable when
// debugging a live database, so JSON's overhead is irrelevant here and its
// schema flexibility makes additive changes (new optional fields) free.

// encodeLink serializes a link record for storage.
func encodeLink(link *share.Link) ([]byte, error) {
	data, err := json.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("failed to encode share link: %w", err)
	}
	return data, nil
}

// decodeLink deserializes a link record from storage.
func decodeLink(data []byte) (*share.Link, error) {
	var link share.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to decode share link: %w", err)
	}
	return &link, nil
}
