package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor is a keyset position: the creation time and id of the last item
// on the previous page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates an opaque, URL-safe cursor. An empty id yields an
// empty cursor.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := timestamp.UTC().Format(time.RFC3339Nano) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty cursor
// decodes to nil, meaning the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	// The timestamp never contains "|", ids may.
	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    id,
		Timestamp: timestamp,
	}, nil
}
