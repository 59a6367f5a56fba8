package syncx

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cursor is a position in the merged change stream.
// Format: base64("<updated_at_us>|<uuid>")
// The timestamp is Unix microseconds, matching TIMESTAMPTZ precision
// exactly, so a cursor round-trips a row position losslessly. Anything
// coarser re-qualifies the last page's rows and paging stalls when a
// whole page shares one transaction timestamp. The (timestamp, uuid)
// pair is strictly monotonic per row, so paging by cursor never skips
// or re-fetches same-timestamp siblings the way a bare watermark does.
type Cursor struct {
	Us  int64     // Unix microseconds timestamp
	UID uuid.UUID // Entity UUID (tie-break within one timestamp)
}

// FromTime builds a cursor positioned just before everything that
// changed after t. Used to translate a client watermark into a cursor.
func FromTime(t time.Time) Cursor {
	return Cursor{Us: t.UTC().UnixMicro(), UID: uuid.Nil}
}

// Time returns the cursor position as a UTC timestamp.
func (c Cursor) Time() time.Time {
	return time.UnixMicro(c.Us).UTC()
}

// EncodeCursor creates a base64-encoded cursor string.
// Returns empty string for the zero-value cursor.
func EncodeCursor(c Cursor) string {
	if c.Us == 0 && c.UID == uuid.Nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Us, c.UID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor string.
// Returns zero-value cursor and false if invalid or empty.
func DecodeCursor(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}

	parts := strings.Split(string(b), "|")
	if len(parts) != 2 {
		return Cursor{}, false
	}

	us, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{Us: us, UID: id}, true
}

// ParseSince parses a client watermark. Accepts RFC3339 or Unix
// milliseconds; empty or unparseable means the epoch (first sync).
func ParseSince(s string) time.Time {
	if s == "" {
		return time.Unix(0, 0).UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Unix(0, 0).UTC()
}

// RFC3339 formats a UTC timestamp the way all sync responses do.
func RFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
