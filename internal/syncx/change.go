package syncx

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Actions carried by change items. Push treats anything except delete as
// an upsert; pull emits only upsert and delete.
const (
	ActionUpsert = "upsert"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Change is one client-submitted change item from a push batch, or one
// server-side change emitted by pull.
type Change struct {
	EntityType string
	UID        uuid.UUID
	Action     string
	Data       map[string]any
	// Version is the sync version the client last saw for this row.
	// Zero for rows the client created locally.
	Version int64
	// UpdatedAt is the client-side mutation time, pulled out of Data
	// when present. Zero value when the client did not send one; the
	// newest_wins resolver then keeps the server row.
	UpdatedAt time.Time
}

// IsDelete reports whether the item asks for a soft delete.
func (c Change) IsDelete() bool {
	return c.Action == ActionDelete
}

var (
	ErrMissingEntityType = errors.New("missing entity_type")
	ErrMissingUUID       = errors.New("missing or invalid uuid")
)

// ParseChange validates and extracts one raw change item. Validation is
// deliberately minimal: entity_type and uuid are required, everything
// else has a workable default so a single malformed item never aborts
// the batch.
func ParseChange(item map[string]any) (Change, error) {
	var out Change

	et, _ := item["entity_type"].(string)
	if et == "" {
		return out, ErrMissingEntityType
	}
	out.EntityType = et

	uidStr, _ := item["uuid"].(string)
	uid, err := uuid.Parse(uidStr)
	if uidStr == "" || err != nil {
		return out, ErrMissingUUID
	}
	out.UID = uid

	out.Action = ActionUpsert
	if a, ok := item["action"].(string); ok && a != "" {
		out.Action = a
	}

	switch v := item["version"].(type) {
	case float64:
		out.Version = int64(v)
	case int64:
		out.Version = v
	case int:
		out.Version = int64(v)
	}
	if out.Version < 0 {
		out.Version = 0
	}

	if d, ok := item["data"].(map[string]any); ok {
		out.Data = d
		if s, ok := d["updated_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				out.UpdatedAt = t.UTC()
			} else if t, err := time.Parse(time.RFC3339, s); err == nil {
				out.UpdatedAt = t.UTC()
			}
		}
	}

	return out, nil
}
