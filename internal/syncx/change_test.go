package syncx

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseChange(t *testing.T) {
	tests := []struct {
		name    string
		item    map[string]any
		wantErr error
		check   func(*testing.T, Change)
	}{
		{
			name: "complete upsert",
			item: map[string]any{
				"entity_type": "asset",
				"uuid":        "c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f",
				"action":      "upsert",
				"version":     float64(3),
				"data": map[string]any{
					"name":       "Hero banner",
					"updated_at": "2026-03-01T12:00:00Z",
				},
			},
			check: func(t *testing.T, c Change) {
				if c.EntityType != "asset" {
					t.Errorf("EntityType = %q", c.EntityType)
				}
				if c.UID != uuid.MustParse("c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f") {
					t.Errorf("UID = %v", c.UID)
				}
				if c.Version != 3 {
					t.Errorf("Version = %d, want 3", c.Version)
				}
				want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
				if !c.UpdatedAt.Equal(want) {
					t.Errorf("UpdatedAt = %v, want %v", c.UpdatedAt, want)
				}
				if c.IsDelete() {
					t.Error("IsDelete() = true for upsert")
				}
			},
		},
		{
			name: "delete",
			item: map[string]any{
				"entity_type": "project",
				"uuid":        "c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f",
				"action":      "delete",
				"version":     float64(5),
			},
			check: func(t *testing.T, c Change) {
				if !c.IsDelete() {
					t.Error("IsDelete() = false for delete")
				}
			},
		},
		{
			name: "missing action defaults to upsert",
			item: map[string]any{
				"entity_type": "company",
				"uuid":        "c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f",
			},
			check: func(t *testing.T, c Change) {
				if c.Action != ActionUpsert {
					t.Errorf("Action = %q, want upsert", c.Action)
				}
				if c.Version != 0 {
					t.Errorf("Version = %d, want 0", c.Version)
				}
			},
		},
		{
			name: "negative version clamped to zero",
			item: map[string]any{
				"entity_type": "asset",
				"uuid":        "c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f",
				"version":     float64(-2),
			},
			check: func(t *testing.T, c Change) {
				if c.Version != 0 {
					t.Errorf("Version = %d, want 0", c.Version)
				}
			},
		},
		{
			name:    "missing entity type",
			item:    map[string]any{"uuid": "c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f"},
			wantErr: ErrMissingEntityType,
		},
		{
			name:    "missing uuid",
			item:    map[string]any{"entity_type": "asset"},
			wantErr: ErrMissingUUID,
		},
		{
			name:    "malformed uuid",
			item:    map[string]any{"entity_type": "asset", "uuid": "not-a-uuid"},
			wantErr: ErrMissingUUID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChange(tt.item)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseChange() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChange() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}
