package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/creativehub/sync-api/internal/db"
	"github.com/creativehub/sync-api/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	pool, err := db.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}

	for _, typ := range entity.Types() {
		if _, err := pool.Exec(context.Background(), "DELETE FROM "+typ); err != nil {
			t.Fatalf("Failed to clean table %s: %v", typ, err)
		}
	}
	if _, err := pool.Exec(context.Background(), "DELETE FROM sync_log"); err != nil {
		t.Fatalf("Failed to clean sync_log: %v", err)
	}

	return pool
}

func strptr(s string) *string { return &s }

func TestStoreUnknownType(t *testing.T) {
	ctx := context.Background()
	if _, err := Get(ctx, nil, "note", uuid.New()); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Get unknown type error = %v, want ErrUnknownType", err)
	}
	if err := Insert(ctx, nil, "users; --", uuid.New(), "u1", nil, Fields{}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Insert unknown type error = %v, want ErrUnknownType", err)
	}
}

func TestStoreLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	pool := getTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	uid := uuid.New()

	// Insert starts at version 1 with needs_sync cleared.
	err := Insert(ctx, pool, entity.TypeAsset, uid, "u1", strptr("t1"), Fields{
		Attrs: map[string]any{"name": "Hero banner"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	e, err := Get(ctx, pool, entity.TypeAsset, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.SyncVersion != 1 {
		t.Errorf("SyncVersion = %d, want 1", e.SyncVersion)
	}
	if e.NeedsSync {
		t.Error("NeedsSync = true after insert")
	}
	if e.OwnerID != "u1" || e.TeamID == nil || *e.TeamID != "t1" {
		t.Errorf("ownership = %q/%v", e.OwnerID, e.TeamID)
	}
	if e.ShareLevel != entity.SharePrivate {
		t.Errorf("ShareLevel = %q, want private", e.ShareLevel)
	}
	if e.Attrs["name"] != "Hero banner" {
		t.Errorf("Attrs = %v", e.Attrs)
	}

	// Conditional update at the right version lands and bumps by 1.
	applied, v, err := Update(ctx, pool, entity.TypeAsset, uid, 1, Fields{
		Attrs:      map[string]any{"name": "Hero banner v2"},
		ShareLevel: strptr(entity.ShareTeam),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !applied || v != 2 {
		t.Fatalf("Update = (%v, %d), want (true, 2)", applied, v)
	}

	// Stale version does not land.
	applied, _, err = Update(ctx, pool, entity.TypeAsset, uid, 1, Fields{
		Attrs: map[string]any{"name": "stale"},
	})
	if err != nil {
		t.Fatalf("Update stale: %v", err)
	}
	if applied {
		t.Error("stale Update applied, want rejected")
	}

	e, err = Get(ctx, pool, entity.TypeAsset, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.SyncVersion != 2 {
		t.Errorf("SyncVersion = %d, want 2", e.SyncVersion)
	}
	if e.Attrs["name"] != "Hero banner v2" {
		t.Errorf("Attrs after stale update = %v", e.Attrs)
	}
	if e.ShareLevel != entity.ShareTeam {
		t.Errorf("ShareLevel = %q, want team", e.ShareLevel)
	}

	// Attrs merge: untouched keys survive a partial update.
	if _, _, err := Update(ctx, pool, entity.TypeAsset, uid, 2, Fields{
		Attrs: map[string]any{"status": "approved"},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	e, _ = Get(ctx, pool, entity.TypeAsset, uid)
	if e.Attrs["name"] != "Hero banner v2" || e.Attrs["status"] != "approved" {
		t.Errorf("merged Attrs = %v", e.Attrs)
	}

	// ForceUpdate bypasses the guard but still bumps the version.
	v, err = ForceUpdate(ctx, pool, entity.TypeAsset, uid, Fields{
		Attrs: map[string]any{"name": "forced"},
	})
	if err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	if v != 4 {
		t.Errorf("ForceUpdate version = %d, want 4", v)
	}

	// Soft delete tombstones, never removes.
	applied, v, err = SoftDelete(ctx, pool, entity.TypeAsset, uid, 4)
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !applied || v != 5 {
		t.Fatalf("SoftDelete = (%v, %d), want (true, 5)", applied, v)
	}
	e, err = Get(ctx, pool, entity.TypeAsset, uid)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if e.DeletedAt == nil {
		t.Error("DeletedAt = nil after soft delete")
	}
}

func TestStoreGetMissing_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	pool := getTestDB(t)
	defer pool.Close()

	if _, err := Get(context.Background(), pool, entity.TypeProject, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing error = %v, want ErrNotFound", err)
	}

	applied, _, err := Update(context.Background(), pool, entity.TypeProject, uuid.New(), 1, Fields{})
	if err != nil {
		t.Fatalf("Update missing: %v", err)
	}
	if applied {
		t.Error("Update on missing row reported applied")
	}
}
