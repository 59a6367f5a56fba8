package syncservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creativehub/sync-api/internal/auth"
	"github.com/creativehub/sync-api/internal/entity"
	"github.com/creativehub/sync-api/internal/store"
	"github.com/creativehub/sync-api/internal/syncx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Per-item outcome statuses. Validation, permission, and conflict
// outcomes are first-class results; only infrastructure errors abort the
// batch.
const (
	StatusCreated  = "created"
	StatusUpdated  = "updated"
	StatusDeleted  = "deleted"
	StatusSkipped  = "skipped"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// Result is the per-item acknowledgment in a push response.
type Result struct {
	EntityType string `json:"entity_type,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	Status     string `json:"status"`
	Version    int64  `json:"version,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Conflict describes one version conflict and how it was resolved.
// Conflicts ride in the 200 response body, not an HTTP error status.
type Conflict struct {
	EntityType    string `json:"entity_type"`
	UUID          string `json:"uuid"`
	ServerVersion int64  `json:"server_version"`
	ClientVersion int64  `json:"client_version"`
	Resolution    string `json:"resolution"`
}

// PushResponse is the response body for POST /sync/push.
type PushResponse struct {
	Results    []Result   `json:"results"`
	Conflicts  []Conflict `json:"conflicts"`
	ServerTime string     `json:"server_time"`
}

// ErrBatchTooLarge is returned before any work when the batch exceeds
// the configured limit. An unbounded batch inside one transaction is a
// resource risk.
var ErrBatchTooLarge = errors.New("push batch exceeds configured limit")

// PushService applies client-submitted change batches. The whole batch
// runs in one transaction: per-item logical failures are recorded and
// processing continues, but any SQL error rolls everything back so a
// 500 response means nothing was persisted.
type PushService struct {
	DB         *pgxpool.Pool
	Strategy   Strategy
	Audit      *AuditLogger
	BatchLimit int
}

// NewPushService wires the push pipeline. The conflict strategy comes
// from configuration, validated at load.
func NewPushService(db *pgxpool.Pool, strategy Strategy, audit *AuditLogger, batchLimit int) *PushService {
	return &PushService{DB: db, Strategy: strategy, Audit: audit, BatchLimit: batchLimit}
}

// Push processes one client batch. deviceID comes from the X-Device-Id
// header and is recorded on every audit row, never used for access
// control or resolution.
func (s *PushService) Push(ctx context.Context, p auth.Principal, deviceID string,
	items []map[string]any) (*PushResponse, error) {

	if len(items) > s.BatchLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(items), s.BatchLimit)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	resp := &PushResponse{
		Results:   make([]Result, 0, len(items)),
		Conflicts: make([]Conflict, 0),
	}
	audit := make([]AuditEntry, 0, len(items))

	var device *string
	if deviceID != "" {
		device = &deviceID
	}

	for _, item := range items {
		change, perr := syncx.ParseChange(item)
		if perr != nil {
			// Items without a usable uuid or entity_type get an error
			// result but no sync_log row; the audit columns are NOT NULL
			// and there is no identity to record. Everything that parses
			// is audited regardless of outcome.
			log.Warn().Err(perr).Interface("item", item).Msg("invalid push item")
			resp.Results = append(resp.Results, Result{Status: StatusError, Message: "Invalid entity"})
			continue
		}

		res, conflict, entry, err := s.applyItem(ctx, tx, p, change)
		if err != nil {
			// Infrastructure failure: abort and roll back the whole batch.
			// Items already processed in this call are not persisted.
			return nil, err
		}

		resp.Results = append(resp.Results, res)
		if conflict != nil {
			resp.Conflicts = append(resp.Conflicts, *conflict)
		}
		entry.UserID = p.ID
		entry.DeviceID = device
		audit = append(audit, entry)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Audit is best-effort and outside the transaction: a sync_log
	// failure must not take down a push that already committed.
	if err := s.Audit.Append(ctx, audit); err != nil {
		log.Error().Err(err).Int("entries", len(audit)).Msg("failed to append sync audit")
	}

	resp.ServerTime = syncx.RFC3339(time.Now())
	return resp, nil
}

// applyItem applies one change inside the batch transaction.
// The returned error is reserved for infrastructure failures; logical
// failures come back as Result values.
func (s *PushService) applyItem(ctx context.Context, q store.Querier, p auth.Principal,
	c syncx.Change) (Result, *Conflict, AuditEntry, error) {

	entry := AuditEntry{
		EntityType: c.EntityType,
		EntityUUID: c.UID,
		Action:     auditAction(c),
		OldVersion: c.Version,
		NewVersion: c.Version,
	}

	if !entity.IsSyncable(c.EntityType) {
		return Result{EntityType: c.EntityType, UUID: c.UID.String(),
			Status: StatusError, Message: "Invalid entity"}, nil, entry, nil
	}

	existing, err := store.Get(ctx, q, c.EntityType, c.UID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, nil, entry, err
	}

	// New row: create on upsert, no-op on delete. Either way it is audited.
	if existing == nil {
		if c.IsDelete() {
			return ack(c, StatusSkipped, c.Version), nil, entry, nil
		}
		fields := buildFields(c)
		if err := store.Insert(ctx, q, c.EntityType, c.UID, p.ID, teamOf(p), fields); err != nil {
			return Result{}, nil, entry, err
		}
		entry.Action = syncx.ActionCreate
		entry.NewVersion = 1
		return ack(c, StatusCreated, 1), nil, entry, nil
	}

	if existing.OwnerID != p.ID && !p.IsSuperAdmin() {
		entry.NewVersion = existing.SyncVersion
		return Result{EntityType: c.EntityType, UUID: c.UID.String(),
			Status: StatusError, Message: "Permission denied"}, nil, entry, nil
	}

	// Stale client: the server moved past the version this change was
	// built on. The resolver decides; there is no field-level merge.
	if existing.SyncVersion > c.Version {
		return s.resolveAndApply(ctx, q, c, existing, &entry)
	}

	// In-sequence write: single conditional update, compare and bump in
	// one statement.
	var applied bool
	var newVersion int64
	if c.IsDelete() {
		applied, newVersion, err = store.SoftDelete(ctx, q, c.EntityType, c.UID, existing.SyncVersion)
	} else {
		applied, newVersion, err = store.Update(ctx, q, c.EntityType, c.UID, existing.SyncVersion, buildFields(c))
	}
	if err != nil {
		return Result{}, nil, entry, err
	}

	if !applied {
		// A concurrent push won between our read and write. Re-read and
		// hand the loser to the resolver like any other conflict.
		current, err := store.Get(ctx, q, c.EntityType, c.UID)
		if err != nil {
			return Result{}, nil, entry, err
		}
		return s.resolveAndApply(ctx, q, c, current, &entry)
	}

	entry.NewVersion = newVersion
	status := StatusUpdated
	if c.IsDelete() {
		status = StatusDeleted
	}
	return ack(c, status, newVersion), nil, entry, nil
}

// resolveAndApply handles a detected version conflict: either the server
// row stands, or the client change is applied anyway with a forced write.
func (s *PushService) resolveAndApply(ctx context.Context, q store.Querier, c syncx.Change,
	existing *store.Entity, entry *AuditEntry) (Result, *Conflict, AuditEntry, error) {

	decision := Resolve(s.Strategy, existing.UpdatedAt, c.UpdatedAt)
	resolution := string(decision.Resolution)
	entry.ConflictDetected = true
	entry.ConflictResolution = &resolution

	conflict := &Conflict{
		EntityType:    c.EntityType,
		UUID:          c.UID.String(),
		ServerVersion: existing.SyncVersion,
		ClientVersion: c.Version,
		Resolution:    resolution,
	}

	if !decision.ApplyClient {
		entry.NewVersion = existing.SyncVersion
		res := Result{EntityType: c.EntityType, UUID: c.UID.String(),
			Status: StatusConflict, Version: existing.SyncVersion}
		return res, conflict, *entry, nil
	}

	var newVersion int64
	var err error
	if c.IsDelete() {
		newVersion, err = store.ForceSoftDelete(ctx, q, c.EntityType, c.UID)
	} else {
		newVersion, err = store.ForceUpdate(ctx, q, c.EntityType, c.UID, buildFields(c))
	}
	if err != nil {
		return Result{}, nil, *entry, err
	}

	entry.NewVersion = newVersion
	status := StatusUpdated
	if c.IsDelete() {
		status = StatusDeleted
	}
	return ack(c, status, newVersion), conflict, *entry, nil
}

func ack(c syncx.Change, status string, version int64) Result {
	return Result{
		EntityType: c.EntityType,
		UUID:       c.UID.String(),
		Status:     status,
		Version:    version,
	}
}

// buildFields filters the client data through the per-type allow-list
// and routes the sharing fields to their own columns. Unlisted fields
// are silently dropped.
func buildFields(c syncx.Change) store.Fields {
	filtered := entity.FilterFields(c.EntityType, c.Data)

	var f store.Fields
	if v, ok := filtered[entity.FieldShareLevel].(string); ok && entity.ValidShareLevel(v) {
		f.ShareLevel = &v
	}
	delete(filtered, entity.FieldShareLevel)

	if raw, ok := filtered[entity.FieldSharedWith].([]any); ok {
		grantees := make([]string, 0, len(raw))
		for _, g := range raw {
			if s, ok := g.(string); ok {
				grantees = append(grantees, s)
			}
		}
		f.SharedWith = grantees
	}
	delete(filtered, entity.FieldSharedWith)

	f.Attrs = filtered
	return f
}

func auditAction(c syncx.Change) string {
	if c.IsDelete() {
		return syncx.ActionDelete
	}
	return syncx.ActionUpdate
}

func teamOf(p auth.Principal) *string {
	if p.Team == "" {
		return nil
	}
	return &p.Team
}
