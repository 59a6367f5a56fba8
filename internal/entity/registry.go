package entity

// The fixed set of syncable entity types. The sync engine only ever
// touches these tables; anything else in a push is rejected per item.

// Syncable entity type names as they appear on the wire.
const (
	TypeAsset     = "asset"
	TypeCompany   = "company"
	TypeProject   = "project"
	TypeBrandKit  = "brand_kit"
	TypeSwipeFile = "swipe_file"
)

// Sharing fields are recognized on every type and stored in their own
// columns rather than the attrs document.
const (
	FieldShareLevel = "share_level"
	FieldSharedWith = "shared_with"
)

// Share levels controlling pull visibility beyond the owner.
const (
	SharePrivate = "private"
	ShareTeam    = "team"
	SharePublic  = "public"
)

// allowedFields lists, per type, the client-writable fields. Anything a
// client sends outside this list is silently dropped, not rejected.
var allowedFields = map[string]map[string]bool{
	TypeAsset: fieldSet(
		"name", "description", "file_url", "thumbnail_url", "mime_type",
		"file_size", "duration", "tags", "status", "metadata",
		FieldShareLevel, FieldSharedWith,
	),
	TypeCompany: fieldSet(
		"name", "website", "industry", "notes", "contacts", "logo_url",
		FieldShareLevel, FieldSharedWith,
	),
	TypeProject: fieldSet(
		"name", "description", "status", "company_uuid", "due_date",
		"brief", FieldShareLevel, FieldSharedWith,
	),
	TypeBrandKit: fieldSet(
		"name", "colors", "fonts", "logos", "guidelines",
		FieldShareLevel, FieldSharedWith,
	),
	TypeSwipeFile: fieldSet(
		"title", "url", "platform", "notes", "tags", "thumbnail_url",
		FieldShareLevel, FieldSharedWith,
	),
}

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Types returns all syncable type names in a fixed order.
func Types() []string {
	return []string{TypeAsset, TypeCompany, TypeProject, TypeBrandKit, TypeSwipeFile}
}

// IsSyncable reports whether t is one of the known entity types. Type
// names double as table names, so this is also the SQL injection guard
// for every query the store builds.
func IsSyncable(t string) bool {
	_, ok := allowedFields[t]
	return ok
}

// FilterFields drops fields not writable for the given type. Returns a
// new map; the input is never modified. Unknown types yield nil.
func FilterFields(entityType string, data map[string]any) map[string]any {
	allowed, ok := allowedFields[entityType]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}

// ValidShareLevel reports whether s is a recognized share level.
func ValidShareLevel(s string) bool {
	return s == SharePrivate || s == ShareTeam || s == SharePublic
}
