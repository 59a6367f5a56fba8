package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/creativehub/sync-api/internal/auth"
	"github.com/creativehub/sync-api/internal/syncservice"
	"github.com/creativehub/sync-api/internal/syncx"
	"github.com/rs/zerolog/log"
)

// pushReq is the request body for POST /sync/push. Items are decoded as
// raw maps so one malformed item produces a per-item error instead of
// failing the whole request body.
type pushReq struct {
	Changes []map[string]any `json:"changes"`
}

// GetStatus handles GET /sync/status
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())

	resp, err := s.Status.Status(r.Context(), p)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to load sync status")
		writeError(w, r, http.StatusInternalServerError, "failed to load sync status")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPull handles GET /sync/pull?since=<ISO8601>&types=<csv>&cursor=<opaque>&limit=<n>
// A cursor supersedes since: it resumes exactly where the previous page
// ended instead of re-scanning from a timestamp.
func (s *Server) GetPull(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	q := r.URL.Query()

	cur, ok := syncx.DecodeCursor(q.Get("cursor"))
	if !ok {
		// No cursor: position from the since watermark (epoch if absent)
		cur = syncx.FromTime(syncx.ParseSince(q.Get("since")))
	}

	var types []string
	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	limit := parseLimit(q.Get("limit"), s.PullPageSize, s.PullPageSize)

	resp, err := s.Pull.Pull(r.Context(), p, cur, types, limit)
	if err != nil {
		if errors.Is(err, syncservice.ErrUnknownEntityType) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("pull failed")
		writeError(w, r, http.StatusInternalServerError, "pull failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// PostPush handles POST /sync/push. Version conflicts are 200 payload
// entries, not HTTP errors; a 500 means the batch was rolled back and
// the client should retry it whole.
func (s *Server) PostPush(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())

	var req pushReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid push request body")
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	resp, err := s.Push.Push(r.Context(), p, DeviceID(r.Context()), req.Changes)
	if err != nil {
		if errors.Is(err, syncservice.ErrBatchTooLarge) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("push transaction failed")
		writeError(w, r, http.StatusInternalServerError, "push failed, batch rolled back")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
