package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// errorBody is the uniform error envelope: {error: true, message, details?}.
type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes the error envelope with HTTP status matching the
// error kind. Version conflicts never come through here; they ride in
// the 200 push payload.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	log.Ctx(r.Context()).Warn().
		Int("status", code).
		Str("path", r.URL.Path).
		Msg(message)
	writeJSON(w, code, errorBody{Error: true, Message: message})
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
