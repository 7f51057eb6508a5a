package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/quillnote/notes-platform/internal/platform/api"
	"github.com/quillnote/notes-platform/internal/platform/auth"
	"github.com/quillnote/notes-platform/services/comments/internal/domain"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
		return false
	}
	return true
}

// callerFrom reads the identity the auth middleware left in the context.
// Anonymous requests yield the zero Caller.
func callerFrom(r *http.Request) domain.Caller {
	uid, _ := auth.UserIDFromContext(r.Context())
	role, _ := auth.RoleFromContext(r.Context())
	return domain.Caller{UserID: strings.TrimSpace(uid), Role: role}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(name, "must be an integer")
	}
	return n, nil
}
