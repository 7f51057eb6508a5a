package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/internal/platform/api"
	"github.com/quillnote/notes-platform/internal/platform/httpserver"
	"github.com/quillnote/notes-platform/services/comments/internal/domain"
)

// writeError maps the domain taxonomy onto HTTP statuses. Anything outside
// the taxonomy is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, log *zap.Logger, rid string, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		api.ValidationFailed(w, ve.Field, ve.Reason, rid)
	case errors.Is(err, domain.ErrValidation):
		api.BadRequest(w, "VALIDATION_FAILED", err.Error(), rid, nil)
	case errors.Is(err, domain.ErrUnauthenticated):
		api.Unauthorized(w, "UNAUTHENTICATED", "authentication required", rid)
	case errors.Is(err, domain.ErrForbidden):
		api.Forbidden(w, "FORBIDDEN", err.Error(), rid)
	case errors.Is(err, domain.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", err.Error(), rid)
	case errors.Is(err, domain.ErrDepthLimitExceeded):
		api.Unprocessable(w, "DEPTH_LIMIT_EXCEEDED", err.Error(), rid, nil)
	default:
		log.Error("request failed", httpserver.RequestIDField(rid), zap.Error(err))
		api.Internal(w, rid)
	}
}
