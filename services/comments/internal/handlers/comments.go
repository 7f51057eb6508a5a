// Package handlers exposes the comment API over HTTP.
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/internal/platform/api"
	"github.com/quillnote/notes-platform/internal/platform/auth"
	"github.com/quillnote/notes-platform/internal/platform/httpserver"
	"github.com/quillnote/notes-platform/services/comments/internal/geo"
	"github.com/quillnote/notes-platform/services/comments/internal/history"
	"github.com/quillnote/notes-platform/services/comments/internal/service"
)

type createCommentRequest struct {
	Text     string `json:"text"`
	ParentID string `json:"parent_id,omitempty"`
}

type editCommentRequest struct {
	Text string `json:"text"`
}

type reactRequest struct {
	Kind string `json:"kind"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

type bulkRequest struct {
	IDs  []string `json:"ids"`
	Kind string   `json:"kind,omitempty"`
}

type historyResponse struct {
	CommentID string          `json:"comment_id"`
	Revisions []history.Entry `json:"revisions"`
}

type bulkDeleteResponse struct {
	DeletedCount int `json:"deleted_count"`
}

type bulkUnreactResponse struct {
	RemovedCount int `json:"removed_count"`
}

// Mount registers the comment routes. Reads are public but pick up the
// caller when a token is sent; writes require one.
func Mount(r chi.Router, svc *service.Service, log *zap.Logger, verifier auth.JWTVerifier) {
	if log == nil {
		log = zap.NewNop()
	}
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/v1/comments/*", ListComments(svc, log))
		r.Get("/v1/comment/{comment_id}", GetComment(svc, log))
		r.Get("/v1/comment/{comment_id}/replies", ListReplies(svc, log))
		r.Get("/v1/comment/{comment_id}/history", GetHistory(svc, log))
		r.Get("/v1/comment/{comment_id}/diff", DiffRevisions(svc, log))
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/comments/*", CreateComment(svc, log))
		r.Put("/v1/comment/{comment_id}", EditComment(svc, log))
		r.Post("/v1/comment/{comment_id}/react", ReactComment(svc, log))
		r.Post("/v1/comment/{comment_id}/report", ReportComment(svc, log))
		r.Delete("/v1/comment/{comment_id}", DeleteComment(svc, log))
		r.Post("/v1/bulk/comments/delete", BulkDeleteComments(svc, log))
		r.Post("/v1/bulk/comments/unreact", BulkUnreact(svc, log))
	})
}

// slugParam returns the wildcard tail of /v1/comments/*, so slugs may
// contain slashes.
func slugParam(r *http.Request) string {
	return strings.Trim(strings.TrimSpace(chi.URLParam(r, "*")), "/")
}

func commentIDParam(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "comment_id"))
	if id == "" {
		api.BadRequest(w, "MISSING_ID", "comment_id is required", rid, nil)
		return "", false
	}
	return id, true
}

// CreateComment handles POST /v1/comments/{slug}
func CreateComment(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req createCommentRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		created, err := svc.Create(r.Context(), callerFrom(r), service.CreateInput{
			Slug:     slugParam(r),
			ParentID: req.ParentID,
			Text:     req.Text,
			ClientIP: geo.ClientIP(r),
		})
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// ListComments handles GET /v1/comments/{slug}
func ListComments(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		page, err := svc.ListTopLevel(r.Context(), callerFrom(r), slugParam(r), limit, r.URL.Query().Get("cursor"))
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, page)
	}
}

// GetComment handles GET /v1/comment/{comment_id}
func GetComment(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		c, err := svc.Get(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// ListReplies handles GET /v1/comment/{comment_id}/replies
func ListReplies(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		page, err := svc.ListReplies(r.Context(), callerFrom(r), id, limit, r.URL.Query().Get("cursor"))
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, page)
	}
}

// EditComment handles PUT /v1/comment/{comment_id}
func EditComment(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		var req editCommentRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		c, err := svc.Edit(r.Context(), callerFrom(r), id, req.Text)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// GetHistory handles GET /v1/comment/{comment_id}/history
func GetHistory(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		entries, err := svc.History(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, historyResponse{CommentID: id, Revisions: entries})
	}
}

// DiffRevisions handles GET /v1/comment/{comment_id}/diff?from=&to=
func DiffRevisions(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		from, err := queryInt(r, "from", -1)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		to, err := queryInt(r, "to", -1)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		d, err := svc.Diff(r.Context(), callerFrom(r), id, from, to)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, d)
	}
}

// ReactComment handles POST /v1/comment/{comment_id}/react
func ReactComment(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		var req reactRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		res, err := svc.React(r.Context(), callerFrom(r), id, req.Kind)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// ReportComment handles POST /v1/comment/{comment_id}/report
func ReportComment(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		var req reportRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		rep, err := svc.Report(r.Context(), callerFrom(r), id, req.Reason)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusAccepted, rep)
	}
}

// DeleteComment handles DELETE /v1/comment/{comment_id}
func DeleteComment(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := commentIDParam(w, r, rid)
		if !ok {
			return
		}
		c, err := svc.Delete(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// BulkDeleteComments handles POST /v1/bulk/comments/delete
func BulkDeleteComments(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req bulkRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		n, err := svc.BulkDelete(r.Context(), callerFrom(r), req.IDs)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, bulkDeleteResponse{DeletedCount: n})
	}
}

// BulkUnreact handles POST /v1/bulk/comments/unreact
func BulkUnreact(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req bulkRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		n, err := svc.BulkUnreact(r.Context(), callerFrom(r), req.IDs, req.Kind)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, bulkUnreactResponse{RemovedCount: n})
	}
}
