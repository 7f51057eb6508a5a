package httpserver

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureRequestID(r chi.Router, seen *string) {
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		*seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_MintedWhenAbsent(t *testing.T) {
	r := newTestRouter()
	var seen string
	captureRequestID(r, &seen)

	rr := serve(r, http.MethodGet, "/id", nil)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	id, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestRequestID_ReusesInbound(t *testing.T) {
	r := newTestRouter()
	var seen string
	captureRequestID(r, &seen)

	rr := serve(r, http.MethodGet, "/id", map[string]string{RequestIDHeader: "  gw-7f3a  "})
	assert.Equal(t, "gw-7f3a", seen)
	assert.Equal(t, "gw-7f3a", rr.Header().Get(RequestIDHeader))
}

func TestRequestID_ReplacesMalformedInbound(t *testing.T) {
	for _, bad := range []string{strings.Repeat("a", maxRequestIDLen+1), "has space", "tab\tinside"} {
		r := newTestRouter()
		var seen string
		captureRequestID(r, &seen)

		serve(r, http.MethodGet, "/id", map[string]string{RequestIDHeader: bad})
		assert.NotEqual(t, bad, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, "malformed id %q must be replaced", bad)
	}
}

func TestRequestID_ContextAndLogField(t *testing.T) {
	ctx := WithRequestID(context.Background(), "rid-42")
	assert.Equal(t, "rid-42", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))

	f := RequestIDField("rid-42")
	assert.Equal(t, "request_id", f.Key)
	assert.Equal(t, "rid-42", f.String)
}
