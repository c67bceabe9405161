package audit

import (
	"net/http"
	"time"

	"github.com/harborlight/beacon/pkg/httputil"
)

const maxListLimit = 200

// Handler serves the audit trail over HTTP. The router restricts these
// routes to the top-scope role.
type Handler struct {
	recorder *DBRecorder
}

// NewHandler creates the audit HTTP handler.
func NewHandler(recorder *DBRecorder) *Handler {
	return &Handler{recorder: recorder}
}

// List handles GET /admin/audit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f := Filter{
		ActorID: r.URL.Query().Get("actor_id"),
		Action:  Action(r.URL.Query().Get("action")),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "since must be RFC3339")
			return
		}
		f.Since = t
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "until must be RFC3339")
			return
		}
		f.Until = t
	}

	limit := httputil.ParseQueryInt(r, "limit", 50)
	if limit < 1 || limit > maxListLimit {
		limit = 50
	}
	offset := httputil.ParseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.recorder.List(r.Context(), f, limit, offset)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}
