package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/harborlight/beacon/pkg/contextkeys"
	"github.com/harborlight/beacon/pkg/httputil"
	"github.com/harborlight/beacon/pkg/observability"
)

// Recovery turns a handler panic into a logged 500 instead of a torn
// connection. Sits just inside RequestID so the log line carries the
// request id.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := observability.MustRecover(recover()); err != nil {
					logger.WithError(err).
						WithField("stack", string(debug.Stack())).
						WithField("path", r.URL.Path).
						WithField("request_id", contextkeys.GetRequestID(r.Context())).
						Error("handler panic")
					// The panic value stays in the log, not the body.
					httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
