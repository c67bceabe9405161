package middleware

import (
	"io"

	"github.com/harborlight/beacon/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}
