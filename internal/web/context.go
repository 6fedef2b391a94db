package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/logging"
)

// runContext prepares a request context for a pipeline run: the request
// logger (with request ID) and the document source travel with it.
func runContext(ctx context.Context, r *http.Request, source string) context.Context {
	logger := logging.WithFields(ctx, "remote_addr", r.RemoteAddr)
	ctx = core.ContextWithLogger(ctx, logger)
	if source != "" {
		ctx = core.ContextWithSource(ctx, source)
	}
	return ctx
}
