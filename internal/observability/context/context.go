// Package context carries request-scoped identifiers for logging.
package context

import (
	stdcontext "context"

	"github.com/costscopehq/costscope/internal/auditcontext"
	"github.com/costscopehq/costscope/internal/orgcontext"
)

type requestIDKey struct{}

// WithRequestID stores the request ID used in log correlation.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, if any.
func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// OrgIDFromContext returns the active org ID as a string, or empty.
func OrgIDFromContext(ctx stdcontext.Context) string {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return ""
	}
	return orgID.String()
}

// ActorFromContext returns the acting principal recorded on the request.
func ActorFromContext(ctx stdcontext.Context) (string, string) {
	return auditcontext.ActorFromContext(ctx)
}
