package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestInfoKey contextKey = "request_info"

// requestInfo is shared by every middleware of one request, so values set
// deep in the chain are visible to outer ones such as the access log.
type requestInfo struct {
	id     string
	client string
}

// RequestID injects a request ID into context and response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestInfoKey, &requestInfo{id: requestID})
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

func setClient(ctx context.Context, client string) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.client = client
		return ctx
	}
	return context.WithValue(ctx, requestInfoKey, &requestInfo{client: client})
}

// GetClient returns the authenticated client name from context.
func GetClient(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.client
	}
	return ""
}
