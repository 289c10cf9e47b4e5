package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

// SentryMiddleware runs each request in a transaction on its own hub. The
// transaction is renamed after the matched route so document ids do not
// explode the number of transaction names. Panics are reported and
// re-raised, 5xx responses are captured as messages.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
		}

		transaction := sentry.StartTransaction(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path), options...)
		defer transaction.Finish()

		r = r.WithContext(sentry.SetHubOnContext(transaction.Context(), hub))

		hub.Scope().SetRequest(r)
		if requestID := GetRequestID(r.Context()); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			transaction.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		if pattern := routePattern(r); pattern != "" {
			transaction.Name = fmt.Sprintf("%s %s", r.Method, pattern)
			transaction.Source = sentry.SourceRoute
		}
		if id := chi.URLParam(r, "id"); id != "" {
			transaction.SetTag("document_id", id)
		}
		if client := GetClient(r.Context()); client != "" {
			hub.Scope().SetTag("client", client)
			transaction.SetTag("client", client)
		}

		status := rec.Status()
		transaction.Status = sentry.HTTPtoSpanStatus(status)
		transaction.SetData("http.response.status_code", status)

		if status >= 500 {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", status, r.Method, transaction.Name))
		}
	})
}
