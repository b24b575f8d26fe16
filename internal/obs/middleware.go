package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

// StatusRecorder wraps ResponseWriter to capture status code and bytes written.
type StatusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
	wroteHeader  bool
}

// NewStatusRecorder constructs a status recorder with default 200 status.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if sr, ok := w.(*StatusRecorder); ok {
		return sr
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader stores the first status code before delegating.
func (sr *StatusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.status = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write records the number of bytes written.
func (sr *StatusRecorder) Write(p []byte) (int, error) {
	sr.wroteHeader = true
	n, err := sr.ResponseWriter.Write(p)
	sr.bytesWritten += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *StatusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// Status returns the response status code.
func (sr *StatusRecorder) Status() int { return sr.status }

// BytesWritten returns the number of bytes written to the client.
func (sr *StatusRecorder) BytesWritten() int64 { return sr.bytesWritten }

// HTTPObs instruments HTTP handlers with metrics.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

// Middleware records request counts, latency and in-flight requests per
// matched route. Unmatched requests share the "unknown" route label.
func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		o.Metrics.InFlight.Inc()
		start := time.Now()
		defer o.Metrics.InFlight.Dec()
		next.ServeHTTP(recorder, r)

		route := routeLabel(r, "unknown")
		status := strconv.Itoa(recorder.Status())
		o.Metrics.ReqTotal.WithLabelValues(r.Method, route, status).Inc()
		o.Metrics.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
	})
}

// RoutePatternMiddleware installs the per-request route slot shared by the
// tracing, metrics and logging middlewares.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, ok := ctx.Value(routeKey{}).(*routeSlot); !ok {
			ctx = WithRoutePattern(ctx, "")
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TracingMiddleware continues the caller's trace and starts a server span per
// request. The span is renamed to the route pattern once routing is done.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("pos.http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		recorder := NewStatusRecorder(w)
		req := r.WithContext(ctx)
		next.ServeHTTP(recorder, req)

		route := routeLabel(req, r.URL.Path)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", recorder.Status()),
		)
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			span.SetAttributes(attribute.String("http.request_id", reqID))
		}
		if id, ok := session.FromContext(req.Context()); ok {
			span.SetAttributes(attribute.String("pos.session_id", id))
		}
		if recorder.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.Status()))
		}
	})
}
