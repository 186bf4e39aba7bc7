package node

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ryandielhenn/cachelab/internal/telemetry"
)

const requestIDHeader = "X-Request-ID"

// observe tags the request with an ID, records metrics under the method's op
// label, recovers panics and logs one line per request.
func (n *Node) observe(next http.Handler) http.Handler {
	safe := n.recoverer(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := n.clock.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		sw := telemetry.NewStatusWriter(w)
		telemetry.Instrument(telemetry.MethodToOp(r.Method), safe).ServeHTTP(sw, r)

		lvl := zapcore.InfoLevel
		switch {
		case sw.Status() >= 500:
			lvl = zapcore.ErrorLevel
		case sw.Status() >= 400:
			lvl = zapcore.WarnLevel
		}
		if ce := n.log.Check(lvl, "request"); ce != nil {
			ce.Write(
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.Status()),
				zap.Int("bytes", sw.BytesWritten()),
				zap.Duration("duration", n.clock.Since(start)),
			)
		}
	})
}

// recoverer turns a panic in next into a generic 500 and counts it.
func (n *Node) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.ErrorsTotal.Inc()
			n.log.Error("panic serving request",
				zap.String("request_id", w.Header().Get(requestIDHeader)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
