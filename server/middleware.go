package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justinas/alice"
	"go.uber.org/zap"
)

// TraceIDHeader is the header alb uses to carry the request trace id.
const TraceIDHeader = "X-Amzn-Trace-Id"

// NewTraceID returns an alb style trace id for a request arriving at now.
func NewTraceID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("Root=1-%08x-%s", now.Unix(), id[:24])
}

// TraceID adds an X-Amzn-Trace-Id header to requests that don't carry one.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(TraceIDHeader) == "" {
			r.Header.Set(TraceIDHeader, NewTraceID(time.Now()))
		}

		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	if sw.status == 0 {
		sw.status = status
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

// AccessLog returns a middleware writing one debug line per request.
func AccessLog(logger *zap.Logger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.RequestURI()),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("trace", r.Header.Get(TraceIDHeader)),
			)
		})
	}
}

// Chain is the middleware every request passes before dispatch.
func Chain(logger *zap.Logger) alice.Chain {
	return alice.New(TraceID, AccessLog(logger))
}
