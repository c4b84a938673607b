package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"radhttpd/internal/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// statusWriter records the status and size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// validRequestID accepts short printable IDs from clients.
func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// withRequestLog tags each request with an ID and writes an access log line.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = logging.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(logging.ContextWithRequestID(r.Context(), id))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		s.log.WithRequestID(id).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// panicHandler turns a handler panic into a 500 response.
func (s *Server) panicHandler(w http.ResponseWriter, r *http.Request, recovered any) {
	s.log.WithContext(r.Context()).Error("handler panic",
		"path", r.URL.Path,
		"panic", fmt.Sprint(recovered),
		"stack", string(debug.Stack()),
	)
	s.metrics.ObserveError(string(KindInternal))
	writeJSON(w, http.StatusInternalServerError, &Error{
		Message: "internal error",
		Kind:    KindInternal,
		Code:    http.StatusInternalServerError,
	})
}
