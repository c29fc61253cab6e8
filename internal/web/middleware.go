package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/metrics"
)

// slowRequest is the duration above which a request is logged as a warning.
const slowRequest = time.Second

// instrument records request metrics and logs each request.
func instrument(rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r)
			start := time.Now()

			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			took := time.Since(start)

			rec.ObserveHTTP(route, r.Method, rw.status, took)

			switch {
			case rw.status >= 500:
				debug.Logger().Error().Str("route", route).Str("method", r.Method).
					Int("status", rw.status).Dur("duration", took).Msg("http request failed")
			case took >= slowRequest && !rw.hijacked && !rw.flushed:
				debug.Logger().Warn().Str("route", route).Str("method", r.Method).
					Int("status", rw.status).Dur("duration", took).Msg("http request slow")
			default:
				debug.Trace("%s %s -> %d (%s)", r.Method, r.URL.Path, rw.status, took)
			}
		})
	}
}

// routeLabel uses the route template to keep label cardinality low.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// statusWriter remembers the status code. It keeps Flush and Hijack
// available for SSE and websockets.
type statusWriter struct {
	http.ResponseWriter
	status   int
	wrote    bool
	flushed  bool
	hijacked bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	w.flushed = true
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.hijacked = true
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
