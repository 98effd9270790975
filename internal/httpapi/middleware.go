package httpapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/voice-service/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	headerOrigin        = "Origin"
	headerUserID        = "X-User-ID"
	headerTextLength    = "X-Text-Length"
	headerChunkCount    = "X-Chunk-Count"
	headerLikelyScanned = "X-Likely-Scanned"
	allowedMethods      = "GET, POST, PUT, DELETE, OPTIONS"
	allowedHeaders      = "Content-Type, Authorization, X-User-ID, X-Request-ID"
	logFmtRequest       = "%s %s -> %d (%d bytes) in %s [%s]"
	logFmtPanic         = "Recovered panic on %s %s: %v"
)

var exposedHeaders = strings.Join([]string{headerTextLength, headerChunkCount, headerLikelyScanned}, ", ")

// requestLogger logs one line per request and counts it by status code.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.RecordHTTPRequest(r.Method, strconv.Itoa(status))

		line := []any{r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(started), middleware.GetReqID(r.Context())}
		if status >= http.StatusInternalServerError {
			s.logger.Error(logFmtRequest, line...)

			return
		}

		s.logger.Info(logFmtRequest, line...)
	})
}

// recoverer turns a panicking handler into the generic JSON 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.logger.Error(logFmtPanic, r.Method, r.URL.Path, rec)
			writeError(w, http.StatusInternalServerError, msgSomethingWrong, "")
		}()

		next.ServeHTTP(w, r)
	})
}

// cors allows the configured origins, or any origin when none are configured, and
// answers preflight requests.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(headerOrigin)
		if origin != "" && s.originAllowed(origin) {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Expose-Headers", exposedHeaders)
			header.Add("Vary", headerOrigin)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			header := w.Header()
			header.Set("Access-Control-Allow-Methods", allowedMethods)
			header.Set("Access-Control-Allow-Headers", allowedHeaders)
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}

	return slices.Contains(allowed, origin) || slices.Contains(allowed, "*")
}

// limitBody caps request bodies at the configured size.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
		}

		next.ServeHTTP(w, r)
	})
}

// requireUser rejects requests without a user id.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get(headerUserID)) == "" {
			writeError(w, http.StatusUnauthorized, msgUserRequired, "")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(headerUserID))
}
