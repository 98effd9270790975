package httpapi

import (
	"net/http"
	"sort"

	"github.com/book-expert/voice-service/internal/store"
)

const (
	rootMessage       = "All working"
	statusOK          = "ok"
	statusDegraded    = "degraded"
	msgStatsFailed    = "Failed to load stats"
	logFmtCheckFailed = "Health check %s failed: %v"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Synthesis bool              `json:"synthesis"`
	Checks    map[string]string `json:"checks,omitempty"`
}

type statsResponse struct {
	Success bool         `json:"success"`
	Stats   *store.Stats `json:"stats"`
}

type notFoundResponse struct {
	Error  string `json:"error"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rootMessage))
}

// handleHealth runs every registered check. A failing check degrades the service
// with 503; missing synthesis is reported but is not a failure.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    statusOK,
		Synthesis: s.deps.Pipeline.Available(),
	}

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}

	sort.Strings(names)

	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}

	for _, name := range names {
		err := s.deps.Checks[name](r.Context())
		if err != nil {
			s.logger.Warn(logFmtCheckFailed, name, err)
			resp.Checks[name] = err.Error()
			resp.Status = statusDegraded

			continue
		}

		resp.Checks[name] = statusOK
	}

	code := http.StatusOK
	if resp.Status != statusOK {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Stats.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgStatsFailed, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{Error: msgRouteNotFound, Method: r.Method, Path: r.URL.Path})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, notFoundResponse{Error: msgMethodNotAllowed, Method: r.Method, Path: r.URL.Path})
}
