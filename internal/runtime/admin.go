package runtime

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	configpkg "github.com/drblury/servicemirror/internal/runtime/config"
	"github.com/drblury/servicemirror/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
)

// StartAdminServer mounts the read-only JSON API over the view. The server is
// started by Start.
func (s *Service) StartAdminServer() {
	if !s.Conf.AdminEnabled {
		return
	}

	port := s.Conf.AdminPort
	if port == 0 {
		port = configpkg.DefaultAdminPort
	}

	s.RegisterHTTPHandler(port, "/api/services", s.withCORS(http.HandlerFunc(s.handleListServices)))
	s.RegisterHTTPHandler(port, "/api/services/{id}", s.withCORS(http.HandlerFunc(s.handleGetService)))
	s.RegisterHTTPHandler(port, "/api/pipeline", s.withCORS(http.HandlerFunc(s.handlePipeline)))
	s.RegisterHTTPHandler(port, "/api/transport", s.withCORS(http.HandlerFunc(s.handleTransport)))
}

func (s *Service) handleListServices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Services())
}

func (s *Service) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid service id", http.StatusBadRequest)
		return
	}
	record, ok := s.LookupService(id)
	if !ok {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Service) handlePipeline(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Service) handleTransport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.capabilities)
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		s.Logger.Error("Failed to encode admin response", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.Logger.Debug("Admin response write failed", loggingpkg.LogFields{"error": err.Error()})
	}
}

// withCORS sets CORS headers for allowed origins and answers preflight
// requests. Only GET is served.
func (s *Service) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := s.allowedCORSOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet, http.MethodHead:
			next.ServeHTTP(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func (s *Service) allowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil || requestOrigin == "" {
		return ""
	}
	for _, allowed := range s.Conf.AdminCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
