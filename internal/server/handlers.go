package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dawidmalina/alertops/internal/dispatch"
)

// ErrBodyTooLarge is reported when a webhook body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

func (s *server) handleAlert(pluginName func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pluginName(r)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		var out dispatch.Outcome
		switch {
		case err == nil:
			out = s.router.Route(name, body)
		case !s.enabled.IsEnabled(name):
			// The name decides the answer before the body does.
			out = s.router.Route(name, nil)
		default:
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				out = s.router.Reject(name, http.StatusRequestEntityTooLarge, ErrBodyTooLarge)
			} else {
				out = s.router.Reject(name, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
			}
		}
		jsonResp(w, out.Code, out.Body)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		PluginsLoaded: s.enabled.Len(),
	})
}

func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, IndexResponse{
		Service: "alertops",
		Version: s.cfg.Version,
		Status:  "running",
		Plugins: s.enabled.Names(),
		Endpoints: map[string]string{
			"health":  "/health",
			"metrics": "/metrics",
			"stream":  "/ws",
			"alerts":  "/alert/{pluginName}",
		},
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	PluginsLoaded int    `json:"plugins_loaded"`
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Plugins   []string          `json:"plugins"`
	Endpoints map[string]string `json:"endpoints"`
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, dispatch.ErrorBody{Status: "error", Error: msg})
}
