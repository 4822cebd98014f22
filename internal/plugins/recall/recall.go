// Package recall keeps a bounded in-memory history of received alerts and
// serves it under /alert/recall.
package recall

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dawidmalina/alertops/internal/alert"
	"github.com/dawidmalina/alertops/internal/plugin"
)

const Name = "recall"

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Config holds the recall plugin options.
type Config struct {
	// MaxFingerprints bounds the number of distinct alerts kept.
	MaxFingerprints int `mapstructure:"max_fingerprints"`
	// MaxHistory bounds the number of entries kept per alert.
	MaxHistory int `mapstructure:"max_history"`
}

// Registration returns the registry entry for the recall plugin.
func Registration() plugin.Registration {
	return plugin.Registration{
		Name:        Name,
		Description: "Keeps recent alert history in memory and serves it over HTTP.",
		Factory:     New,
	}
}

// Handler stores received alerts and serves query routes.
type Handler struct {
	store *Store
	log   logrus.FieldLogger
}

// New is the plugin.Factory for the recall plugin.
func New(env plugin.Env, opts plugin.Options) (plugin.Handler, error) {
	cfg := Config{MaxFingerprints: 1000, MaxHistory: 50}
	if err := plugin.DecodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxFingerprints < 1 {
		return nil, errors.Errorf("max_fingerprints must be positive, got %d", cfg.MaxFingerprints)
	}
	if cfg.MaxHistory < 1 {
		return nil, errors.Errorf("max_history must be positive, got %d", cfg.MaxHistory)
	}

	store, err := NewStore(cfg.MaxFingerprints, cfg.MaxHistory)
	if err != nil {
		return nil, errors.Wrap(err, "create store")
	}
	log := env.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{store: store, log: log}, nil
}

// Store exposes the underlying store.
func (h *Handler) Store() *Store { return h.store }

func (h *Handler) Handle(_ context.Context, p *alert.Payload) plugin.Result {
	n := h.store.Add(p)
	h.log.WithField("stored", n).Debug("alerts stored")
	return plugin.Success(n, "stored "+strconv.Itoa(n)+" alert(s)")
}

// Close drops the stored history.
func (h *Handler) Close() error {
	h.store.Purge()
	return nil
}

// Routes mounts the query endpoints relative to /alert/recall.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleQuery)
	r.Get("/stats", h.handleStats)
	r.Get("/{fingerprint}", h.handleHistory)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := Query{Limit: defaultLimit}

	params := r.URL.Query()
	if s := params.Get("status"); s != "" {
		st := alert.Status(s)
		if !st.Valid() {
			jsonErr(w, http.StatusBadRequest, "status must be firing or resolved")
			return
		}
		q.Status = st
	}
	q.AlertName = params.Get("alertname")
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			jsonErr(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		q.Limit = n
	}

	entries := h.store.Query(q)
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"plugin": Name,
		"count":  len(entries),
		"alerts": entries,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"plugin":     Name,
		"statistics": h.store.Stats(),
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	hist, ok := h.store.History(fp)
	if !ok {
		jsonResp(w, http.StatusNotFound, map[string]interface{}{
			"status":      "not_found",
			"plugin":      Name,
			"message":     "no alerts found for fingerprint: " + fp,
			"fingerprint": fp,
			"count":       0,
			"history":     []Entry{},
		})
		return
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"plugin":      Name,
		"fingerprint": fp,
		"count":       len(hist),
		"history":     hist,
	})
}

func jsonResp(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, map[string]string{"status": "error", "plugin": Name, "error": msg})
}
