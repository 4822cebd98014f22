package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"

	"github.com/dawidmalina/alertops/internal/dispatch"
	"github.com/dawidmalina/alertops/internal/plugin"
)

// DefaultMaxBodyBytes caps webhook bodies when Config.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 1 << 20

// Config holds the HTTP-level settings.
type Config struct {
	Version string

	// Authentication of /alert routes. Each check is skipped when unset.
	WebhookAPIKey string
	AllowedIPs    []string
	RequireHTTPS  bool

	// TrustedProxies lists the IPs/CIDRs allowed to set X-Forwarded-For,
	// X-Real-IP and X-Forwarded-Proto. Headers from anyone else are ignored.
	TrustedProxies []string

	MaxBodyBytes       int64
	RateLimitPerSecond int
}

func (c Config) authEnabled() bool {
	return c.WebhookAPIKey != "" || len(c.AllowedIPs) > 0 || c.RequireHTTPS
}

// Deps are the collaborators the routes delegate to. Metrics and Stream are
// optional; their routes are not mounted when nil.
type Deps struct {
	Router  *dispatch.Router
	Enabled *plugin.Enabled
	Metrics http.Handler
	Stream  http.Handler
	Logger  logrus.FieldLogger
}

type server struct {
	cfg     Config
	router  *dispatch.Router
	enabled *plugin.Enabled
	log     logrus.FieldLogger
}

// New builds the HTTP handler for the whole service.
func New(cfg Config, deps Deps) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &server{
		cfg:     cfg,
		router:  deps.Router,
		enabled: deps.Enabled,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Stream != nil {
		r.Method(http.MethodGet, "/ws", deps.Stream)
	}

	trusted, invalid := parseProxies(cfg.TrustedProxies)
	if len(invalid) > 0 {
		log.Warnf("Ignoring invalid trusted proxies: %v", invalid)
	}

	// auth guards every /alert route; the rate limit applies to deliveries.
	var auth, deliver []func(http.Handler) http.Handler
	if cfg.authEnabled() {
		auth = append(auth, authMiddleware(cfg, trusted, log))
		log.Infof("Webhook authentication enabled (API Key: %v, IP Whitelist: %v, Require HTTPS: %v)",
			cfg.WebhookAPIKey != "", len(cfg.AllowedIPs) > 0, cfg.RequireHTTPS)
	}
	if cfg.RateLimitPerSecond > 0 {
		deliver = append(deliver, httprate.Limit(cfg.RateLimitPerSecond, time.Second,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return getClientIP(r, trusted), nil
			}),
		))
	}

	r.Route("/alert", func(r chi.Router) {
		r.Use(auth...)
		for _, name := range s.enabled.Names() {
			h, _ := s.enabled.Handler(name)
			rp, ok := h.(plugin.RouteProvider)
			if !ok {
				continue
			}
			r.Route("/"+name, func(sr chi.Router) {
				sr.With(deliver...).Post("/", s.handleAlert(func(*http.Request) string { return name }))
				rp.Routes(sr)
			})
		}
		r.With(deliver...).Post("/{pluginName}", s.handleAlert(func(req *http.Request) string {
			return chi.URLParam(req, "pluginName")
		}))
	})

	return r
}
