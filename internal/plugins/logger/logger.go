// Package logger renders alerts as readable text blocks in the process log.
package logger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/dawidmalina/alertops/internal/alert"
	"github.com/dawidmalina/alertops/internal/plugin"
)

// Name is the path segment the plugin is served under.
const Name = "logger"

// Config holds the logger plugin options.
type Config struct {
	// Level is the log level alert entries are written at, error at most.
	Level logrus.Level `mapstructure:"level"`
	// IncludeLabels appends the sorted label list to each entry.
	IncludeLabels bool `mapstructure:"include_labels"`
	// IncludeAnnotations appends annotations other than title/summary/description.
	IncludeAnnotations bool `mapstructure:"include_annotations"`
}

// DefaultConfig returns the options used when none are configured.
func DefaultConfig() Config {
	return Config{
		Level:         logrus.InfoLevel,
		IncludeLabels: true,
	}
}

// Registration returns the registry entry for the logger plugin.
func Registration() plugin.Registration {
	return plugin.Registration{
		Name:        Name,
		Description: "Logs each alert as a human readable text block.",
		Factory:     New,
	}
}

// Handler writes one log entry per alert.
type Handler struct {
	cfg Config
	log logrus.FieldLogger
	now func() time.Time

	// mu keeps the entries of one payload together in the output.
	mu sync.Mutex
}

// New is the plugin.Factory for the logger plugin.
func New(env plugin.Env, opts plugin.Options) (plugin.Handler, error) {
	cfg := DefaultConfig()
	if err := plugin.DecodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	// panic and fatal would abort the caller instead of logging.
	if cfg.Level < logrus.ErrorLevel {
		return nil, fmt.Errorf("level %q is not allowed, use error or lower", cfg.Level)
	}
	log := env.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{cfg: cfg, log: log, now: time.Now}, nil
}

func (h *Handler) Handle(_ context.Context, p *alert.Payload) plugin.Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for _, a := range p.Alerts {
		h.log.WithFields(logrus.Fields{
			"alertname": a.Name(),
			"severity":  a.Labels["severity"],
			"status":    a.Status,
			"receiver":  p.Receiver,
		}).Log(h.cfg.Level, "\n"+Render(a, h.cfg, now))
	}
	return plugin.Success(len(p.Alerts), "alerts logged")
}

// Render formats a single alert as a markdown-style block:
//
//	*Alert:* <title> - `<severity>`
//	*Description:* <description>
//	*Details:*
//	  • *<label>:* `<value>`
func Render(a alert.Alert, cfg Config, now time.Time) string {
	var b strings.Builder

	title := firstNonEmpty(a.Annotations["title"], a.Annotations["summary"], a.Name(), "Alert")
	if sev := a.Labels["severity"]; sev != "" {
		fmt.Fprintf(&b, "*Alert:* %s - `%s`\n\n", title, sev)
	} else {
		fmt.Fprintf(&b, "*Alert:* %s\n\n", title)
	}

	fmt.Fprintf(&b, "*Status:* %s", a.Status)
	if !a.StartsAt.IsZero() {
		fmt.Fprintf(&b, " since %s", humanize.RelTime(a.StartsAt, now, "ago", "from now"))
	}
	if a.Resolved() && !a.EndsAt.IsZero() {
		fmt.Fprintf(&b, ", resolved %s", humanize.RelTime(a.EndsAt, now, "ago", "from now"))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "*Description:* %s\n", firstNonEmpty(a.Annotations["description"], "No description provided"))

	if cfg.IncludeAnnotations {
		writeSection(&b, "Annotations", lo.OmitByKeys(a.Annotations, []string{"title", "summary", "description"}))
	}
	if cfg.IncludeLabels {
		writeSection(&b, "Details", a.Labels)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, kv map[string]string) {
	if len(kv) == 0 {
		return
	}
	keys := lo.Keys(kv)
	sort.Strings(keys)

	fmt.Fprintf(b, "\n*%s:*\n", title)
	for _, k := range keys {
		fmt.Fprintf(b, "  • *%s:* `%s`\n", k, kv[k])
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
