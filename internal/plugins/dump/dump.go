package dump

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/dawidmalina/alertops/internal/alert"
	"github.com/dawidmalina/alertops/internal/plugin"
)

const Name = "dump"

// Config holds the dump plugin options.
type Config struct {
	Indent bool `mapstructure:"indent"`
}

// Registration returns the registry entry for the dump plugin.
func Registration() plugin.Registration {
	return plugin.Registration{
		Name:        Name,
		Description: "Writes the normalized payload as JSON to stdout.",
		Factory:     New,
	}
}

// Handler writes each payload as one JSON document.
type Handler struct {
	cfg Config

	mu  sync.Mutex
	out io.Writer
}

// New is the plugin.Factory for the dump plugin.
func New(env plugin.Env, opts plugin.Options) (plugin.Handler, error) {
	cfg := Config{Indent: true}
	if err := plugin.DecodeOptions(opts, &cfg); err != nil {
		return nil, err
	}
	if env.Stdout == nil {
		return nil, errors.New("dump: no output writer")
	}
	return &Handler{cfg: cfg, out: env.Stdout}, nil
}

func (h *Handler) Handle(_ context.Context, p *alert.Payload) plugin.Result {
	var (
		data []byte
		err  error
	)
	if h.cfg.Indent {
		data, err = json.MarshalIndent(p, "", "  ")
	} else {
		data, err = json.Marshal(p)
	}
	if err != nil {
		return plugin.Failure(errors.Wrap(err, "encode payload"))
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.out.Write(data); err != nil {
		return plugin.Failure(errors.Wrap(err, "write payload"))
	}
	return plugin.Success(len(p.Alerts), "payload dumped")
}
