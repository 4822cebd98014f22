package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dawidmalina/alertops/internal/alert"
	"github.com/dawidmalina/alertops/internal/plugin"
)

var (
	ErrUnknownPlugin  = errors.New("unknown plugin")
	ErrPluginDisabled = errors.New("plugin disabled")
	ErrDraining       = errors.New("shutting down")
)

// Ack is the body of a 200 response. It only says the payload was accepted;
// the handler may not have run yet.
type Ack struct {
	Status         string `json:"status"`
	Plugin         string `json:"plugin"`
	DeliveryID     string `json:"delivery_id"`
	AlertsReceived int    `json:"alerts_received"`
}

// ErrorBody is the body of every non-200 response.
type ErrorBody struct {
	Status string `json:"status"`
	Plugin string `json:"plugin"`
	Error  string `json:"error"`
}

// Outcome is what the HTTP front end sends back for one request.
type Outcome struct {
	Code int
	Body interface{}
	Err  error
}

// Router resolves a plugin by name, validates the payload and schedules the
// handler without waiting for it.
//
// Router is safe for concurrent use. The enabled set it reads is immutable.
type Router struct {
	enabled *plugin.Enabled
	rec     Recorder
	log     logrus.FieldLogger

	newID func() string
	now   func() time.Time

	// ctx is handed to handlers; it is cancelled once Drain gives up.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex // orders wg.Add against Drain
	draining bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New creates a Router over enabled. rec may be nil.
func New(enabled *plugin.Enabled, rec Recorder, log logrus.FieldLogger) *Router {
	if rec == nil {
		rec = NopRecorder{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		enabled: enabled,
		rec:     rec,
		log:     log,
		newID:   uuid.NewString,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Route handles one delivery to /alert/{name}. It returns as soon as the
// handler has been scheduled; the handler's result is only visible through
// the Recorder.
//
// The name is resolved before the body is parsed, so an unknown name is 404
// and a disabled one 403 whatever the body holds.
func (r *Router) Route(name string, body []byte) Outcome {
	if _, ok := r.enabled.Registry().Resolve(name); !ok {
		return r.reject(name, http.StatusNotFound, ErrUnknownPlugin)
	}
	h, ok := r.enabled.Handler(name)
	if !ok {
		return r.reject(name, http.StatusForbidden, ErrPluginDisabled)
	}

	p, err := alert.Parse(body)
	if err != nil {
		return r.reject(name, http.StatusBadRequest, err)
	}

	id := r.newID()
	rec := Record{
		DeliveryID:  id,
		Plugin:      name,
		Stage:       StageDispatched,
		HTTPStatus:  http.StatusOK,
		GroupStatus: p.Status,
		Receiver:    p.Receiver,
		Alerts:      len(p.Alerts),
		Firing:      len(p.Firing()),
		Time:        r.now(),
	}

	if !r.schedule(h, rec, p) {
		return r.reject(name, http.StatusServiceUnavailable, ErrDraining)
	}

	return Outcome{
		Code: http.StatusOK,
		Body: Ack{
			Status:         "accepted",
			Plugin:         name,
			DeliveryID:     id,
			AlertsReceived: len(p.Alerts),
		},
	}
}

// Reject records a delivery refused before it reached Route, e.g. a body
// that could not be read, and builds the matching Outcome.
func (r *Router) Reject(name string, code int, err error) Outcome {
	return r.reject(name, code, err)
}

func (r *Router) reject(name string, code int, err error) Outcome {
	r.rec.Record(Record{
		Plugin:     name,
		Stage:      StageRejected,
		Reason:     err.Error(),
		HTTPStatus: code,
		Time:       r.now(),
	})
	return Outcome{
		Code: code,
		Body: ErrorBody{Status: "error", Plugin: name, Error: err.Error()},
		Err:  err,
	}
}

// schedule records the dispatch and starts the handler on its own goroutine.
// It reports false once Drain has begun.
func (r *Router) schedule(h plugin.Handler, rec Record, p *alert.Payload) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.draining {
		return false
	}
	r.wg.Add(1)
	r.inFlight.Add(1)
	r.rec.Record(rec)
	go r.run(h, rec, p)
	return true
}

func (r *Router) run(h plugin.Handler, rec Record, p *alert.Payload) {
	defer r.wg.Done()
	defer r.inFlight.Add(-1)

	start := r.now()
	res := r.invoke(h, rec, p)

	rec.Stage = StageCompleted
	rec.Duration = r.now().Sub(start)
	rec.Time = r.now()
	rec.Result = &ResultInfo{OK: res.OK(), Processed: res.Processed, Message: res.Message}
	if res.Err != nil {
		rec.Result.Error = res.Err.Error()
	}
	r.rec.Record(rec)
}

// invoke calls the handler and turns a panic into a failed Result.
func (r *Router) invoke(h plugin.Handler, rec Record, p *alert.Payload) (res plugin.Result) {
	defer func() {
		if v := recover(); v != nil {
			r.log.WithFields(logrus.Fields{
				"plugin":      rec.Plugin,
				"delivery_id": rec.DeliveryID,
				"panic":       v,
			}).Errorf("handler panicked\n%s", debug.Stack())
			res = plugin.Failure(fmt.Errorf("handler panic: %v", v))
		}
	}()
	return h.Handle(r.ctx, p)
}

// InFlight returns the number of handler invocations still running.
func (r *Router) InFlight() int { return int(r.inFlight.Load()) }

// Drain stops accepting deliveries and waits for running handlers. If ctx
// ends first the handlers' context is cancelled, remaining work is abandoned
// and ctx.Err() is returned.
func (r *Router) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		r.log.WithField("in_flight", r.InFlight()).Warn("drain grace period expired, abandoning handlers")
		return ctx.Err()
	}
}
