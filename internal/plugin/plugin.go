package plugin

import (
	"context"
	"encoding"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dawidmalina/alertops/internal/alert"
)

// Handler is the capability every plugin implements.
//
// Handle is called at most once per delivered payload, on a goroutine that is
// detached from the HTTP request. It may be called concurrently with itself,
// so any state shared between invocations must be safe for concurrent use.
// Faults are reported through the returned Result; a Handler must not panic.
type Handler interface {
	Handle(ctx context.Context, p *alert.Payload) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, p *alert.Payload) Result

func (f HandlerFunc) Handle(ctx context.Context, p *alert.Payload) Result { return f(ctx, p) }

// RouteProvider is implemented by plugins that serve extra HTTP routes under
// /alert/{name}. Routes are mounted only while the plugin is enabled.
type RouteProvider interface {
	Routes(r chi.Router)
}

// Result is the outcome of one Handle call: success with a count of the
// alerts processed, or failure with a reason.
type Result struct {
	Processed int
	Message   string
	Err       error
}

// Success builds a successful Result.
func Success(processed int, message string) Result {
	return Result{Processed: processed, Message: message}
}

// Failure builds a failed Result.
func Failure(err error) Result {
	if err == nil {
		err = errors.New("handler failed")
	}
	return Result{Err: err}
}

// Failuref builds a failed Result from a format string.
func Failuref(format string, args ...interface{}) Result {
	return Failure(fmt.Errorf(format, args...))
}

// OK reports whether the handler succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Options is a plugin's configuration block as read from the config file.
// The router never looks inside it; each factory decodes its own shape.
type Options map[string]interface{}

// Env carries process-wide collaborators handed to every factory.
type Env struct {
	Logger logrus.FieldLogger
	Stdout io.Writer
}

// withDefaults fills unset collaborators.
func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = logrus.StandardLogger()
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	return e
}

// Factory builds a handler instance from its options. It runs once, at startup.
type Factory func(env Env, opts Options) (Handler, error)

// DecodeOptions decodes opts into the struct pointed to by c. Keys that c does
// not declare are an error, so typos in the config file fail at startup.
// Strings decode into time.Duration and into any encoding.TextUnmarshaler.
func DecodeOptions(opts Options, c interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      c,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			decodeStringToTextUnmarshaler,
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize mapstructure decoder")
	}
	if err := dec.Decode(map[string]interface{}(opts)); err != nil {
		return errors.Wrapf(err, "failed to decode options into %T", c)
	}
	return nil
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func decodeStringToTextUnmarshaler(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	isPtr := true
	if t.Kind() != reflect.Ptr {
		isPtr = false
		t = reflect.PtrTo(t)
	}
	if !t.Implements(textUnmarshalerType) {
		return data, nil
	}
	value := reflect.New(t.Elem())
	tum := value.Interface().(encoding.TextUnmarshaler)
	if err := tum.UnmarshalText([]byte(data.(string))); err != nil {
		return nil, err
	}
	if isPtr {
		return value.Interface(), nil
	}
	return reflect.Indirect(value).Interface(), nil
}
