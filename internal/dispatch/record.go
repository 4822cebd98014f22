package dispatch

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dawidmalina/alertops/internal/alert"
)

// Stage is how far a delivery got.
type Stage string

const (
	// StageRejected: the request was answered with an error and nothing ran.
	StageRejected Stage = "rejected"
	// StageDispatched: the payload was validated and the handler scheduled.
	StageDispatched Stage = "dispatched"
	// StageCompleted: the handler returned; Result is set.
	StageCompleted Stage = "completed"
)

// ResultInfo is the handler outcome carried by a completed Record.
type ResultInfo struct {
	OK        bool   `json:"ok"`
	Processed int    `json:"processed"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Record describes one step of one delivery. A dispatched delivery produces
// two records sharing a DeliveryID: StageDispatched, then StageCompleted.
type Record struct {
	DeliveryID  string        `json:"delivery_id,omitempty"`
	Plugin      string        `json:"plugin"`
	Stage       Stage         `json:"stage"`
	Reason      string        `json:"reason,omitempty"`
	HTTPStatus  int           `json:"http_status"`
	GroupStatus alert.Status  `json:"group_status,omitempty"`
	Receiver    string        `json:"receiver,omitempty"`
	Alerts      int           `json:"alerts"`
	Firing      int           `json:"firing"`
	Result      *ResultInfo   `json:"result,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Time        time.Time     `json:"time"`
}

// Recorder receives dispatch records. Record is called on the request path
// and on handler goroutines, so implementations must be concurrency-safe and
// must not block.
type Recorder interface {
	Record(rec Record)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(rec Record)

func (f RecorderFunc) Record(rec Record) { f(rec) }

// MultiRecorder fans a record out to several recorders in order.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(rec Record) {
	for _, r := range m {
		if r != nil {
			r.Record(rec)
		}
	}
}

// NopRecorder discards records.
type NopRecorder struct{}

func (NopRecorder) Record(Record) {}

// LogRecorder writes records to a logrus logger.
type LogRecorder struct {
	Logger logrus.FieldLogger
}

func (l LogRecorder) Record(rec Record) {
	fields := logrus.Fields{
		"plugin": rec.Plugin,
		"stage":  rec.Stage,
		"status": rec.HTTPStatus,
	}
	if rec.DeliveryID != "" {
		fields["delivery_id"] = rec.DeliveryID
	}

	switch rec.Stage {
	case StageRejected:
		fields["reason"] = rec.Reason
		l.Logger.WithFields(fields).Warn("delivery rejected")
	case StageDispatched:
		fields["alerts"] = rec.Alerts
		fields["firing"] = rec.Firing
		fields["group_status"] = rec.GroupStatus
		fields["receiver"] = rec.Receiver
		l.Logger.WithFields(fields).Info("delivery dispatched")
	case StageCompleted:
		fields["duration"] = rec.Duration
		if rec.Result == nil || !rec.Result.OK {
			if rec.Result != nil {
				fields["error"] = rec.Result.Error
			}
			l.Logger.WithFields(fields).Error("handler failed")
			return
		}
		fields["processed"] = rec.Result.Processed
		l.Logger.WithFields(fields).Info("handler completed")
	}
}
