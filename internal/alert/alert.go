package alert

import (
	"fmt"
	"time"

	"github.com/prometheus/common/model"
)

// Status is the firing state of an alert group or of a single alert.
type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	return s == StatusFiring || s == StatusResolved
}

// UnmarshalJSON rejects anything but a recognized status string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := unmarshalString(data, &raw); err != nil {
		return err
	}
	st := Status(raw)
	if !st.Valid() {
		return fmt.Errorf("unknown status %q: want firing|resolved", raw)
	}
	*s = st
	return nil
}

// LabelAlertName is the label Alertmanager uses to name an alert.
const LabelAlertName = "alertname"

// Alert is one individual alert within a group.
type Alert struct {
	Status       Status            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// Name returns the alertname label, or "" when the sender omitted it.
func (a Alert) Name() string {
	return a.Labels[LabelAlertName]
}

// Key identifies the alert across deliveries. It is the fingerprint sent by
// Alertmanager, or the label-set fingerprint when none was sent.
func (a Alert) Key() string {
	if a.Fingerprint != "" {
		return a.Fingerprint
	}
	ls := make(model.LabelSet, len(a.Labels))
	for k, v := range a.Labels {
		ls[model.LabelName(k)] = model.LabelValue(v)
	}
	return ls.Fingerprint().String()
}

// Resolved reports whether the alert has ended.
func (a Alert) Resolved() bool {
	return a.Status == StatusResolved
}

// Payload is one Alertmanager webhook delivery (schema version 4).
type Payload struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            Status            `json:"status"`
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// Firing returns the alerts of p that are still firing, in delivery order.
func (p *Payload) Firing() []Alert {
	out := make([]Alert, 0, len(p.Alerts))
	for _, a := range p.Alerts {
		if a.Status == StatusFiring {
			out = append(out, a)
		}
	}
	return out
}
