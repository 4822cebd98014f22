package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is matched by every error returned from Parse.
var ErrInvalidPayload = errors.New("invalid alert payload")

// ParseError describes why a webhook body was rejected.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidPayload) hold for any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrInvalidPayload }

// Parse decodes and validates a webhook body. Unknown fields are ignored.
// On success the alerts slice and every label/annotation map are non-nil.
func Parse(data []byte) (*Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Reason: "empty body"}
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParseError{Reason: "malformed json", Err: err}
	}
	if p.Status == "" {
		return nil, &ParseError{Reason: "missing required field \"status\""}
	}

	normalize(&p)
	return &p, nil
}

// normalize fills nil collections and lets alerts without a status inherit
// the group status.
func normalize(p *Payload) {
	if p.Alerts == nil {
		p.Alerts = []Alert{}
	}
	p.GroupLabels = orEmpty(p.GroupLabels)
	p.CommonLabels = orEmpty(p.CommonLabels)
	p.CommonAnnotations = orEmpty(p.CommonAnnotations)

	for i := range p.Alerts {
		a := &p.Alerts[i]
		if a.Status == "" {
			a.Status = p.Status
		}
		a.Labels = orEmpty(a.Labels)
		a.Annotations = orEmpty(a.Annotations)
	}
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func unmarshalString(data []byte, v *string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	return nil
}
