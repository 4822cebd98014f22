package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
  "version": "4",
  "groupKey": "{}:{alertname=\"InstanceDown\"}",
  "truncatedAlerts": 0,
  "status": "firing",
  "receiver": "webhook-receiver",
  "groupLabels": {"alertname": "InstanceDown"},
  "commonLabels": {"alertname": "InstanceDown", "severity": "critical"},
  "commonAnnotations": {"summary": "Instance server1:9090 down"},
  "externalURL": "http://alertmanager:9093",
  "alerts": [
    {
      "status": "firing",
      "labels": {"alertname": "InstanceDown", "instance": "server1:9090", "severity": "critical"},
      "annotations": {"summary": "Instance server1:9090 down", "description": "down for 5m"},
      "startsAt": "2026-01-28T10:00:00.000Z",
      "endsAt": "0001-01-01T00:00:00Z",
      "generatorURL": "http://prometheus:9090/graph",
      "fingerprint": "abc123def456"
    },
    {
      "status": "resolved",
      "labels": {"alertname": "DiskFull", "instance": "server2:9100"},
      "annotations": {},
      "startsAt": "2026-01-28T09:00:00Z",
      "endsAt": "2026-01-28T09:30:00Z"
    }
  ]
}`

func TestParse_FullPayload(t *testing.T) {
	p, err := Parse([]byte(fullPayload))
	require.NoError(t, err)

	assert.Equal(t, "4", p.Version)
	assert.Equal(t, StatusFiring, p.Status)
	assert.Equal(t, "webhook-receiver", p.Receiver)
	assert.Equal(t, "http://alertmanager:9093", p.ExternalURL)
	assert.Equal(t, "InstanceDown", p.GroupLabels["alertname"])
	require.Len(t, p.Alerts, 2)

	first := p.Alerts[0]
	assert.Equal(t, StatusFiring, first.Status)
	assert.Equal(t, "InstanceDown", first.Name())
	assert.Equal(t, map[string]string{
		"alertname": "InstanceDown",
		"instance":  "server1:9090",
		"severity":  "critical",
	}, first.Labels)
	assert.Equal(t, "down for 5m", first.Annotations["description"])
	assert.Equal(t, time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC), first.StartsAt.UTC())
	assert.True(t, first.EndsAt.IsZero())
	assert.Equal(t, "abc123def456", first.Key())

	second := p.Alerts[1]
	assert.True(t, second.Resolved())
	assert.Equal(t, "DiskFull", second.Name())
	assert.Equal(t, time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC), second.EndsAt.UTC())
}

func TestParse_MinimalScenario(t *testing.T) {
	body := `{"status":"firing","receiver":"x","alerts":[{"status":"firing","labels":{"alertname":"TestAlert","severity":"warning"},"annotations":{}}]}`
	p, err := Parse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "x", p.Receiver)
	require.Len(t, p.Alerts, 1)
	assert.Equal(t, "TestAlert", p.Alerts[0].Name())
	assert.Equal(t, "warning", p.Alerts[0].Labels["severity"])
	assert.Empty(t, p.Alerts[0].Annotations)
}

func TestParse_PreservesAlertOrder(t *testing.T) {
	body := `{"status":"firing","alerts":[
		{"labels":{"alertname":"C"}},
		{"labels":{"alertname":"A"}},
		{"labels":{"alertname":"B"}}
	]}`
	p, err := Parse([]byte(body))
	require.NoError(t, err)

	names := make([]string, 0, len(p.Alerts))
	for _, a := range p.Alerts {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestParse_Normalizes(t *testing.T) {
	p, err := Parse([]byte(`{"status":"resolved","alerts":[{"labels":{"alertname":"X"}}]}`))
	require.NoError(t, err)

	assert.NotNil(t, p.GroupLabels)
	assert.NotNil(t, p.CommonLabels)
	assert.NotNil(t, p.CommonAnnotations)
	require.Len(t, p.Alerts, 1)
	assert.Equal(t, StatusResolved, p.Alerts[0].Status, "alert inherits group status")
	assert.NotNil(t, p.Alerts[0].Annotations)
}

func TestParse_AlertsAbsentOrNull(t *testing.T) {
	for _, body := range []string{
		`{"status":"firing"}`,
		`{"status":"firing","alerts":null}`,
		`{"status":"firing","alerts":[]}`,
	} {
		p, err := Parse([]byte(body))
		require.NoError(t, err, body)
		assert.NotNil(t, p.Alerts, body)
		assert.Empty(t, p.Alerts, body)
	}
}

func TestParse_MissingAlertname(t *testing.T) {
	p, err := Parse([]byte(`{"status":"firing","alerts":[{"status":"firing","labels":{"severity":"info"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "", p.Alerts[0].Name())
	assert.NotEmpty(t, p.Alerts[0].Key(), "label fingerprint is used as key")
}

func TestParse_IgnoresUnknownFields(t *testing.T) {
	p, err := Parse([]byte(`{"status":"firing","futureField":{"nested":true},"alerts":[{"status":"firing","extra":1}]}`))
	require.NoError(t, err)
	assert.Len(t, p.Alerts, 1)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":            `not-json`,
		"empty":               ``,
		"whitespace":          "  \n",
		"missing status":      `{"receiver":"x","alerts":[]}`,
		"unknown status":      `{"status":"pending","alerts":[]}`,
		"empty status":        `{"status":"","alerts":[]}`,
		"status not string":   `{"status":1}`,
		"alerts not array":    `{"status":"firing","alerts":{"status":"firing"}}`,
		"alerts string":       `{"status":"firing","alerts":"none"}`,
		"unknown alert state": `{"status":"firing","alerts":[{"status":"pending"}]}`,
		"labels not object":   `{"status":"firing","alerts":[{"status":"firing","labels":["a"]}]}`,
		"bad timestamp":       `{"status":"firing","alerts":[{"status":"firing","startsAt":"yesterday"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := Parse([]byte(body))
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload), "errors.Is ErrInvalidPayload")

			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestAlertKey_StableForSameLabels(t *testing.T) {
	a := Alert{Labels: map[string]string{"alertname": "X", "job": "node"}}
	b := Alert{Labels: map[string]string{"job": "node", "alertname": "X"}}
	c := Alert{Labels: map[string]string{"alertname": "Y", "job": "node"}}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestPayloadFiring(t *testing.T) {
	p, err := Parse([]byte(fullPayload))
	require.NoError(t, err)

	firing := p.Firing()
	require.Len(t, firing, 1)
	assert.Equal(t, "InstanceDown", firing[0].Name())
}
