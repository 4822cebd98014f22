package server

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsIPAllowed(t *testing.T) {
	allowed := []string{"10.0.0.0/8", " 192.168.1.5 ", "2001:db8::/32"}

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.5", true},
		{"192.168.1.6", false},
		{"2001:db8::1", true},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isIPAllowed(tt.ip, allowed), tt.ip)
	}
}

func TestGetClientIP(t *testing.T) {
	trusted, invalid := parseProxies([]string{"10.0.0.1", "172.16.0.0/12"})
	require.Empty(t, invalid)

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:   "direct peer",
			remote: "1.2.3.4:5678",
			want:   "1.2.3.4",
		},
		{
			name:    "headers from untrusted peer are ignored",
			remote:  "203.0.113.7:5555",
			headers: map[string]string{"X-Forwarded-For": "10.1.2.3", "X-Real-IP": "10.1.2.4"},
			want:    "203.0.113.7",
		},
		{
			name:    "trusted proxy forwards the client",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Forwarded-For": "9.9.9.9"},
			want:    "9.9.9.9",
		},
		{
			name:    "client-supplied hops before the proxy are skipped",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Forwarded-For": "10.1.2.3, 9.9.9.9, 172.16.5.5"},
			want:    "9.9.9.9",
		},
		{
			name:    "real ip from trusted proxy",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Real-IP": "5.6.7.8"},
			want:    "5.6.7.8",
		},
		{
			name:   "trusted proxy without headers",
			remote: "10.0.0.1:80",
			want:   "10.0.0.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req, trusted))
		})
	}
}

func TestParseProxies(t *testing.T) {
	trusted, invalid := parseProxies([]string{"192.168.0.0/16", " 10.0.0.1 ", "::1", "proxy.local"})

	assert.Equal(t, []string{"proxy.local"}, invalid)
	assert.True(t, trusted.contains("192.168.3.4"))
	assert.True(t, trusted.contains("10.0.0.1"))
	assert.False(t, trusted.contains("10.0.0.2"))
	assert.True(t, trusted.contains("::1"))
	assert.False(t, trusted.contains("garbage"))
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	log, _ := test.NewNullLogger()

	tests := []struct {
		name  string
		cfg   Config
		setup func(r *http.Request)
		want  int
	}{
		{
			name: "api key header",
			cfg:  Config{WebhookAPIKey: "k"},
			setup: func(r *http.Request) {
				r.Header.Set("X-API-Key", "k")
			},
			want: http.StatusOK,
		},
		{
			name: "bearer token",
			cfg:  Config{WebhookAPIKey: "k"},
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer k")
			},
			want: http.StatusOK,
		},
		{
			name:  "missing key",
			cfg:   Config{WebhookAPIKey: "k"},
			setup: func(*http.Request) {},
			want:  http.StatusUnauthorized,
		},
		{
			name: "ip allowed",
			cfg:  Config{AllowedIPs: []string{"10.0.0.0/8"}},
			setup: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.7:1234"
			},
			want: http.StatusOK,
		},
		{
			name: "ip refused",
			cfg:  Config{AllowedIPs: []string{"10.0.0.0/8"}},
			setup: func(r *http.Request) {
				r.RemoteAddr = "8.8.8.8:1234"
			},
			want: http.StatusForbidden,
		},
		{
			name:  "plain http refused",
			cfg:   Config{RequireHTTPS: true},
			setup: func(*http.Request) {},
			want:  http.StatusBadRequest,
		},
		{
			name: "tls accepted",
			cfg:  Config{RequireHTTPS: true},
			setup: func(r *http.Request) {
				r.TLS = &tls.ConnectionState{}
			},
			want: http.StatusOK,
		},
		{
			name: "https behind trusted proxy",
			cfg:  Config{RequireHTTPS: true, TrustedProxies: []string{"10.0.0.1"}},
			setup: func(r *http.Request) {
				r.RemoteAddr = "10.0.0.1:443"
				r.Header.Set("X-Forwarded-Proto", "https")
			},
			want: http.StatusOK,
		},
		{
			name: "forwarded proto from untrusted peer",
			cfg:  Config{RequireHTTPS: true},
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-Proto", "https")
			},
			want: http.StatusBadRequest,
		},
		{
			name: "spoofed forwarded-for from outside peer",
			cfg:  Config{AllowedIPs: []string{"10.0.0.0/8"}},
			setup: func(r *http.Request) {
				r.RemoteAddr = "203.0.113.7:5555"
				r.Header.Set("X-Forwarded-For", "10.1.2.3")
			},
			want: http.StatusForbidden,
		},
		{
			name: "spoofed real-ip from outside peer",
			cfg:  Config{AllowedIPs: []string{"10.0.0.0/8"}},
			setup: func(r *http.Request) {
				r.RemoteAddr = "203.0.113.7:5555"
				r.Header.Set("X-Real-IP", "10.1.2.3")
			},
			want: http.StatusForbidden,
		},
		{
			name: "client behind trusted proxy allowed",
			cfg:  Config{AllowedIPs: []string{"10.0.0.0/8"}, TrustedProxies: []string{"192.168.1.1"}},
			setup: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.1:5555"
				r.Header.Set("X-Forwarded-For", "10.1.2.3")
			},
			want: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/alert/logger", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			trusted, _ := parseProxies(tt.cfg.TrustedProxies)
			authMiddleware(tt.cfg, trusted, log)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
