package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// authMiddleware rejects requests that fail the configured checks.
func authMiddleware(cfg Config, trusted proxies, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r, trusted)

			// Check IP whitelist if configured
			if len(cfg.AllowedIPs) > 0 && !isIPAllowed(clientIP, cfg.AllowedIPs) {
				log.Warnf("Rejected request from unauthorized IP: %s", clientIP)
				jsonErr(w, http.StatusForbidden, "forbidden")
				return
			}

			if cfg.WebhookAPIKey != "" {
				apiKey := r.Header.Get("X-API-Key")
				if apiKey == "" {
					authHeader := r.Header.Get("Authorization")
					if strings.HasPrefix(authHeader, "Bearer ") {
						apiKey = strings.TrimPrefix(authHeader, "Bearer ")
					}
				}
				if apiKey != cfg.WebhookAPIKey {
					log.Warnf("Rejected request with invalid API key from IP: %s", clientIP)
					jsonErr(w, http.StatusUnauthorized, "unauthorized")
					return
				}
			}

			if cfg.RequireHTTPS && !isHTTPS(r, trusted) {
				log.Warnf("Rejected non-HTTPS request from IP: %s", clientIP)
				jsonErr(w, http.StatusBadRequest, "HTTPS required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// proxies are the networks whose forwarding headers are believed.
type proxies []*net.IPNet

// parseProxies accepts IPs and CIDRs. Invalid entries are returned separately.
func parseProxies(list []string) (proxies, []string) {
	var (
		out     proxies
		invalid []string
	)
	for _, s := range list {
		s = strings.TrimSpace(s)
		if _, ipNet, err := net.ParseCIDR(s); err == nil {
			out = append(out, ipNet)
			continue
		}
		ip := net.ParseIP(s)
		if ip == nil {
			invalid = append(invalid, s)
			continue
		}
		bits := 8 * net.IPv6len
		if ip4 := ip.To4(); ip4 != nil {
			ip, bits = ip4, 8*net.IPv4len
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out, invalid
}

func (p proxies) contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// getClientIP returns the address of the connecting peer. Forwarding headers
// are only used when the peer is a trusted proxy; X-Forwarded-For is then
// read from the nearest hop backwards, skipping trusted proxies.
func getClientIP(r *http.Request, trusted proxies) string {
	peer := remoteHost(r)
	if !trusted.contains(peer) {
		return peer
	}

	if forwarded := strings.Join(r.Header.Values("X-Forwarded-For"), ","); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := strings.TrimSpace(hops[i])
			if ip != "" && !trusted.contains(ip) {
				return ip
			}
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}

// isHTTPS reports whether the request arrived over TLS, directly or through
// a trusted proxy that terminated it.
func isHTTPS(r *http.Request, trusted proxies) bool {
	if r.TLS != nil {
		return true
	}
	return trusted.contains(remoteHost(r)) && r.Header.Get("X-Forwarded-Proto") == "https"
}

// isIPAllowed checks if an IP is in the allowed list.
// Supports CIDR notation (e.g., "10.0.0.0/8") and exact IPs.
func isIPAllowed(clientIP string, allowedIPs []string) bool {
	parsed := net.ParseIP(clientIP)
	if parsed == nil {
		return false
	}

	for _, allowed := range allowedIPs {
		allowed = strings.TrimSpace(allowed)

		if strings.Contains(allowed, "/") {
			_, ipNet, err := net.ParseCIDR(allowed)
			if err == nil && ipNet.Contains(parsed) {
				return true
			}
		} else if ip := net.ParseIP(allowed); ip != nil && ip.Equal(parsed) {
			return true
		}
	}

	return false
}
