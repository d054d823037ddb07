package api

import (
	"net"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"
)

// loopback addresses are always allowed
var loopback = []string{"127.0.0.1", "::1"}

// Whitelist rejects requests whose remote address matches none of the patterns with 403.
// Patterns are IPs, CIDRs or globs such as 192.168.1.*.
func Whitelist(patterns []string, log *zap.Logger) func(http.Handler) http.Handler {
	allowed := append(append([]string(nil), loopback...), patterns...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r.RemoteAddr)
			if !allowedAddress(ip, allowed) {
				log.Warn("rejected request from remote address", zap.String("remote", ip))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return strings.TrimPrefix(host, "::ffff:")
}

func allowedAddress(ip string, patterns []string) bool {
	parsed := net.ParseIP(ip)
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "::ffff:")
		if pattern == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(pattern); err == nil {
			if parsed != nil && network.Contains(parsed) {
				return true
			}
			continue
		}
		if p := net.ParseIP(pattern); p != nil {
			if parsed != nil && p.Equal(parsed) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, ip); ok {
			return true
		}
	}
	return false
}
