package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP replaces RemoteAddr with the client address as reported by the
// trusted proxy chain. trustedHops is the number of proxies in front of the
// service; each one is read from the right end of X-Forwarded-For, so entries
// a client prepends itself are never used. Zero hops ignores the header.
func ClientIP(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.RemoteAddr = clientAddr(r, trustedHops)
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request, trustedHops int) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	var forwarded []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(header, ",") {
			if part = strings.TrimSpace(part); part != "" {
				forwarded = append(forwarded, part)
			}
		}
	}

	for hop := 1; hop <= trustedHops && hop <= len(forwarded); hop++ {
		candidate := forwarded[len(forwarded)-hop]
		if net.ParseIP(candidate) == nil {
			break
		}
		addr = candidate
	}
	return addr
}
