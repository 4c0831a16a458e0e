package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/marketauth"
)

// ClientContext attaches the caller's address and User-Agent to the request
// context. With trustForwarded set, the first X-Forwarded-For entry wins
// over RemoteAddr; only enable it behind a proxy that overwrites the header.
func ClientContext(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := marketauth.WithClientIP(r.Context(), ClientIP(r, trustForwarded))
			ctx = marketauth.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the request's origin address without the port.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
