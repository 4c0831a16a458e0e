package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/MrEthical07/marketauth/logging"
)

// Recover keeps a handler panic from killing the process and answers 500.
func Recover(log logging.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "panic recovered",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
