package web

import (
	"net/http"

	"github.com/USFAkbari/Excel-Tools/internal/core"
)

// clientInfo stores the caller's address and user agent in the request
// context for audit entries. RemoteAddr has already been resolved by
// TrustedRealIP.
func clientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithClientInfo(r.Context(), core.ClientInfo{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
