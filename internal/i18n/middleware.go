package i18n

import "net/http"

// Middleware picks the message language per request from the "ui" query
// parameter or the Accept-Language header.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := NewLocalizer(r.URL.Query().Get("ui"), r.Header.Get("Accept-Language"))
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
