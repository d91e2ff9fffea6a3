package middleware

import "net/http"

// VersionHeader names the response header carrying the server version.
const VersionHeader = "X-OpenGoat-Version"

// Version stamps every response with the server version.
func Version(version string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(VersionHeader, version)
			next.ServeHTTP(w, r)
		})
	}
}
