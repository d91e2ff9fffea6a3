package middleware

import "net/http"

// Credentials verifies basic-auth credentials. With authentication
// disabled in settings the verifier accepts everything, so the
// middleware can stay in the chain unconditionally.
type Credentials interface {
	Verify(username, password string) bool
}

// CredentialsFunc adapts a function to Credentials.
type CredentialsFunc func(username, password string) bool

func (f CredentialsFunc) Verify(username, password string) bool { return f(username, password) }

// Auth enforces HTTP basic auth against the settings-backed verifier.
func Auth(creds Credentials) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, _ := r.BasicAuth()
			if !creds.Verify(username, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="opengoat"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required","code":"AUTHORITY_DENIED"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
