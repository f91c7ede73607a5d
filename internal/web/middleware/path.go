package middleware

import "net/http"

// EscapedPath makes the router match on the escaped request path, so
// path parameters always arrive escaped and are unescaped exactly once
// by the handler. Without it, chi matches on the decoded path unless the
// client happened to escape a reserved character.
func EscapedPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawPath == "" {
			r.URL.RawPath = r.URL.EscapedPath()
		}
		next.ServeHTTP(w, r)
	})
}
