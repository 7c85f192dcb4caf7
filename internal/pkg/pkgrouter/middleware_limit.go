package pkgrouter

import "net/http"

// MaxBodyBytes caps the request body. Reads beyond limit fail with
// *http.MaxBytesError, which handlers translate into their own error.
func MaxBodyBytes(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
