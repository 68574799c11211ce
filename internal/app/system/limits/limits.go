// internal/app/system/limits/limits.go
package limits

import "net/http"

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBodySize is the maximum size for JSON API request bodies.
	// Event documents with full entrant lists stay well under this.
	MaxJSONBodySize = 1 << 20 // 1 MB
)

// JSONBody returns middleware that caps request bodies at MaxJSONBodySize.
// Oversized bodies fail inside the handler's decode with a request-too-large
// error instead of exhausting memory.
func JSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)
		}
		next.ServeHTTP(w, r)
	})
}
