package middleware

import (
	"net/http"
	"strings"
)

// ActivityPubHeaders is a middleware which fails the request if
// ActivityPub headers are not present in the request.
func ActivityPubHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerOk := false

		for _, acceptType := range r.Header["Accept"] {
			if strings.Contains(acceptType, "application/ld+json") ||
				strings.Contains(acceptType, "application/activity+json") {
				headerOk = true
			}
		}

		if !headerOk {
			for _, contentType := range r.Header["Content-Type"] {
				if strings.Contains(contentType, "application/activity+json") ||
					strings.Contains(contentType, "application/ld+json") {
					headerOk = true
				}
			}
		}

		if !headerOk {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}

		next.ServeHTTP(w, r)
	})
}
