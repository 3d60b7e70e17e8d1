// Package middleware provides HTTP middleware for Albatross.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/albatross-va/albatross/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID tags every request with an id, either the caller's
// X-Request-ID or a fresh one. The id travels in the context so the
// log handler stamps it onto every record, and is echoed back in the
// response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func newRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
