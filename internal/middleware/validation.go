package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// MaxBodyBytes bounds a chat request body.
const MaxBodyBytes = 64 << 10

// ValidateMessageContent checks a trimmed chat message. Any non-empty text
// is accepted.
func ValidateMessageContent(content string) error {
	if content == "" {
		return errors.New("Message is required")
	}
	return nil
}

// ParseSessionID parses a positive session id from a path parameter.
func ParseSessionID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid session id")
	}
	return uint(id), nil
}

// LimitBody caps request bodies at MaxBodyBytes.
func LimitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
