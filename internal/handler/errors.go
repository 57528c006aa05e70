package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/RomanRochniak/CapstoneGym/internal/db"
	"github.com/RomanRochniak/CapstoneGym/internal/llm"
	"github.com/RomanRochniak/CapstoneGym/internal/service"
)

const (
	msgSessionNotFound = "Session not found"
	msgUnavailable     = "AI service unavailable. Try again later."
	msgInternal        = "Internal server error"

	detailLimit = 200
)

// failure is the client-facing outcome of an error.
type failure struct {
	status  int
	message string
	// expected failures are logged at warn without a stack trace.
	expected bool
}

// classifyError maps a chat or session error to its HTTP outcome.
func classifyError(err error) failure {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return failure{http.StatusBadRequest, "Message is required", true}
	case errors.Is(err, db.ErrSessionNotFound):
		return failure{http.StatusNotFound, msgSessionNotFound, true}
	case errors.Is(err, service.ErrGeneration):
		return classifyGeneration(err)
	default:
		return failure{http.StatusInternalServerError, msgInternal, false}
	}
}

func classifyGeneration(err error) failure {
	if errors.Is(err, llm.ErrTimeout) {
		return failure{http.StatusGatewayTimeout, "AI service timed out. Try again later.", true}
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		detail := summarize(statusErr.Body)
		switch code := statusErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return failure{http.StatusTooManyRequests, "AI service quota exceeded. Try again later.", true}
		case code == http.StatusBadRequest:
			return failure{http.StatusBadGateway, withDetail("AI service rejected the request", detail), false}
		case code == http.StatusUnauthorized:
			return failure{http.StatusBadGateway, "AI service authentication failed", false}
		case code == http.StatusForbidden:
			return failure{http.StatusBadGateway, "AI service access denied", false}
		case code == http.StatusNotFound:
			return failure{http.StatusBadGateway, withDetail("AI model not found", detail), false}
		case code >= 500:
			return failure{http.StatusBadGateway, withDetail("AI service upstream error", detail), false}
		default:
			return failure{http.StatusBadGateway, withDetail("AI service request failed", detail), false}
		}
	}

	if errors.Is(err, llm.ErrMissingAPIKey) {
		return failure{http.StatusServiceUnavailable, unavailable("provider is not configured"), false}
	}
	cause := strings.TrimPrefix(err.Error(), service.ErrGeneration.Error()+": ")
	return failure{http.StatusServiceUnavailable, unavailable(summarize(cause)), false}
}

func unavailable(detail string) string {
	if detail == "" {
		return msgUnavailable
	}
	return msgUnavailable + " (" + detail + ")"
}

func withDetail(message, detail string) string {
	if detail == "" {
		return message
	}
	return message + ": " + detail
}

// summarize flattens an upstream body into a short single line.
func summarize(body string) string {
	s := strings.Join(strings.Fields(body), " ")
	if r := []rune(s); len(r) > detailLimit {
		s = string(r[:detailLimit]) + "..."
	}
	return s
}
