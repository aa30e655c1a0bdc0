package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInsufficientCredits is returned when the Anthropic account has no credit left.
	ErrInsufficientCredits = errors.New("anthropic credit balance too low")

	// ErrOverloaded is returned when the API kept rejecting the request
	// with a rate limit or overload status after every retry.
	ErrOverloaded = errors.New("anthropic API overloaded")
)

const (
	billingURL = "https://console.anthropic.com/settings/plans"

	statusOverloaded = 529
)

type apiErrorBody struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// formatAPIError turns a non-200 response into an error, keeping the
// request id so failures can be traced on the Anthropic side.
func formatAPIError(status int, body []byte) error {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == nil {
		return wrapStatus(status, fmt.Errorf("API error (status %d): %s", status, strings.TrimSpace(string(body))))
	}

	msg := parsed.Error.Message
	if strings.Contains(strings.ToLower(msg), "credit balance") {
		return fmt.Errorf("%w: %s (request_id=%s); add credits at %s", ErrInsufficientCredits, msg, parsed.RequestID, billingURL)
	}
	return wrapStatus(status, fmt.Errorf("API error (status %d): %s - %s (request_id=%s)", status, parsed.Error.Type, msg, parsed.RequestID))
}

func wrapStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status == statusOverloaded {
		return fmt.Errorf("%w: %w", ErrOverloaded, err)
	}
	return err
}

// retryable reports whether a request that got status may succeed later.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, statusOverloaded,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// retryAfter reads the Retry-After header in seconds, or returns fallback.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return fallback
	}
	if d := time.Duration(secs) * time.Second; d < maxRetryDelay {
		return d
	}
	return maxRetryDelay
}
