package gateway

import (
	"errors"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: transport errors, timeouts,
	// throttling, 5xx and an open circuit breaker.
	ErrTransient = errors.New("storefront api unavailable")

	// ErrCartNotFound means the remote cart no longer exists, usually because
	// its checkout completed.
	ErrCartNotFound = errors.New("cart not found")
)

// UserError is a single problem reported by the backend for a request.
type UserError struct {
	Code    string   `json:"code"`
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// ValidationError is a non-retryable rejection: the same request will fail
// again (unknown variant, out of stock, malformed input).
type ValidationError struct {
	Op     string
	Errors []UserError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		msgs = append(msgs, ue.Message)
	}
	return e.Op + ": " + strings.Join(msgs, "; ")
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// countsAsSuccess tells the circuit breaker which errors say nothing about the
// backend's health.
func countsAsSuccess(err error) bool {
	return err == nil || IsValidation(err) || errors.Is(err, ErrCartNotFound)
}

// cartMissing recognizes the backend's wording for a consumed or unknown cart id.
func cartMissing(errs []UserError) bool {
	for _, ue := range errs {
		msg := strings.ToLower(ue.Message)
		if strings.Contains(msg, "cart") && (strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")) {
			return true
		}
	}
	return false
}
