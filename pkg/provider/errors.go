package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind tags a model failure so the driver can decide whether to retry.
type Kind int

const (
	// KindOther is any non-retryable API or transport failure.
	KindOther Kind = iota
	// KindRateLimited marks quota or rate-limit exhaustion.
	KindRateLimited
	// KindInvalid marks a response body that could not be decoded.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalid:
		return "invalid"
	default:
		return "other"
	}
}

// grpcResourceExhausted is the numeric gRPC code surfaced by Gemini for quota errors.
const grpcResourceExhausted = 8

// Error is a classified model failure.
type Error struct {
	Provider string
	Kind     Kind
	Code     int
	Status   string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Kind == KindInvalid:
		return e.Message
	case e.Code != 0:
		return fmt.Sprintf("%s api error: %s (code: %d)", e.Provider, e.Message, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an upstream error code, status and message to a Kind.
func Classify(code int, status, message string) Kind {
	if code == http.StatusTooManyRequests || code == grpcResourceExhausted {
		return KindRateLimited
	}
	if strings.EqualFold(status, "RESOURCE_EXHAUSTED") {
		return KindRateLimited
	}
	msg := strings.ToLower(message)
	for _, marker := range []string{"429", "exhausted", "rate limit", "too many requests"} {
		if strings.Contains(msg, marker) {
			return KindRateLimited
		}
	}
	return KindOther
}

// KindOf returns the Kind of err, or KindOther when err is not a *Error.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindOther
}

// IsRetryable reports whether err is worth another attempt after backoff.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}
