package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorClass tells the caller whether a failed call is worth retrying.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	// ClassTransient covers timeouts, overload and temporary rate limits.
	ClassTransient
	// ClassQuota covers exhausted credit or hard quota.
	ClassQuota
	// ClassInvalid covers everything retrying will not fix.
	ClassInvalid
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassQuota:
		return "quota"
	default:
		return "invalid"
	}
}

// APIError is a provider error with its HTTP status.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

var quotaMarkers = []string{"insufficient_quota", "quota exceeded", "exceeded your current quota", "billing", "credit balance"}

var transientMarkers = []string{"timeout", "timed out", "deadline", "overloaded", "503", "service unavailable", "temporarily unavailable", "rate limit", "429", "connection reset", "eof"}

// Classify maps a provider error to its retry class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) {
		return ClassInvalid
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, quotaMarkers) {
		return ClassQuota
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusPaymentRequired:
			return ClassQuota
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
			return ClassTransient
		}
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return ClassInvalid
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	if containsAny(msg, transientMarkers) {
		return ClassTransient
	}
	return ClassInvalid
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
