package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxErrorMessage caps provider error text kept from a response body.
const maxErrorMessage = 300

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.), 0 when unknown
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrorKind classifies a model gateway failure.
type ErrorKind string

const (
	KindRateLimited      ErrorKind = "rate_limited"
	KindTimeout          ErrorKind = "timeout"
	KindConnectionFailed ErrorKind = "connection_failed"
	KindAuthFailed       ErrorKind = "auth_failed"
	KindBadRequest       ErrorKind = "bad_request"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindUnknown          ErrorKind = "unknown"
)

// Classify maps an error from a provider call to an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.Code > 0 {
		switch {
		case provErr.Code == http.StatusTooManyRequests:
			return KindRateLimited
		case provErr.Code == http.StatusUnauthorized:
			return KindAuthFailed
		case provErr.Code == http.StatusForbidden:
			return KindPermissionDenied
		case provErr.Code == http.StatusRequestTimeout || provErr.Code == http.StatusGatewayTimeout:
			return KindTimeout
		case provErr.Code == 529:
			return KindRateLimited
		case provErr.Code >= 500:
			return KindConnectionFailed
		case provErr.Code >= 400:
			return KindBadRequest
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnectionFailed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnectionFailed
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionFailed
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "quota"):
		return KindRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "unauthenticated"):
		return KindAuthFailed
	case strings.Contains(msg, "permission") || strings.Contains(msg, "forbidden"):
		return KindPermissionDenied
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return KindConnectionFailed
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "bad request"):
		return KindBadRequest
	}
	return KindUnknown
}

// httpError builds a ProviderError from a non-2xx response, pulling the
// message out of the usual {"error":{"message":...}} envelope when present.
func httpError(provider string, status int, body []byte) *ProviderError {
	msg := strings.TrimSpace(string(body))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "":
			msg = detail.Message
		case json.Unmarshal(envelope.Error, &plain) == nil && plain != "":
			msg = plain
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ProviderError{Provider: provider, Message: truncateMessage(msg, maxErrorMessage), Code: status}
}

// truncateMessage cuts s to at most n bytes without splitting a rune.
func truncateMessage(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
