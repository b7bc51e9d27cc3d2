package agent

import (
	"errors"
	"fmt"

	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/sequence"
)

// ErrorKind classifies a failed turn.
type ErrorKind string

const (
	KindMalformedResponse      ErrorKind = "malformed_response"
	KindToolNotFound           ErrorKind = "tool_not_found"
	KindSynthesisFailed        ErrorKind = "synthesis_failed"
	KindOracleRateLimited      ErrorKind = "oracle_rate_limited"
	KindOracleTimeout          ErrorKind = "oracle_timeout"
	KindOracleConnectionFailed ErrorKind = "oracle_connection_failed"
	KindOracleAuthFailed       ErrorKind = "oracle_auth_failed"
	KindOracleBadRequest       ErrorKind = "oracle_bad_request"
	KindOraclePermissionDenied ErrorKind = "oracle_permission_denied"
	KindPersistenceFailure     ErrorKind = "persistence_failure"
	KindInternal               ErrorKind = "internal"
)

var userMessages = map[ErrorKind]string{
	KindMalformedResponse:      "Sorry, I had trouble working out how to handle that. Could you rephrase your request?",
	KindToolNotFound:           "Sorry, I tried to use an action I don't have. Could you rephrase your request?",
	KindSynthesisFailed:        "I couldn't turn that into a sequence. Could you describe the role in a bit more detail?",
	KindOracleRateLimited:      "The AI service is busy right now. Please wait a moment and try again.",
	KindOracleTimeout:          "The AI service took too long to respond. Please try again.",
	KindOracleConnectionFailed: "I couldn't reach the AI service. Please try again in a moment.",
	KindOracleAuthFailed:       "The AI service rejected the configured credentials. Please check the API key.",
	KindOracleBadRequest:       "The AI service couldn't process that request. Try shortening or rephrasing your message.",
	KindOraclePermissionDenied: "The configured AI account doesn't have access to the requested model.",
	KindPersistenceFailure:     "I couldn't save your changes. Please try again.",
	KindInternal:               "Something went wrong while handling your message. Please try again.",
}

// UserMessage is the plain-language text shown for the kind.
func (k ErrorKind) UserMessage() string {
	if msg, ok := userMessages[k]; ok {
		return msg
	}
	return userMessages[KindInternal]
}

// PersistenceError marks a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Classify maps an error from an action or the model gateway to a kind.
func Classify(err error) ErrorKind {
	var synthErr *sequence.SynthesisError
	var persistErr *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &synthErr):
		return KindSynthesisFailed
	case errors.As(err, &persistErr):
		return KindPersistenceFailure
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	}

	switch llm.Classify(err) {
	case llm.KindRateLimited:
		return KindOracleRateLimited
	case llm.KindTimeout:
		return KindOracleTimeout
	case llm.KindConnectionFailed:
		return KindOracleConnectionFailed
	case llm.KindAuthFailed:
		return KindOracleAuthFailed
	case llm.KindBadRequest:
		return KindOracleBadRequest
	case llm.KindPermissionDenied:
		return KindOraclePermissionDenied
	}
	return KindInternal
}
