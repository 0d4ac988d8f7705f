package prediction

import (
	"errors"
	"fmt"
)

// Messages shown to the user when the predictor gives nothing better.
const (
	MsgPredictionFailed = "Erreur lors de la prédiction."
	MsgNetwork          = "Erreur réseau"
)

// ErrStale is returned by Submit when a newer submission superseded the
// request before its response arrived. The response is discarded.
var ErrStale = errors.New("prediction superseded by a newer submission")

// StatusError is returned when the predictor answered with a non-2xx status.
// Message holds the "error" field of the body when there was one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// TransportError is returned when no response was received at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessager is implemented by errors that carry a message meant for the
// end user rather than for logs.
type UserMessager interface {
	UserMessage() string
}

// RequestError is the error form of a Failed state.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return "prediction failed: " + e.Message }

// UserMessage returns the message displayed for the failure.
func (e *RequestError) UserMessage() string { return e.Message }

// DisplayMessage picks the message shown for a failed request: the body's
// error field, then the HTTP level message, then the generic network message.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return se.Error()
	}
	var te *TransportError
	if errors.As(err, &te) {
		return MsgNetwork
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgNetwork
}
