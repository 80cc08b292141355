package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors of the protocol's error taxonomy. Typed errors below match
// them through errors.Is so callers can branch on the category alone.
var (
	ErrConfiguration         = errors.New("configuration error")
	ErrNoApplicableQuestions = errors.New("no applicable research questions")
	ErrRunNotFound           = errors.New("run not found")
	ErrInference             = errors.New("inference error")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrDatastore             = errors.New("datastore error")
)

// ConfigError reports a missing or invalid setting, credential, or file.
type ConfigError struct {
	Key    string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// Is matches ErrConfiguration.
func (e ConfigError) Is(target error) bool { return target == ErrConfiguration }

// RunNotFoundError reports that no simulation run carries the identifier.
type RunNotFoundError struct {
	RunID string
}

func (e RunNotFoundError) Error() string {
	return fmt.Sprintf("no simulation run found with id %q", e.RunID)
}

// Is matches ErrRunNotFound.
func (e RunNotFoundError) Is(target error) bool { return target == ErrRunNotFound }

// InferenceError reports a transport failure or non-2xx response from the
// inference provider. Body carries the provider's diagnostic, if any.
type InferenceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *InferenceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("inference request failed with status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("inference request failed with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("inference request failed: %v", e.Err)
	default:
		return "inference request failed"
	}
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Is matches ErrInference.
func (e *InferenceError) Is(target error) bool { return target == ErrInference }

// MalformedResponseError reports model output that cannot be normalized into
// the required shape. Raw is the text exactly as received.
type MalformedResponseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Is matches ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// DatastoreError wraps a failure talking to the datastore.
type DatastoreError struct {
	Op  string
	Err error
}

func (e *DatastoreError) Error() string {
	return fmt.Sprintf("datastore %s: %v", e.Op, e.Err)
}

func (e *DatastoreError) Unwrap() error { return e.Err }

// Is matches ErrDatastore.
func (e *DatastoreError) Is(target error) bool { return target == ErrDatastore }
