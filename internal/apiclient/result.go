package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result is the uniform outcome of a backend call: Data on success, Error
// (and maybe Details) otherwise. Status is zero when no response arrived.
type Result struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"status,omitempty"`
	Details string          `json:"details,omitempty"`
}

var ErrNoData = errors.New("response carried no data")

func (r Result) OK() bool {
	return r.Error == ""
}

func (r Result) Unauthorized() bool {
	return r.Error == ErrMsgUnauthorized
}

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return ErrNoData
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Err converts a failed result into an error, or nil for a successful one.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &RequestError{Message: r.Error, Status: r.Status, Details: r.Details}
}

type RequestError struct {
	Message string
	Status  int
	Details string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}
