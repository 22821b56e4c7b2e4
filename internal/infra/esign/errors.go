package esign

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is returned for any non-2xx response from the signature service.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	d := Details(e)
	switch {
	case d.Code != nil && d.Message != nil:
		return fmt.Sprintf("esign: status %d: %s: %s", e.StatusCode, *d.Code, *d.Message)
	case d.Code != nil:
		return fmt.Sprintf("esign: status %d: %s", e.StatusCode, *d.Code)
	}
	return fmt.Sprintf("esign: status %d", e.StatusCode)
}

// ErrorDetails carries the vendor error code and message. Either field is
// nil when the response did not provide it.
type ErrorDetails struct {
	Code    *string
	Message *string
}

// Details extracts the vendor error code and message from err. Each field is
// read on its own, so a missing or non-string value only drops that field.
func Details(err error) ErrorDetails {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || len(apiErr.Body) == 0 {
		return ErrorDetails{}
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(apiErr.Body, &body); err != nil {
		return ErrorDetails{}
	}
	return ErrorDetails{Code: stringField(body, "errorCode"), Message: stringField(body, "message")}
}

func stringField(body map[string]json.RawMessage, key string) *string {
	raw, ok := body[key]
	if !ok {
		return nil
	}
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
