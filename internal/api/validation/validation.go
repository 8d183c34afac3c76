package validation

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	apierrors "github.com/nkkko/textai/internal/api/errors"
)

// Validator defines the interface for request validation
type Validator interface {
	Validate() error
}

// Decode parses a JSON request body and validates it
func Decode(body io.Reader, v Validator) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierrors.ValidationError("empty_request_body", "Request body is empty")
		}
		return apierrors.ValidationError("invalid_json", "Invalid JSON format: "+err.Error())
	}

	return v.Validate()
}

// Unmarshal validates an already-read JSON body
func Unmarshal(data []byte, v Validator) error {
	if len(data) == 0 {
		return apierrors.ValidationError("empty_request_body", "Request body is empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apierrors.ValidationError("invalid_json", "Invalid JSON format: "+err.Error())
	}

	return v.Validate()
}

// MaxLength validates that a string is not longer than the specified max length
func MaxLength(field, value string, maxLen int) error {
	if len(value) > maxLen {
		return apierrors.ValidationError(
			"max_length_exceeded",
			field+" must be at most "+strconv.Itoa(maxLen)+" characters",
		)
	}
	return nil
}

// Required validates that a string is not empty
func Required(field, value string) error {
	if value == "" {
		return apierrors.ValidationError(
			"required_field_missing",
			field+" is required",
		)
	}
	return nil
}
