package advisor

import (
	"errors"
	"fmt"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
)

const (
	validationMessage = "Please enter valid numbers in all fields"
	inferencePrefix   = "An error occurred: "
)

// ValidationError means one of the raw inputs is not a number.
// Field is kept for logs; the user only ever sees the generic message.
type ValidationError struct {
	Field entities.Feature
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) UserMessage() string { return validationMessage }

// InferenceError wraps anything that went wrong in the models or the label decoding.
type InferenceError struct {
	Stage string // classify | regress | decode
	Err   error
}

func (e *InferenceError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) UserMessage() string { return inferencePrefix + e.Err.Error() }

// UserMessage is the text shown to the user for err.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.UserMessage()
	}
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.UserMessage()
	}
	return inferencePrefix + err.Error()
}
