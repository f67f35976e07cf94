package form

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidKey   = errors.New("key must not contain " + Separator)
	ErrDuplicateKey = errors.New("key already exists")
	ErrInvalidType  = errors.New("type cannot be added")
)

// FieldError is a single validation failure for one field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every failure found in one validation pass.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return strings.Join(v.Messages(), "; ")
}

// Messages returns each failure formatted as "field: message".
func (v ValidationErrors) Messages() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Error()
	}
	return out
}

// Add appends a failure for field.
func (v *ValidationErrors) Add(field, format string, args ...any) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AsValidationErrors flattens err into a list of field errors.
func AsValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var list ValidationErrors
	if errors.As(err, &list) {
		return list
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return ValidationErrors{fe}
	}
	return ValidationErrors{{Message: err.Error()}}
}
