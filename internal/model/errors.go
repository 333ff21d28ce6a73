package model

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid input")

// FieldError reports which field failed validation.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *FieldError) Unwrap() error { return ErrInvalid }

func invalid(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// prefixed nests a child field error under a parent path, e.g. "vms[0].name".
func prefixed(parent string, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		field := parent
		if fe.Field != "" {
			field = parent + "." + fe.Field
		}
		return &FieldError{Field: field, Msg: fe.Msg}
	}
	return err
}

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateKeys requires every map key to be usable as a Ruby identifier,
// since keys are emitted as symbols or attribute names.
func validateKeys(field string, m map[string]interface{}) error {
	for k := range m {
		if !identRe.MatchString(k) {
			return invalid(field, "key %q must be a valid identifier", k)
		}
	}
	return nil
}
