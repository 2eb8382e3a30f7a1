package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBlankPath     error = errors.New("config path cannot be blank")
	ErrUnknownFormat error = errors.New("config format must be .toml, .yaml or .yml")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
