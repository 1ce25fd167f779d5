// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"database/sql"
	"errors"
	"fmt"
)

// Error is a tracking failure with a classification the transport layer can
// map to a status code.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies tracking errors.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified failure, usually storage.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNotFound means the tourist is not registered.
	ErrorTypeNotFound
	// ErrorTypeInvalidInput means the request failed validation.
	ErrorTypeInvalidInput
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the tourist does not exist.
func IsNotFound(err error) bool {
	var trackErr *Error
	if errors.As(err, &trackErr) {
		return trackErr.Type == ErrorTypeNotFound
	}

	return errors.Is(err, sql.ErrNoRows)
}

// IsInvalidInput reports whether err is a validation failure.
func IsInvalidInput(err error) bool {
	var trackErr *Error
	if errors.As(err, &trackErr) {
		return trackErr.Type == ErrorTypeInvalidInput
	}

	return false
}

func notFound(name string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("tourist %q not found, please register first", name),
	}
}

func invalidf(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}
