// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid classifies malformed input.
	ErrInvalid = errors.New("invalid argument")

	// ErrRange classifies numeric input outside its permitted range.
	ErrRange = errors.New("argument out of range")
)

// Error is a contract violation. Message is reported verbatim by
// Error; Kind is one of ErrInvalid or ErrRange.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes Kind so errors.Is(err, ErrInvalid) works.
func (e *Error) Unwrap() error { return e.Kind }

// Invalidf returns an ErrInvalid-class error with a formatted message.
func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalid, Message: fmt.Sprintf(format, args...)}
}

// Rangef returns an ErrRange-class error with a formatted message.
func Rangef(format string, args ...any) error {
	return &Error{Kind: ErrRange, Message: fmt.Sprintf(format, args...)}
}

// ValidTimestamp reports whether ms is usable as a Unix millisecond
// timestamp. Zero is valid.
func ValidTimestamp(ms int64) bool {
	return ms >= 0
}
