// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package errors wraps pkg/errors and adds error codes, so callers can test
// for a class of failure without matching on message text.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies a class of error. See Is.
type Code string

const (
	// ErrUncoded is used when a coded error is wanted but no better code exists.
	ErrUncoded Code = "Uncoded"
)

// New returns an error carrying code, with a stack trace attached.
func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

// Is reports whether any error in err's chain carries the target code.
func Is(err error, target Code) bool {
	return errors.Is(err, codedError{Code: target})
}

// CodeOf returns the code of the first coded error in err's chain, or the
// empty code if there is none.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// codedError is the value every coded error wraps.
type codedError struct {
	Code    Code
	Message string
}

func (ce codedError) Error() string {
	return ce.Message
}

func (ce codedError) Is(err error) bool {
	e, ok := err.(codedError)
	return ok && ce.Code == e.Code
}
