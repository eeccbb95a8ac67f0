/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package apierror defines the error taxonomy surfaced by the room backend
// to HTTP clients, independent of any particular transport.
package apierror

import (
	"fmt"
	"net/http"
)

// Kind is one of the error classes from the API error taxonomy.
type Kind int

const (
	// Internal is the zero value so a forgotten Kind maps to 500, not 200.
	Internal Kind = iota
	BadInput
	Unauthorized
	NotFound
	Conflict
	Gone
	PayloadTooLarge
	RateLimited
	Overloaded
)

// HTTPStatus returns the status code the taxonomy assigns to k.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadInput:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Gone:
		return http.StatusGone
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case RateLimited:
		return http.StatusTooManyRequests
	case Overloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "bad_input"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Gone:
		return "gone"
	case PayloadTooLarge:
		return "payload_too_large"
	case RateLimited:
		return "rate_limited"
	case Overloaded:
		return "overloaded"
	default:
		return "internal"
	}
}

// Error is the error type every component in the room backend's core
// returns when it wants the HTTP layer to produce a specific response. A
// nil *Error from a component means "no error"; never construct one with
// Kind's zero value unless that's genuinely an unclassified server fault.
type Error struct {
	Kind    Kind
	Message string // safe to return to the client verbatim
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that logs cause internally but never returns it
// to the client; Message is what the client sees.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// As reports whether err is (or wraps) an *Error, per the errors.As protocol
// used directly here because callers just need the *Error back.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	if ok {
		return e, true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return As(u.Unwrap())
	}
	return nil, false
}
