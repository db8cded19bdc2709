// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package dbuscore

import "fmt"

// Kind classifies the errors this package returns. It is stable API: code
// should switch on Kind, not on the concrete *Error type or its message.
type Kind int

const (
	KindUnknown Kind = iota
	KindAddress
	KindHandshake
	KindInputOutput
	KindIncorrectEndian
	KindExcessData
	KindInvalidField
	KindMissingField
	KindUnknownProtocol
	KindDisconnected
	KindMethodError
	KindNameTaken
	KindInvalidReply
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "Address"
	case KindHandshake:
		return "Handshake"
	case KindInputOutput:
		return "InputOutput"
	case KindIncorrectEndian:
		return "IncorrectEndian"
	case KindExcessData:
		return "ExcessData"
	case KindInvalidField:
		return "InvalidField"
	case KindMissingField:
		return "MissingField"
	case KindUnknownProtocol:
		return "UnknownProtocol"
	case KindDisconnected:
		return "Disconnected"
	case KindMethodError:
		return "MethodError"
	case KindNameTaken:
		return "NameTaken"
	case KindInvalidReply:
		return "InvalidReply"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned throughout dbuscore. Use
// errors.As to recover it and inspect Kind.
type Error struct {
	Kind Kind
	Msg  string
	// ErrName is populated only for KindMethodError: the bus error name
	// (e.g. "org.freedesktop.DBus.Error.UnknownMethod"). Its human-readable
	// detail is carried in Msg.
	ErrName string
	Cause   error
}

func (e *Error) Error() string {
	if e.ErrName != "" {
		return fmt.Sprintf("dbuscore: %s: %s", e.ErrName, e.Msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("dbuscore: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("dbuscore: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, dbuscore.Disconnected) style comparisons against
// the sentinels below, which carry only a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	// A sentinel with no detail matches any error of the same Kind.
	return t.Msg == "" && t.ErrName == ""
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinels for errors.Is comparisons. These carry no message; see Error.Is.
var (
	Disconnected     = &Error{Kind: KindDisconnected}
	IncorrectEndian  = &Error{Kind: KindIncorrectEndian}
	UnknownProtocol  = &Error{Kind: KindUnknownProtocol}
	ExcessData       = &Error{Kind: KindExcessData}
	UnexpectedEOFErr = &Error{Kind: KindInputOutput, Msg: "unexpected EOF"}
)

// MethodError reports a bus-level error reply (D-Bus message type Error).
func MethodError(name, msg string) *Error {
	return &Error{Kind: KindMethodError, ErrName: name, Msg: msg}
}
