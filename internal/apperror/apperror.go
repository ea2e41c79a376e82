// Package apperror provides the unified error taxonomy used across the
// CKeyLock core: configuration, storage, transport, protocol and executor
// plumbing failures, each tagged with a stable code so callers can branch on
// failure class without string matching.
package apperror

import (
	"errors"
	"fmt"
)

// Code identifies the category of a CKeyLock error.
type Code string

const (
	// Configuration errors.
	CodeConfigNotFound Code = "CONFIG_NOT_FOUND"
	CodeConfigIO       Code = "CONFIG_IO"
	CodeConfigParse    Code = "CONFIG_PARSE"

	// Storage errors.
	CodeStorageIO      Code = "STORAGE_IO"
	CodeStorageEncode  Code = "STORAGE_ENCODE"
	CodeStorageDecode  Code = "STORAGE_DECODE"
	CodeStorageAEAD    Code = "STORAGE_AEAD"

	// Transport errors.
	CodeTransportProtocol     Code = "TRANSPORT_PROTOCOL"
	CodeTransportHandshake    Code = "TRANSPORT_HANDSHAKE"
	CodeTransportUnauthorized Code = "TRANSPORT_UNAUTHORIZED"

	// Wire protocol errors.
	CodeProtocolDecode Code = "PROTOCOL_DECODE"

	// Executor plumbing errors.
	CodeExecutorMailboxClosed Code = "EXECUTOR_MAILBOX_CLOSED"
	CodeExecutorReplyClosed   Code = "EXECUTOR_REPLY_CLOSED"
)

// Error is a structured CKeyLock error: a stable code, a human-readable
// message, and the underlying cause (if any).
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an *Error that carries err as its cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Configuration constructors.

func ConfigNotFound(path string) *Error {
	return New(CodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path))
}

func ConfigIO(err error) *Error {
	return Wrap(CodeConfigIO, "failed to read configuration file", err)
}

func ConfigParse(err error) *Error {
	return Wrap(CodeConfigParse, "failed to parse configuration", err)
}

// Storage constructors.

func StorageIO(err error) *Error {
	return Wrap(CodeStorageIO, "storage I/O failed", err)
}

func StorageEncode(err error) *Error {
	return Wrap(CodeStorageEncode, "failed to encode store", err)
}

func StorageDecode(err error) *Error {
	return Wrap(CodeStorageDecode, "failed to decode snapshot", err)
}

func StorageAEAD(err error) *Error {
	return Wrap(CodeStorageAEAD, "snapshot authentication failed", err)
}

// Transport constructors.

func TransportProtocol(err error) *Error {
	return Wrap(CodeTransportProtocol, "websocket protocol error", err)
}

func TransportHandshake(err error) *Error {
	return Wrap(CodeTransportHandshake, "websocket handshake failed", err)
}

func Unauthorized() *Error {
	return New(CodeTransportUnauthorized, "unauthorized")
}

// Protocol constructors.

func ProtocolDecode(err error) *Error {
	return Wrap(CodeProtocolDecode, "failed to decode request envelope", err)
}

// Executor constructors.

func ExecutorMailboxClosed() *Error {
	return New(CodeExecutorMailboxClosed, "executor mailbox closed")
}

func ExecutorReplyClosed() *Error {
	return New(CodeExecutorReplyClosed, "executor reply channel closed before reply")
}
