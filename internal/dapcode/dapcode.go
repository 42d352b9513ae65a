// Package dapcode provides the error taxonomy for the response-builder
// pipeline: a closed set of error codes plus a *ResponseError carrying the
// code and a human-readable message.
//
// This is a leaf package with no internal dependencies, so it can be
// imported by dapmodel and responsebuilder without creating import cycles.
//
// Import graph: dapcode <- dapmodel, responsebuilder.
package dapcode

import "fmt"

// ErrorCode identifies the kind of failure the response-builder pipeline
// raised, per the error handling design.
type ErrorCode int

const (
	// ErrCEParse indicates a malformed CE, or one that references an unknown
	// variable.
	ErrCEParse ErrorCode = iota + 1

	// ErrRequestTooLarge indicates the constrained projection's estimated
	// size exceeds the configured response limit.
	ErrRequestTooLarge

	// ErrFunctionalOnlyInDataResponse indicates the whole CE is a single
	// function invocation but the response kind carries no data (DDS/DDX).
	ErrFunctionalOnlyInDataResponse

	// ErrCache indicates the function-result cache could not obtain a lock
	// after its retry budget, or the cached entry was corrupt.
	ErrCache

	// ErrEncoderIO indicates a write failure on the output sink.
	ErrEncoderIO

	// ErrTimeoutExceeded indicates the wall-clock deadline fired during
	// emission.
	ErrTimeoutExceeded

	// ErrDataset indicates the dataset adapter failed to read a value.
	ErrDataset
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCEParse:
		return "CEParseError"
	case ErrRequestTooLarge:
		return "RequestTooLargeError"
	case ErrFunctionalOnlyInDataResponse:
		return "FunctionalOnlyInDataResponse"
	case ErrCache:
		return "CacheError"
	case ErrEncoderIO:
		return "EncoderIOError"
	case ErrTimeoutExceeded:
		return "TimeoutExceeded"
	case ErrDataset:
		return "DatasetError"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Kind describes when, relative to payload emission, an error surfaces.
type Kind int

const (
	// KindPreamble means the error occurred before any payload byte was
	// written: the builder emits a fresh error envelope.
	KindPreamble Kind = iota

	// KindMidStream means the error occurred after payload bytes were
	// already written: the builder injects CRLF CRLF plus a serialized
	// error object into the already-open stream.
	KindMidStream

	// KindTruncation means the error is a sink write failure: the response
	// is simply truncated, no further recovery is attempted.
	KindTruncation
)

// ResponseError is the error type raised throughout the response-builder
// pipeline.
type ResponseError struct {
	Code    ErrorCode
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCEParseError creates a CEParseError.
func NewCEParseError(message string) *ResponseError {
	return &ResponseError{Code: ErrCEParse, Message: message, Kind: KindPreamble}
}

// NewRequestTooLargeError creates a RequestTooLargeError with the exact
// message shape from the end-to-end size-limit scenario: "The Request for
// XKB is too large; requests for this user are limited to YKB."
func NewRequestTooLargeError(requestedKB, limitKB uint64) *ResponseError {
	return &ResponseError{
		Code: ErrRequestTooLarge,
		Message: fmt.Sprintf(
			"The Request for %dKB is too large; requests for this user are limited to %dKB.",
			requestedKB, limitKB,
		),
		Kind: KindPreamble,
	}
}

// NewFunctionalOnlyInDataResponseError creates the error raised when a
// purely functional CE is sent to a non-data response kind.
func NewFunctionalOnlyInDataResponseError() *ResponseError {
	return &ResponseError{
		Code:    ErrFunctionalOnlyInDataResponse,
		Message: "Function calls can only be used with data requests.",
		Kind:    KindPreamble,
	}
}

// NewCacheError creates a CacheError, optionally carrying the cache path
// that could not be locked or parsed.
func NewCacheError(path, reason string) *ResponseError {
	msg := reason
	if path != "" {
		msg = fmt.Sprintf("%s (path: %s)", reason, path)
	}
	return &ResponseError{Code: ErrCache, Message: msg, Kind: KindPreamble}
}

// NewEncoderIOError creates an EncoderIOError wrapping the underlying sink
// write failure.
func NewEncoderIOError(cause error) *ResponseError {
	return &ResponseError{
		Code:    ErrEncoderIO,
		Message: fmt.Sprintf("sink write failed: %v", cause),
		Kind:    KindTruncation,
	}
}

// NewTimeoutExceededError creates a TimeoutExceeded error for injection into
// an already-open stream.
func NewTimeoutExceededError(timeoutSeconds int) *ResponseError {
	return &ResponseError{
		Code:    ErrTimeoutExceeded,
		Message: fmt.Sprintf("response exceeded its %ds deadline", timeoutSeconds),
		Kind:    KindMidStream,
	}
}

// NewDatasetError creates a DatasetError. mid indicates whether the failure
// happened after payload bytes were already written.
func NewDatasetError(reason string, mid bool) *ResponseError {
	kind := KindPreamble
	if mid {
		kind = KindMidStream
	}
	return &ResponseError{Code: ErrDataset, Message: reason, Kind: kind}
}

// IsCEParseError reports whether err is a CEParseError.
func IsCEParseError(err error) bool {
	re, ok := err.(*ResponseError)
	return ok && re.Code == ErrCEParse
}

// IsRequestTooLargeError reports whether err is a RequestTooLargeError.
func IsRequestTooLargeError(err error) bool {
	re, ok := err.(*ResponseError)
	return ok && re.Code == ErrRequestTooLarge
}

// IsCacheError reports whether err is a CacheError.
func IsCacheError(err error) bool {
	re, ok := err.(*ResponseError)
	return ok && re.Code == ErrCache
}

// IsTimeoutExceededError reports whether err is a TimeoutExceeded error.
func IsTimeoutExceededError(err error) bool {
	re, ok := err.(*ResponseError)
	return ok && re.Code == ErrTimeoutExceeded
}

// IsEncoderIOError reports whether err is an EncoderIOError.
func IsEncoderIOError(err error) bool {
	re, ok := err.(*ResponseError)
	return ok && re.Code == ErrEncoderIO
}
