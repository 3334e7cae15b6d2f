package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	// CodeValidation rejects bad caller input synchronously, with no state change.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeTransientDelivery covers network errors, timeouts and collector 5xx.
	CodeTransientDelivery Code = "TRANSIENT_DELIVERY"
	// CodePermanentDelivery covers collector 4xx responses for malformed payloads.
	CodePermanentDelivery Code = "PERMANENT_DELIVERY"
	// CodeStorage covers durable map/table failures; the operation did not happen.
	CodeStorage  Code = "STORAGE_ERROR"
	CodeInternal Code = "INTERNAL_ERROR"
)

type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	CodeTransientDelivery: {
		Retryable:     true,
		PublicMessage: "collector temporarily unavailable",
	},
	CodePermanentDelivery: {
		Retryable:     false,
		PublicMessage: "collector rejected payload",
	},
	CodeStorage: {
		Retryable:     true,
		PublicMessage: "local storage unavailable",
	},
	CodeInternal: {
		Retryable:     false,
		PublicMessage: "internal error",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf extracts the taxonomy code, defaulting untyped errors to CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsRetryable reports whether the dispatch worker should retry after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Retryable
}
