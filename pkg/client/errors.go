package client

import (
	"errors"
	"fmt"
)

// ErrNoData is wrapped when a 200 response carries neither data nor error.
var ErrNoData = errors.New("response has no data array")

// ErrorClass represents a classification of page fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than key rejections.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not the expected JSON.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassAPI represents an "error" field in a 200 response.
	ErrorClassAPI ErrorClass = "api"

	// ErrorClassKey represents a key that is rejected or out of quota
	// (401, 403, 429, or an error body naming a limit or the key).
	ErrorClassKey ErrorClass = "key_limit"

	// ErrorClassRequest represents a request that could not be built or
	// was cancelled by the caller.
	ErrorClassRequest ErrorClass = "request"
)

// APIError is a failed page fetch with its classification.
type APIError struct {
	Page       int
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("isbndb %s error (page %d, status %d): %s: %v",
			e.ErrorClass, e.Page, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("isbndb %s error (page %d, status %d): %s",
		e.ErrorClass, e.Page, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// outcomeFor maps an error class to what the caller should do next.
func outcomeFor(class ErrorClass) Outcome {
	switch class {
	case ErrorClassKey:
		return OutcomeRotateKey
	case ErrorClassRequest:
		return OutcomeFatal
	case ErrorClassClient, ErrorClassServer, ErrorClassNetwork, ErrorClassDecode, ErrorClassAPI:
		return OutcomeRecoverable
	default:
		return OutcomeRecoverable
	}
}
