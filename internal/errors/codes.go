// Package errors provides the calendar engine's structured error taxonomy.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeConversion marks a failed lunar-to-solar lookup. It is expected
	// and recoverable: the affected holiday is skipped for that year.
	CodeConversion Code = "CONVERSION_FAILED"

	// CodeValidation marks missing or malformed input. Operations abort
	// before any write.
	CodeValidation Code = "VALIDATION_FAILED"

	// CodePersistence marks a read or write failure from the store.
	CodePersistence Code = "PERSISTENCE_FAILED"

	// CodePartialReplace marks a replace-write whose delete succeeded but
	// whose insert failed. The year's rows are gone; callers must not
	// assume prior data still exists.
	CodePartialReplace Code = "PARTIAL_REPLACE"

	// CodeFetch marks a failed department feed fetch.
	CodeFetch Code = "FETCH_FAILED"

	// CodeNotFound marks a missing record.
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
