// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeValidation Code = "VALIDATION"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Provider errors
	CodeProviderNotRegistered Code = "PROVIDER_NOT_REGISTERED"
	CodeDuplicateProvider     Code = "DUPLICATE_PROVIDER"
	CodeProviderLoad          Code = "PROVIDER_LOAD_FAILED"
	CodeConfigInvalid         Code = "CONFIG_INVALID"
)
