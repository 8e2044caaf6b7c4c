package services

import (
	"errors"
	"strings"
)

var (
	// ErrVersionNotFound is returned by Compare and Rollback when a requested
	// template version does not exist.
	ErrVersionNotFound = errors.New("template version not found")
	// ErrSettingsParse is returned when settings JSON cannot be decoded.
	ErrSettingsParse = errors.New("settings: invalid JSON")
)

// ValidationResult is the structured outcome of a validator. Validators never
// return errors; mutators wrap a failed result in *ValidationError.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newValidationResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidationError carries every message from a failed validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}
