// Package store persists audits and audit items on top of a transactional
// persistence engine.
package store

import (
	"errors"
	"fmt"
)

// CASConflictError represents a Compare-And-Swap conflict
// when the expected ModifyIndex doesn't match the current value
type CASConflictError struct {
	Key           string
	ExpectedIndex uint64
	CurrentIndex  uint64
	OperationType string
}

func (e *CASConflictError) Error() string {
	return fmt.Sprintf("CAS conflict for %s '%s': expected ModifyIndex %d, but current is %d",
		e.OperationType, e.Key, e.ExpectedIndex, e.CurrentIndex)
}

// IsCASConflict checks if an error is a CAS conflict error
func IsCASConflict(err error) bool {
	var target *CASConflictError
	return errors.As(err, &target)
}

// NotFoundError represents an entity not found error
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Type, e.Key)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// DuplicateError is returned when a unique field is already taken.
type DuplicateError struct {
	Type  string
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Type, e.Field, e.Value)
}

// IsDuplicate checks if an error is a duplicate error
func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

// ValidationError describes a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
