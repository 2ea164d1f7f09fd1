package mapping

import (
	"errors"
	"fmt"
)

var (
	// ErrConversion is matched by every field conversion failure.
	ErrConversion = errors.New("strata: conversion failed")

	// ErrResolution is matched when a reference token could not be resolved.
	ErrResolution = errors.New("strata: reference resolution failed")

	// ErrUnknownType is returned when a type name or entity has no registered mapper.
	ErrUnknownType = errors.New("strata: unknown mapped type")

	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("strata: mapped type already registered")

	// ErrInvalidMapping is returned for definitions that cannot be used.
	ErrInvalidMapping = errors.New("strata: invalid mapping")

	// ErrNoTypeHandler is returned when a plain field names an unregistered kind.
	ErrNoTypeHandler = errors.New("strata: no type handler for kind")
)

// ConversionError reports the field a conversion failed on.
type ConversionError struct {
	Type  string
	Field string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("strata: convert %s.%s: %v", e.Type, e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// ResolutionError reports a reference token whose pending operation failed.
type ResolutionError struct {
	// Field is the referencing field as "type.field", when known.
	Field string
	Token Token
	Err   error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("strata: resolve reference %s: %v", e.Field, e.Err)
	case e.Token != "":
		return fmt.Sprintf("strata: resolve reference %s: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("strata: resolve references: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }
