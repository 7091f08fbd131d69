package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindAcquisition        ErrorKind = "acquisition"
	KindGeneration         ErrorKind = "generation"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindPersistence        ErrorKind = "persistence"
	KindArchiveUnavailable ErrorKind = "archive_unavailable"
	KindNarration          ErrorKind = "narration"
)

// Fatal reports whether an error of this kind ends the run.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindAcquisition, KindPersistence:
		return true
	default:
		return false
	}
}

// Error is a stage-labelled pipeline failure.
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAcquisitionError wraps a content source failure.
func NewAcquisitionError(err error) *Error {
	return &Error{Kind: KindAcquisition, Stage: StageAcquire, Err: err}
}

// NewGenerationError wraps a rewrite or review failure.
func NewGenerationError(stage Stage, err error) *Error {
	return &Error{Kind: KindGeneration, Stage: stage, Err: err}
}

// NewInvalidInputError wraps a scorer input or contract failure.
func NewInvalidInputError(err error) *Error {
	return &Error{Kind: KindInvalidInput, Stage: StageEvaluate, Err: err}
}

// NewPersistenceError wraps a version record write failure.
func NewPersistenceError(err error) *Error {
	return &Error{Kind: KindPersistence, Stage: StageRecord, Err: err}
}

// NewArchiveUnavailableError wraps an archive backend failure.
func NewArchiveUnavailableError(err error) *Error {
	return &Error{Kind: KindArchiveUnavailable, Stage: StageArchive, Err: err}
}

// NewNarrationError wraps a narration failure.
func NewNarrationError(err error) *Error {
	return &Error{Kind: KindNarration, Stage: StageNarrate, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
