// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobCancelled     = errors.New("job cancelled")
	ErrPositionClosed   = errors.New("position already closed")
	ErrUnknownObjective = errors.New("unknown objective")
	ErrUnknownStrategy  = errors.New("unknown strategy")
)

// New creates a plain error, mirroring the standard library.
func New(message string) error {
	return errors.New(message)
}

// DataError represents a data-quality error, such as malformed bars in
// an imported series. DroppedRows carries how many rows were discarded.
type DataError struct {
	Source      string
	Symbol      string
	Message     string
	DroppedRows int
	Err         error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s (%d rows dropped): %v", e.Source, e.Symbol, e.Message, e.DroppedRows, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s (%d rows dropped)", e.Source, e.Symbol, e.Message, e.DroppedRows)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source, symbol, message string, dropped int, err error) *DataError {
	return &DataError{
		Source:      source,
		Symbol:      symbol,
		Message:     message,
		DroppedRows: dropped,
		Err:         err,
	}
}

// ValidationError represents a parameter validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// EvaluationError represents the failure of a single optimizer candidate.
// The search continues; the candidate is recorded with the worst score.
type EvaluationError struct {
	Candidate map[string]float64
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("candidate evaluation failed (%v): %v", e.Candidate, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NewEvaluationError creates a new EvaluationError.
func NewEvaluationError(candidate map[string]float64, err error) *EvaluationError {
	return &EvaluationError{
		Candidate: candidate,
		Err:       err,
	}
}

// SimulationError represents an invariant violation inside the backtest
// engine, such as closing a position twice.
type SimulationError struct {
	BarIndex int
	Message  string
	Err      error
}

func (e *SimulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulation error at bar %d: %s: %v", e.BarIndex, e.Message, e.Err)
	}
	return fmt.Sprintf("simulation error at bar %d: %s", e.BarIndex, e.Message)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// NewSimulationError creates a new SimulationError.
func NewSimulationError(barIndex int, message string, err error) *SimulationError {
	return &SimulationError{
		BarIndex: barIndex,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
