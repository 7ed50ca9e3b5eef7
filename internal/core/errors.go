package core

import (
	"errors"
	"fmt"
	"strings"
)

// Structural errors. Wrap them with context via fmt.Errorf("...: %w", err).
var (
	// ErrNotFound is returned when the input path does not exist.
	ErrNotFound = errors.New("input not found")

	// ErrParse is returned when the input is not valid delimited text.
	ErrParse = errors.New("invalid csv")

	// ErrIntegrity is returned when a table fails a precondition before loading.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrMissingColumn is returned when a required column is absent. It wraps
	// ErrIntegrity.
	ErrMissingColumn = fmt.Errorf("missing required column: %w", ErrIntegrity)

	// ErrPersistence is returned when a sink fails to write.
	ErrPersistence = errors.New("persistence failed")

	// ErrCreatureNotFound is returned by lookups that match no record.
	ErrCreatureNotFound = errors.New("creature not found")

	// ErrDuplicateName is returned when a create or update collides on name.
	ErrDuplicateName = errors.New("creature name already exists")

	// ErrInvalidCreature is returned when a record fails Creature.Validate.
	ErrInvalidCreature = errors.New("invalid creature")

	// ErrUnknownSink is returned for a sink name with no registered writer.
	ErrUnknownSink = errors.New("unknown sink")
)

// IntegrityError lists every issue that made a table unloadable.
type IntegrityError struct {
	Issues []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIntegrity, strings.Join(e.Issues, "; "))
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// SinkError reports the failure of one sink.
type SinkError struct {
	Sink string
	Path string
	Err  error
}

func (e *SinkError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s sink %s: %v", e.Sink, e.Path, e.Err)
	}
	return fmt.Sprintf("%s sink: %v", e.Sink, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *SinkError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NewSinkError wraps err as a failure of the named sink. A nil err yields nil.
func NewSinkError(sink, path string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkError{Sink: sink, Path: path, Err: err}
}

// ValidationError reports why a record was rejected.
type ValidationError struct {
	Name     string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q: %s", ErrInvalidCreature, e.Name, strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCreature, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCreature
}

// CheckCreature returns a *ValidationError if c has problems.
func CheckCreature(c *Creature) error {
	if problems := c.Validate(); len(problems) > 0 {
		return &ValidationError{Name: c.Name, Problems: problems}
	}
	return nil
}
