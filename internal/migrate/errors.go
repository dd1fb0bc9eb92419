package migrate

import (
	"fmt"

	"github.com/roach88/nopg/internal/errs"
)

// RangeError reports a stored version outside [-1, Target].
type RangeError struct {
	Current int
	Target  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("database version %d is not between accepted range (-1 .. %d)", e.Current, e.Target)
}

// ErrorCode classifies the error for errs.CodeOf.
func (e *RangeError) ErrorCode() errs.Code { return errs.VersionRange }

// StepError wraps the failure of one migration step. The stored version is
// unchanged when it is returned.
type StepError struct {
	Version int
	Source  string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %d (%s) failed: %v", e.Version, e.Source, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrorCode classifies the error for errs.CodeOf.
func (e *StepError) ErrorCode() errs.Code { return errs.MigrationStep }
