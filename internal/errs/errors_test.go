package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stepErr struct{}

func (stepErr) Error() string    { return "step 3 failed" }
func (stepErr) ErrorCode() Code { return MigrationStep }

func TestErrorFormatting(t *testing.T) {
	err := &Error{
		Code:    ValidationFailure,
		Op:      "create",
		Kind:    "Document",
		Target:  "documents",
		Message: "type Point",
		Violations: []string{
			"Missing required property: y",
		},
	}
	assert.Equal(t,
		"VALIDATION_FAILED [create Document documents]: type Point: Missing required property: y",
		err.Error())

	assert.Equal(t, "NOT_FOUND: no such type", New(NotFound, "no such type").Error())
}

func TestIsHelpersSeeThroughWrapping(t *testing.T) {
	base := Invalid("bad key %q", "a'b")
	wrapped := fmt.Errorf("search: %w", base)

	assert.True(t, IsInvalidArgument(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, InvalidArgument, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.False(t, Is(nil, InvalidArgument))
}

func TestCodedErrorsFromOtherPackages(t *testing.T) {
	err := fmt.Errorf("init: %w", stepErr{})
	assert.True(t, IsMigrationStep(err))
}

func TestWithOpFillsContext(t *testing.T) {
	err := WithOp(Invalid("delete requires an id"), "delete", "Document", "documents")
	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "delete", e.Op)
	assert.Equal(t, "Document", e.Kind)
	assert.Equal(t, "documents", e.Target)

	plain := WithOp(errors.New("disk full"), "create", "Document", "documents")
	assert.EqualError(t, plain, "create Document: disk full")

	assert.NoError(t, WithOp(nil, "x", "y", "z"))
}
