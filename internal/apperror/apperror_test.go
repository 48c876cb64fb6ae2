package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom_PreservesClassifiedErrors(t *testing.T) {
	orig := Validation(ReasonTooLarge, "file too large")
	wrapped := fmt.Errorf("upload: %w", orig)

	got := From(wrapped)
	assert.Same(t, orig, got)
	assert.True(t, Is(wrapped, KindValidation))
	assert.True(t, HasReason(wrapped, ReasonTooLarge))
}

func TestFrom_ClassifiesPlainErrorsAsUnknown(t *testing.T) {
	cause := errors.New("boom")

	got := From(cause)
	assert.Equal(t, KindUnknown, got.Kind)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, From(nil))
}

func TestStorage_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage("put object", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage: storage operation failed: connection reset", err.Error())
	assert.False(t, Is(err, KindNotFound))
}
