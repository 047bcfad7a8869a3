package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errReason = errors.New("reason")

func TestHasCode(t *testing.T) {
	t.Run("matches outermost coded error", func(t *testing.T) {
		err := Wrap(errReason, CodeInvariantViolation, "range overlaps")
		assert.True(t, HasCode(err, CodeInvariantViolation))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("finds coded error through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "missing"))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("nil and plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
		assert.False(t, HasCode(errReason, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errReason))
	})
}

func TestWrapKeepsReasonReachable(t *testing.T) {
	err := Wrap(errReason, CodeExhausted, "range exhausted")
	assert.ErrorIs(t, err, errReason)
	assert.Equal(t, "range exhausted", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeConflict, "serialization failure")))
	assert.False(t, IsRetryable(New(CodeInvariantViolation, "overlap")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:         http.StatusBadRequest,
		CodeInvariantViolation: http.StatusUnprocessableEntity,
		CodeExhausted:          http.StatusConflict,
		CodeConflict:           http.StatusConflict,
		CodeNotFound:           http.StatusNotFound,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
