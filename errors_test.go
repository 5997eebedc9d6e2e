package raop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapAndAs(t *testing.T) {
	cause := errors.New("boom")
	err := newError(ErrAuthentication, "auth failed", cause)

	var target *Error
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, ErrAuthentication, target.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestWrapProtocolErrorPreservesExistingKind(t *testing.T) {
	original := newError(ErrAuthentication, "auth failed", nil)
	wrapped := wrapProtocolError(original)

	var target *Error
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrAuthentication, target.Kind)
}

func TestWrapProtocolErrorWrapsPlainError(t *testing.T) {
	plain := fmt.Errorf("generic failure")
	wrapped := wrapProtocolError(plain)

	var target *Error
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrProtocol, target.Kind)
	assert.ErrorIs(t, wrapped, plain)
}

func TestWrapProtocolErrorNil(t *testing.T) {
	assert.NoError(t, wrapProtocolError(nil))
}
