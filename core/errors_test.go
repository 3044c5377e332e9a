package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	nf := NewNotFoundError("book not found")
	assert.True(t, IsNotFound(nf))
	assert.True(t, IsNotFound(errors.Wrap(nf, "getting book")))
	assert.False(t, IsNotFound(errors.New("book not found")))

	sentinel := errors.New("book not available")
	re := NewRuleError(sentinel)
	assert.True(t, IsRuleError(re))
	assert.True(t, IsRuleError(errors.Wrap(re, "issuing book")))
	assert.False(t, IsRuleError(sentinel))
	assert.False(t, IsRuleError(nil))
	assert.Equal(t, sentinel, errors.Cause(re))
	assert.EqualError(t, re, "book not available")
	assert.EqualError(t, NewRuleError(nil), "business rule violated")

	ve := NewValidationError(errors.New("invalid filter"), FieldError{Field: "status", Error: "invalid"})
	assert.EqualError(t, ve, "invalid filter")
	assert.False(t, IsNotFound(ve))

	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity issue"), "handling request")))
}
