package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	notFound := NewNotFoundError("logbook for X")
	fetch := NewFetchError("logbook for X", errors.New("connection reset"))
	limited := NewRateLimitedError("quota exhausted")
	parse := NewParseError("start", "yesterday", nil)

	t.Run("wrapped not found", func(t *testing.T) {
		err := fmt.Errorf("council X: %w", notFound)
		assert.True(t, IsNotFound(err))
		assert.False(t, IsFetchError(err))
		assert.Equal(t, ErrCodeNotFound, CodeOf(err))
	})

	t.Run("fetch error is not a not found", func(t *testing.T) {
		assert.True(t, IsFetchError(fetch))
		assert.False(t, IsNotFound(fetch))
		assert.ErrorContains(t, fetch, "connection reset")
	})

	t.Run("rate limited counts as fetch failure", func(t *testing.T) {
		assert.True(t, IsRateLimited(limited))
		assert.True(t, IsFetchError(limited))
	})

	t.Run("parse error", func(t *testing.T) {
		err := fmt.Errorf("run 3: %w", parse)
		pe, ok := AsParseError(err)
		assert.True(t, ok)
		assert.Equal(t, "start", pe.Field)
		assert.Equal(t, "yesterday", pe.Value)
		assert.Equal(t, ErrCodeParse, CodeOf(err))
		assert.False(t, IsFetchError(err))
	})

	t.Run("plain error", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, ErrCodeInternal, CodeOf(err))
		assert.False(t, IsParseError(err))
	})
}

func TestParseErrorMessage(t *testing.T) {
	err := NewParseError("duration", "1:xx", errors.New("bad seconds"))
	assert.Equal(t, `PARSE_ERROR: invalid duration "1:xx": bad seconds`, err.Error())
}
