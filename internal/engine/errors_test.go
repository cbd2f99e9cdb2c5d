package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByCode(t *testing.T) {
	err := NewError(CodeOrderNotFound, "order %s not found", "abc")

	assert.Equal(t, "ORDER_NOT_FOUND: order abc not found", err.Error())
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NotErrorIs(t, err, ErrInstrumentNotFound)

	wrapped := fmt.Errorf("cancel: %w", err)
	assert.ErrorIs(t, wrapped, ErrOrderNotFound)
	assert.Equal(t, CodeOrderNotFound, CodeOf(wrapped))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeSystemError, CodeOf(errors.New("boom")))
}
