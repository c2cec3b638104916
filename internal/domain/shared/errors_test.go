package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(ErrNotFound))
	assert.Equal(t, CodeInvalidInput, CodeOf(fmt.Errorf("load order: %w", ErrInvalidInput)))
	assert.Equal(t, CodeAlreadyProcessed, CodeOf(errors.Join(errors.New("other"),
		NewDomainError(CodeAlreadyProcessed, "done"))))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(CodeConflict, "Gateway already exists")
	assert.EqualError(t, err, "Gateway already exists")
}
