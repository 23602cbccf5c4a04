package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("calendar: list busy", cause)

	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrTransient, Category(err))
	assert.Equal(t, "calendar: list busy: transient failure: connection refused", err.Error())
}

func TestCategorySurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("booking: commit: %w", Race("calendar: create event", nil))
	assert.Equal(t, ErrRace, Category(err))
	assert.Contains(t, err.Error(), "race condition")
}

func TestCategoryDefaults(t *testing.T) {
	assert.Nil(t, Category(nil))
	assert.Equal(t, ErrFatal, Category(errors.New("boom")))
	assert.Equal(t, ErrIntegrity, Category(Integrity("state: decode", errors.New("bad json"))))
	assert.Equal(t, ErrFatal, Category(Fatal("commit", errors.New("panic"))))
}
