package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("derived kinds", func(t *testing.T) {
		base := New("base error")
		assert.Equal(t, "base error", base.Error())

		first := base.New("first level")
		assert.Equal(t, "first level", first.Error())
		assert.ErrorIs(t, first, base)
		assert.NotErrorIs(t, base, first)
	})

	t.Run("copies keep identity", func(t *testing.T) {
		msg := ErrNoSuchPhonebook.Msg("phonebook 42 not found")
		assert.Equal(t, "phonebook 42 not found", msg.Error())
		assert.ErrorIs(t, msg, ErrNoSuchPhonebook)
		assert.ErrorIs(t, msg, ErrNotFound)
		assert.NotErrorIs(t, msg, ErrNoSuchContact)

		// the sentinel itself is untouched
		assert.Equal(t, "no such phonebook", ErrNoSuchPhonebook.Error())
	})

	t.Run("wrapping", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrDatabaseUnavailable.Err(cause)
		assert.ErrorIs(t, err, ErrDatabaseUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "database unavailable: connection refused", err.ErrorAll())

		wrapped := fmt.Errorf("listing phonebooks: %w", err)
		assert.ErrorIs(t, wrapped, ErrDatabaseUnavailable)
	})
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusCode(ErrNoSuchProfile))
	assert.Equal(t, http.StatusConflict, StatusCode(ErrDuplicatedContact.Msg("dup")))
	assert.Equal(t, http.StatusBadRequest, StatusCode(ErrInvalidSourceConfig))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(ErrDatabaseUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}
