package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/model"
)

func TestFormat(t *testing.T) {
	fields := map[string]string{"firstname": "Alice", "lastname": "Smith", "number": "1234"}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain text", "hello", "hello"},
		{"single key", "{firstname}", "Alice"},
		{"several keys", "{firstname} {lastname}", "Alice Smith"},
		{"missing key", "{firstname} {nickname}!", "Alice !"},
		{"escaped braces", "{{{number}}}", "{1234}"},
		{"unterminated", "{number} {oops", "1234 {oops"},
		{"empty template", "", ""},
		{"empty key", "x{}y", "xy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.template, fields))
		})
	}
}

func TestResultFactory(t *testing.T) {
	src := model.Source{
		Name:          "main",
		FormatColumns: map[string]string{"name": "{firstname} {lastname}", "firstname": "Dr {firstname}"},
	}

	t.Run("format columns read the raw fields", func(t *testing.T) {
		r := NewResultFactory(src).New(map[string]string{"id": "c1", "firstname": "Ann", "lastname": "Lee"})

		assert.Equal(t, "main", r.SourceName)
		assert.Equal(t, "Ann Lee", r.Fields["name"])
		assert.Equal(t, "Dr Ann", r.Fields["firstname"])
		require.NotNil(t, r.Relations.SourceEntryID)
		assert.Equal(t, "c1", *r.Relations.SourceEntryID)
		assert.False(t, r.IsPersonal)
	})

	t.Run("input is not modified", func(t *testing.T) {
		fields := map[string]string{"firstname": "Ann"}
		NewResultFactory(src).New(fields)
		assert.Equal(t, map[string]string{"firstname": "Ann"}, fields)
	})

	t.Run("no unique value", func(t *testing.T) {
		r := NewResultFactory(src).New(map[string]string{"firstname": "Ann"})
		assert.Nil(t, r.Relations.SourceEntryID)
	})

	t.Run("custom unique column", func(t *testing.T) {
		custom := src
		custom.ExtraFields = map[string]any{"unique_column": "ext"}
		r := NewResultFactory(custom).New(map[string]string{"id": "c1", "ext": "e9"})
		require.NotNil(t, r.Relations.SourceEntryID)
		assert.Equal(t, "e9", *r.Relations.SourceEntryID)
	})
}
