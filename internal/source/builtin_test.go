package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

func TestSampleDriver(t *testing.T) {
	ctx := context.Background()
	d, err := NewSampleDriver(ctx, model.Source{Name: "demo", FormatColumns: map[string]string{"name": "{firstname} {lastname}"}})
	require.NoError(t, err)

	results, err := d.Search(ctx, "anything", Caller{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "John Doe", results[0].Fields["name"])
	assert.Equal(t, "demo", results[0].SourceName)

	match, err := d.FirstMatch(ctx, sampleNumber, Caller{})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, sampleNumber, match.Fields["number"])

	match, err = d.FirstMatch(ctx, "42", Caller{})
	require.NoError(t, err)
	assert.Nil(t, match)

	listed, err := d.List(ctx, []string{"1", "2"}, Caller{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	listed, err = d.List(ctx, []string{"2"}, Caller{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPhonebookFactoryRequiresPhonebook(t *testing.T) {
	_, err := NewPhonebookFactory(nil)(context.Background(), model.Source{UUID: "s1", Backend: model.BackendPhonebook})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSourceConfig)
}

func TestPersonalDriverWithoutUser(t *testing.T) {
	ctx := context.Background()
	d, err := NewPersonalFactory(nil)(ctx, model.Source{Backend: model.BackendPersonal})
	require.NoError(t, err)

	results, err := d.Search(ctx, "alice", Caller{TenantUUID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, results)

	match, err := d.FirstMatch(ctx, "1234", Caller{TenantUUID: "t1"})
	require.NoError(t, err)
	assert.Nil(t, match)

	listed, err := d.List(ctx, []string{"x"}, Caller{TenantUUID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, listed)
}
