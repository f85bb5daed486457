package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
)

type tenantEvent struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	var received []tenantEvent
	boom := errors.New("boom")

	s := NewSubscriber(nil, map[string]Handler{
		"tenant_added": JSON(func(_ context.Context, e tenantEvent) error {
			received = append(received, e)
			return nil
		}),
		"failing": func(context.Context, []byte) error { return boom },
	})

	t.Run("decodes and dispatches", func(t *testing.T) {
		err := s.Dispatch(ctx, "tenant_added", []byte(`{"uuid": "t1", "name": "acme"}`))
		require.NoError(t, err)
		require.Len(t, received, 1)
		assert.Equal(t, tenantEvent{UUID: "t1", Name: "acme"}, received[0])
	})

	t.Run("malformed payload", func(t *testing.T) {
		err := s.Dispatch(ctx, "tenant_added", []byte(`{"uuid":`))
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		assert.Len(t, received, 1)
	})

	t.Run("handler error", func(t *testing.T) {
		assert.ErrorIs(t, s.Dispatch(ctx, "failing", nil), boom)
	})

	t.Run("unknown channel", func(t *testing.T) {
		assert.Error(t, s.Dispatch(ctx, "other", []byte(`{}`)))
	})
}
