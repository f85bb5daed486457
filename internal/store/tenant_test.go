package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
)

func TestTenantRepository_EnsureIsIdempotent(t *testing.T) {
	repo := NewTenantRepository(setupTestDB(t))
	ctx := context.Background()
	tenant := uuid.NewString()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Ensure(ctx, tenant)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	fetched, err := repo.Get(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, tenant, fetched.UUID)
	assert.Nil(t, fetched.Country)

	_, err = repo.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrNoSuchTenant)
}

func TestTenantRepository_SetCountry(t *testing.T) {
	repo := NewTenantRepository(setupTestDB(t))
	ctx := context.Background()
	tenant := uuid.NewString()

	require.NoError(t, repo.SetCountry(ctx, tenant, "CA"))
	fetched, err := repo.Get(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, fetched.Country)
	assert.Equal(t, "CA", *fetched.Country)

	require.NoError(t, repo.SetCountry(ctx, tenant, "FR"))
	fetched, err = repo.Get(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, "FR", *fetched.Country)

	assert.ErrorIs(t, repo.SetCountry(ctx, tenant, "France"), apperrors.ErrInvalidArgument)
}
