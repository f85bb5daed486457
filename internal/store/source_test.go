package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

func ldapBody(name string) model.SourceBody {
	return model.SourceBody{
		Name:                name,
		Backend:             model.BackendLDAP,
		SearchedColumns:     []string{"cn", "telephoneNumber"},
		FirstMatchedColumns: []string{"telephoneNumber"},
		FormatColumns:       map[string]string{"name": "{cn}", "phone": "{telephoneNumber}"},
		ExtraFields: map[string]any{
			"ldap_uri":     "ldap://ldap.example.com",
			"ldap_base_dn": "ou=people,dc=example,dc=com",
			"timeout":      2.5,
		},
	}
}

func TestSourceRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSourceRepository(db)
	ctx := context.Background()
	tenant := uuid.NewString()

	created, err := repo.Create(ctx, tenant, ldapBody("corporate"))
	require.NoError(t, err)
	assert.Equal(t, "corporate", created.Name)
	assert.Equal(t, []string{"cn", "telephoneNumber"}, created.SearchedColumns)
	assert.Equal(t, map[string]string{"name": "{cn}", "phone": "{telephoneNumber}"}, created.FormatColumns)
	assert.Equal(t, 2.5, created.ExtraFields["timeout"])
	assert.Nil(t, created.Phonebook)

	fetched, err := repo.Get(ctx, model.Tenants(tenant), model.BackendLDAP, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	record := fetched.Record()
	assert.Equal(t, "ldap://ldap.example.com", record["ldap_uri"])
	assert.Equal(t, "corporate", record["name"])

	_, err = repo.Get(ctx, model.Tenants(tenant), model.BackendCSV, created.UUID)
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)
	_, err = repo.Get(ctx, model.Tenants(uuid.NewString()), "", created.UUID)
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)
	_, err = repo.Get(ctx, model.Tenants(), "", created.UUID)
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)

	_, err = repo.Create(ctx, tenant, ldapBody("corporate"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicatedSource)

	invalid := ldapBody("broken")
	delete(invalid.ExtraFields, "ldap_base_dn")
	_, err = repo.Create(ctx, tenant, invalid)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSourceConfig)
}

func TestSourceRepository_PhonebookBackend(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSourceRepository(db)
	phonebooks := NewPhonebookRepository(db)
	ctx := context.Background()
	tenant := uuid.NewString()

	p, err := phonebooks.Create(ctx, tenant, model.PhonebookBody{Name: "main", Description: strPtr("everyone")})
	require.NoError(t, err)

	created, err := repo.Create(ctx, tenant, model.SourceBody{Name: "ignored", Backend: model.BackendPhonebook, PhonebookUUID: &p.UUID})
	require.NoError(t, err)
	assert.Equal(t, "main", created.Name)
	require.NotNil(t, created.Phonebook)
	assert.Equal(t, p.ID, created.Phonebook.ID)
	assert.Equal(t, "everyone", *created.Phonebook.Description)

	missing := uuid.NewString()
	_, err = repo.Create(ctx, tenant, model.SourceBody{Backend: model.BackendPhonebook, PhonebookUUID: &missing})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSourceConfig)

	foreign, err := phonebooks.Create(ctx, uuid.NewString(), model.PhonebookBody{Name: "foreign"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, tenant, model.SourceBody{Backend: model.BackendPhonebook, PhonebookUUID: &foreign.UUID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSourceConfig)

	_, err = repo.Create(ctx, tenant, model.SourceBody{Backend: model.BackendPhonebook})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSourceConfig)
}

func TestSourceRepository_EditAndDelete(t *testing.T) {
	client := newFakeRedis()
	base := setupTestDB(t)
	db := New(base.pool, NewSourceCache(client, time.Minute))
	repo := NewSourceRepository(db)
	ctx := context.Background()
	tenant := uuid.NewString()
	scope := model.Tenants(tenant)

	var changed []string
	db.OnSourceChange(func(ctx context.Context, sourceUUID string) {
		changed = append(changed, sourceUUID)
	})

	created, err := repo.Create(ctx, tenant, ldapBody("corporate"))
	require.NoError(t, err)

	// warm the cache
	cached, err := repo.GetByUUID(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, created, cached)
	assert.Contains(t, client.data, "source:"+created.UUID)

	body := ldapBody("corporate2")
	body.SearchedColumns = []string{"cn"}
	edited, err := repo.Edit(ctx, scope, model.BackendLDAP, created.UUID, body)
	require.NoError(t, err)
	assert.Equal(t, "corporate2", edited.Name)
	assert.Equal(t, []string{"cn"}, edited.SearchedColumns)
	assert.Equal(t, []string{created.UUID}, changed)
	assert.NotContains(t, client.data, "source:"+created.UUID)

	fetched, err := repo.GetByUUID(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "corporate2", fetched.Name)

	_, err = repo.Edit(ctx, model.Tenants(uuid.NewString()), model.BackendLDAP, created.UUID, body)
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)

	assert.ErrorIs(t, repo.Delete(ctx, scope, model.BackendCSV, created.UUID), apperrors.ErrNoSuchSource)
	require.NoError(t, repo.Delete(ctx, scope, model.BackendLDAP, created.UUID))
	assert.ErrorIs(t, repo.Delete(ctx, scope, model.BackendLDAP, created.UUID), apperrors.ErrNoSuchSource)
	assert.Equal(t, []string{created.UUID, created.UUID}, changed)

	_, err = repo.GetByUUID(ctx, created.UUID)
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)
}

func TestSourceRepository_ListAndFind(t *testing.T) {
	repo := NewSourceRepository(setupTestDB(t))
	ctx := context.Background()
	t1, t2 := uuid.NewString(), uuid.NewString()

	_, err := repo.Create(ctx, t1, ldapBody("zeta"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, t1, model.SourceBody{Name: "personal", Backend: model.BackendPersonal})
	require.NoError(t, err)
	_, err = repo.Create(ctx, t2, ldapBody("alpha"))
	require.NoError(t, err)

	list, err := repo.List(ctx, model.Tenants(t1), "", model.ListParams{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "personal", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)

	list, err = repo.List(ctx, model.AllTenants(), model.BackendLDAP, model.ListParams{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err := repo.Count(ctx, model.Tenants(t1, t2), "", model.ListParams{Search: "ALP"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.List(ctx, model.Tenants(), "", model.ListParams{})
	assert.ErrorIs(t, err, apperrors.ErrNoSuchTenant)

	found, err := repo.FindByName(ctx, model.Tenants(t1), "", "zeta")
	require.NoError(t, err)
	assert.Equal(t, model.BackendLDAP, found.Backend)

	_, err = repo.FindByName(ctx, model.Tenants(t1), "", "alpha")
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)
	_, err = repo.FindByName(ctx, model.Tenants(t1), model.BackendCSV, "zeta")
	assert.ErrorIs(t, err, apperrors.ErrNoSuchSource)
}
