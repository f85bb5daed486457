package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/config"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/validation"
)

// memoryStores records what provisioning creates.
type memoryStores struct {
	mu         sync.Mutex
	tenants    []string
	displays   []model.DisplayBody
	phonebooks []model.PhonebookBody
	sources    []model.SourceBody
	profiles   map[string]model.ProfileBody
	failSource string
}

func newMemoryStores() *memoryStores {
	return &memoryStores{profiles: make(map[string]model.ProfileBody)}
}

func (m *memoryStores) Ensure(_ context.Context, tenantUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenantUUID)
	return nil
}

type displayStore struct{ *memoryStores }

func (s displayStore) Create(_ context.Context, tenantUUID string, body model.DisplayBody) (*model.Display, error) {
	if err := validation.Struct(body); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displays = append(s.displays, body)
	return &model.Display{UUID: uuid.NewString(), TenantUUID: tenantUUID, Name: body.Name, Columns: body.Columns}, nil
}

type phonebookStore struct{ *memoryStores }

func (s phonebookStore) Create(_ context.Context, tenantUUID string, body model.PhonebookBody) (*model.Phonebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phonebooks = append(s.phonebooks, body)
	return &model.Phonebook{UUID: uuid.NewString(), TenantUUID: tenantUUID, Name: body.Name}, nil
}

type sourceStore struct{ *memoryStores }

func (s sourceStore) Create(_ context.Context, tenantUUID string, body model.SourceBody) (*model.Source, error) {
	if err := validation.SourceBody(body); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if body.Backend == s.failSource {
		return nil, apperrors.ErrDatabaseUnavailable
	}
	s.sources = append(s.sources, body)
	return &model.Source{UUID: uuid.NewString(), TenantUUID: tenantUUID, Backend: body.Backend, Name: body.Name}, nil
}

type profileStore struct{ *memoryStores }

func (s profileStore) Create(_ context.Context, tenantUUID string, body model.ProfileBody) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[tenantUUID+"/"+body.Name] = body
	return &model.Profile{UUID: uuid.NewString(), TenantUUID: tenantUUID, Name: body.Name}, nil
}

func (s profileStore) GetByName(_ context.Context, tenantUUID, name string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[tenantUUID+"/"+name]; !ok {
		return nil, apperrors.ErrNoSuchProfile
	}
	return &model.Profile{TenantUUID: tenantUUID, Name: name}, nil
}

func (m *memoryStores) provisioners() Provisioners {
	return Provisioners{
		Tenants:    m,
		Displays:   displayStore{m},
		Phonebooks: phonebookStore{m},
		Sources:    sourceStore{m},
		Profiles:   profileStore{m},
	}
}

func testProvisioningConfig() config.ProvisioningConfig {
	cfg := config.Default().Provisioning
	cfg.Sources = []config.ProvisionedSource{
		{Backend: model.BackendSample, Name: "demo"},
		{Backend: model.BackendLDAP, Name: "broken"},
	}
	return cfg
}

func TestProvisionTenant(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	ps := &ProvisioningService{stores: stores.provisioners(), cfg: testProvisioningConfig()}

	require.NoError(t, ps.provisionTenant(ctx, TenantCreated{UUID: "t1", Name: "acme"}))

	assert.Equal(t, []string{"t1"}, stores.tenants)
	require.Len(t, stores.displays, 1)
	assert.Equal(t, "default_display", stores.displays[0].Name)
	assert.Len(t, stores.displays[0].Columns, len(ps.cfg.Columns))
	assert.Equal(t, []model.PhonebookBody{{Name: "acme"}}, stores.phonebooks)

	backends := make([]string, 0, len(stores.sources))
	for _, s := range stores.sources {
		backends = append(backends, s.Backend)
	}
	// the ldap source lacks its required extra fields and is skipped
	assert.Equal(t, []string{model.BackendPersonal, model.BackendPhonebook, model.BackendSample}, backends)

	profile, ok := stores.profiles["t1/default"]
	require.True(t, ok)
	require.NotNil(t, profile.DisplayUUID)
	for _, name := range []string{model.ServiceLookup, model.ServiceReverse, model.ServiceFavorites} {
		svc, ok := profile.Services[name]
		require.True(t, ok, name)
		assert.Len(t, svc.Sources, 3)
		require.NotNil(t, svc.Options.Timeout)
		assert.Equal(t, 1.0, *svc.Options.Timeout)
	}

	t.Run("already provisioned", func(t *testing.T) {
		require.NoError(t, ps.provisionTenant(ctx, TenantCreated{UUID: "t1", Name: "acme"}))
		assert.Len(t, stores.displays, 1)
	})

	t.Run("tenant without name", func(t *testing.T) {
		require.NoError(t, ps.provisionTenant(ctx, TenantCreated{UUID: "t2"}))
		assert.Equal(t, "t2", stores.phonebooks[len(stores.phonebooks)-1].Name)
	})

	t.Run("store failure", func(t *testing.T) {
		stores.failSource = model.BackendPersonal
		err := ps.provisionTenant(ctx, TenantCreated{UUID: "t3"})
		assert.ErrorIs(t, err, apperrors.ErrDatabaseUnavailable)
		_, ok := stores.profiles["t3/default"]
		assert.False(t, ok)
	})
}

func TestProvisioningWorker(t *testing.T) {
	stores := newMemoryStores()
	ps := NewProvisioningService(stores.provisioners(), testProvisioningConfig())

	require.NoError(t, ps.QueueForProvisioning(TenantCreated{UUID: "t1", Name: "one"}))
	require.NoError(t, ps.QueueForProvisioning(TenantCreated{UUID: "t2", Name: "two"}))
	ps.Close()

	_, err := profileStore{stores}.GetByName(context.Background(), "t1", "default")
	assert.NoError(t, err)
	_, err = profileStore{stores}.GetByName(context.Background(), "t2", "default")
	assert.NoError(t, err)

	// late events after shutdown are refused, not sent on the closed queue
	assert.ErrorIs(t, ps.QueueForProvisioning(TenantCreated{UUID: "t3"}), ErrProvisioningStopped)
	ps.Close()
}

type fakeUsers struct {
	deleted []string
	err     error
}

func (f *fakeUsers) Delete(_ context.Context, userUUID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, userUUID)
	return nil
}

type fakeCountries map[string]string

func (f fakeCountries) SetCountry(_ context.Context, tenantUUID, country string) error {
	if err := validation.Country(country); err != nil {
		return err
	}
	f[tenantUUID] = country
	return nil
}

func TestEventHandlers(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	users := &fakeUsers{}
	countries := fakeCountries{}
	ps := NewProvisioningService(stores.provisioners(), testProvisioningConfig())
	h := NewEventHandlers(ps, users, countries)

	require.NoError(t, h.TenantCreated(ctx, TenantCreated{UUID: "t1", Name: "acme"}))
	assert.ErrorIs(t, h.TenantCreated(ctx, TenantCreated{}), apperrors.ErrInvalidArgument)
	ps.Close()
	assert.Contains(t, stores.profiles, "t1/default")
	assert.ErrorIs(t, h.TenantCreated(ctx, TenantCreated{UUID: "t2"}), ErrProvisioningStopped)

	require.NoError(t, h.UserDeleted(ctx, UserDeleted{UUID: "u1"}))
	assert.Equal(t, []string{"u1"}, users.deleted)

	users.err = apperrors.ErrNoSuchUser
	assert.NoError(t, h.UserDeleted(ctx, UserDeleted{UUID: "u2"}))
	users.err = errors.New("down")
	assert.Error(t, h.UserDeleted(ctx, UserDeleted{UUID: "u3"}))

	require.NoError(t, h.LocalizationEdited(ctx, LocalizationEdited{TenantUUID: "t1", Country: "FR"}))
	assert.Equal(t, "FR", countries["t1"])
	assert.ErrorIs(t, h.LocalizationEdited(ctx, LocalizationEdited{TenantUUID: "t1", Country: "france"}), apperrors.ErrInvalidArgument)
}
