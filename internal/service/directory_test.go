package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/config"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/source"
)

type fakeProfiles map[string]*model.Profile

func (f fakeProfiles) GetByName(_ context.Context, tenantUUID, name string) (*model.Profile, error) {
	p, ok := f[name]
	if !ok || p.TenantUUID != tenantUUID {
		return nil, apperrors.ErrNoSuchProfile
	}
	return p, nil
}

type fakeDisplays map[string]*model.Display

func (f fakeDisplays) Get(_ context.Context, scope model.TenantScope, displayUUID string) (*model.Display, error) {
	d, ok := f[displayUUID]
	if !ok || !scope.Contains(d.TenantUUID) {
		return nil, apperrors.ErrNoSuchDisplay
	}
	return d, nil
}

type fakeFavorites struct {
	favorites []model.Favorite
	created   []string
	deleted   []string
}

func (f *fakeFavorites) Create(_ context.Context, user model.User, _, sourceName, contactID string) (*model.Favorite, error) {
	f.created = append(f.created, user.UUID+"/"+sourceName+"/"+contactID)
	return &model.Favorite{UserUUID: user.UUID, SourceName: sourceName, ContactID: contactID}, nil
}

func (f *fakeFavorites) Delete(_ context.Context, userUUID, sourceName, contactID string) error {
	f.deleted = append(f.deleted, userUUID+"/"+sourceName+"/"+contactID)
	return nil
}

func (f *fakeFavorites) List(_ context.Context, userUUID string) ([]model.Favorite, error) {
	var out []model.Favorite
	for _, fav := range f.favorites {
		if fav.UserUUID == userUUID {
			out = append(out, fav)
		}
	}
	return out, nil
}

type fakePersonal map[string][]model.Contact

func (f fakePersonal) List(_ context.Context, userUUID string, _ model.ListParams) ([]model.Contact, error) {
	return f[userUUID], nil
}

type directoryFixture struct {
	svc       *DirectoryService
	favorites *fakeFavorites
	main      *fakeDriver
	perso     *fakeDriver
}

func newDirectoryFixture() directoryFixture {
	alice := result("main", "c1")
	alice.Fields = map[string]string{"id": "c1", "name": "Alice", "phone": "1001"}
	carol := result("perso", "p1")
	carol.Fields = map[string]string{"id": "p1", "name": "Carol"}
	carol.IsPersonal = true

	main := &fakeDriver{results: []source.Result{alice}, match: &alice}
	perso := &fakeDriver{results: []source.Result{carol}}

	refs := []model.SourceRef{
		{UUID: "s-main", Name: "main", Backend: model.BackendPhonebook},
		{UUID: "s-perso", Name: "perso", Backend: model.BackendPersonal},
	}
	timeout := 1.0
	bound := model.ProfileService{Sources: refs, Options: model.ServiceOptions{Timeout: &timeout}}
	profiles := fakeProfiles{"default": {
		UUID:       "pr1",
		TenantUUID: "t1",
		Name:       "default",
		Display:    &model.DisplayRef{UUID: "d1"},
		Services: map[string]model.ProfileService{
			model.ServiceLookup:    bound,
			model.ServiceReverse:   bound,
			model.ServiceFavorites: bound,
		},
	}}
	display := testDisplay()
	display.TenantUUID = "t1"

	favorites := &fakeFavorites{favorites: []model.Favorite{
		{UserUUID: "u1", SourceUUID: "s-main", SourceName: "main", ContactID: "c1"},
	}}
	personal := fakePersonal{"u1": {{"id": "p1", "name": "Carol", "phone": "2002"}}}
	fanout := NewFanOut(fakeDrivers{"s-main": main, "s-perso": perso}, config.FanoutConfig{})

	return directoryFixture{
		svc:       NewDirectoryService(profiles, fakeDisplays{"d1": display}, favorites, personal, fanout),
		favorites: favorites,
		main:      main,
		perso:     perso,
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	caller := source.Caller{TenantUUID: "t1", UserUUID: "u1"}

	t.Run("formats the results of every source", func(t *testing.T) {
		fx := newDirectoryFixture()
		out, err := fx.svc.Lookup(ctx, caller, "default", "a")
		require.NoError(t, err)
		require.Len(t, out.Results, 2)

		bySource := map[string]FormattedResult{}
		for _, r := range out.Results {
			bySource[r.Source] = r
		}
		assert.Equal(t, []any{"Alice", "1001", "n/a", true, false}, bySource["main"].ColumnValues)
		assert.Equal(t, []any{"Carol", nil, "n/a", false, true}, bySource["perso"].ColumnValues)
	})

	t.Run("unknown profile", func(t *testing.T) {
		fx := newDirectoryFixture()
		_, err := fx.svc.Lookup(ctx, caller, "missing", "a")
		assert.ErrorIs(t, err, apperrors.ErrNoSuchProfile)
	})

	t.Run("profile of another tenant", func(t *testing.T) {
		fx := newDirectoryFixture()
		_, err := fx.svc.Lookup(ctx, source.Caller{TenantUUID: "t2"}, "default", "a")
		assert.ErrorIs(t, err, apperrors.ErrNoSuchProfile)
	})
}

func TestReverse(t *testing.T) {
	ctx := context.Background()
	fx := newDirectoryFixture()

	r, err := fx.svc.Reverse(ctx, source.Caller{TenantUUID: "t1"}, "default", "1001")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "1001", r.Exten)
	assert.Equal(t, "main", r.Source)
	assert.Equal(t, "Alice", r.Fields["name"])

	fx.main.match = nil
	r, err = fx.svc.Reverse(ctx, source.Caller{TenantUUID: "t1"}, "default", "1001")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	fx := newDirectoryFixture()

	out, err := fx.svc.Favorites(ctx, source.Caller{TenantUUID: "t1", UserUUID: "u1"}, "default")
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "main", out.Results[0].Source)
	assert.Equal(t, [][]string{{"c1"}}, fx.main.listed)
	assert.Zero(t, fx.perso.callCount())

	out, err = fx.svc.Favorites(ctx, source.Caller{TenantUUID: "t1"}, "default")
	require.NoError(t, err)
	assert.Empty(t, out.Results)
}

func TestPersonal(t *testing.T) {
	ctx := context.Background()
	fx := newDirectoryFixture()

	out, err := fx.svc.Personal(ctx, source.Caller{TenantUUID: "t1", UserUUID: "u1"}, "default")
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	row := out.Results[0]
	assert.Equal(t, "perso", row.Source)
	assert.Equal(t, []any{"Carol", "2002", "n/a", false, true}, row.ColumnValues)
	assert.Equal(t, []NumberEntry{{Number: "2002", Display: "Carol (office)"}}, row.Numbers)

	_, err = fx.svc.Personal(ctx, source.Caller{TenantUUID: "t1"}, "default")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestFavoriteEdition(t *testing.T) {
	ctx := context.Background()
	fx := newDirectoryFixture()
	caller := source.Caller{TenantUUID: "t1", UserUUID: "u1"}

	fav, err := fx.svc.AddFavorite(ctx, caller, "", "main", "c7")
	require.NoError(t, err)
	assert.Equal(t, "c7", fav.ContactID)
	require.NoError(t, fx.svc.RemoveFavorite(ctx, caller, "main", "c7"))

	assert.Equal(t, []string{"u1/main/c7"}, fx.favorites.created)
	assert.Equal(t, []string{"u1/main/c7"}, fx.favorites.deleted)

	_, err = fx.svc.AddFavorite(ctx, source.Caller{TenantUUID: "t1"}, "", "main", "c7")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, fx.svc.RemoveFavorite(ctx, source.Caller{TenantUUID: "t1"}, "main", "c7"), apperrors.ErrInvalidArgument)
}
