package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/source"
)

// ProfileFinder resolves the profile of a query.
type ProfileFinder interface {
	GetByName(ctx context.Context, tenantUUID, name string) (*model.Profile, error)
}

// DisplayFinder loads the display of a profile.
type DisplayFinder interface {
	Get(ctx context.Context, scope model.TenantScope, displayUUID string) (*model.Display, error)
}

// FavoriteStore keeps the favorites of users.
type FavoriteStore interface {
	Create(ctx context.Context, user model.User, backend, sourceName, contactID string) (*model.Favorite, error)
	Delete(ctx context.Context, userUUID, sourceName, contactID string) error
	List(ctx context.Context, userUUID string) ([]model.Favorite, error)
}

// PersonalLister lists the personal contacts of a user.
type PersonalLister interface {
	List(ctx context.Context, userUUID string, params model.ListParams) ([]model.Contact, error)
}

// DirectoryService answers the queries routed through profiles.
type DirectoryService struct {
	profiles  ProfileFinder
	displays  DisplayFinder
	favorites FavoriteStore
	personal  PersonalLister
	fanout    *FanOut
}

func NewDirectoryService(profiles ProfileFinder, displays DisplayFinder, favorites FavoriteStore, personal PersonalLister, fanout *FanOut) *DirectoryService {
	return &DirectoryService{
		profiles:  profiles,
		displays:  displays,
		favorites: favorites,
		personal:  personal,
		fanout:    fanout,
	}
}

// ReverseResult is the contact owning a number.
type ReverseResult struct {
	Exten     string            `json:"exten"`
	Fields    map[string]string `json:"fields"`
	Source    string            `json:"source"`
	Relations source.Relations  `json:"relations"`
}

func (s *DirectoryService) profile(ctx context.Context, caller source.Caller, name string) (*model.Profile, *model.Display, error) {
	p, err := s.profiles.GetByName(ctx, caller.TenantUUID, name)
	if err != nil {
		return nil, nil, err
	}
	if p.Display == nil {
		return p, nil, nil
	}
	d, err := s.displays.Get(ctx, model.Tenants(caller.TenantUUID), p.Display.UUID)
	if errors.Is(err, apperrors.ErrNoSuchDisplay) {
		return p, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return p, d, nil
}

// userFavorites returns the favorites of the caller, or nothing when the
// caller is not a user.
func (s *DirectoryService) userFavorites(ctx context.Context, caller source.Caller) ([]model.Favorite, error) {
	if caller.UserUUID == "" {
		return nil, nil
	}
	return s.favorites.List(ctx, caller.UserUUID)
}

// Lookup searches term in the lookup sources of the profile.
func (s *DirectoryService) Lookup(ctx context.Context, caller source.Caller, profileName, term string) (*Formatted, error) {
	p, display, err := s.profile(ctx, caller, profileName)
	if err != nil {
		return nil, err
	}
	favorites, err := s.userFavorites(ctx, caller)
	if err != nil {
		return nil, err
	}

	results := s.fanout.Search(ctx, model.ServiceLookup, p.Services[model.ServiceLookup], term, caller)
	log.Ctx(ctx).Debug().Str("profile", profileName).Int("results", len(results)).Msg("Lookup done")
	formatted := Format(display, results, NewFavoriteSet(favorites))
	return &formatted, nil
}

// Reverse returns the contact whose number is exten, or nil.
func (s *DirectoryService) Reverse(ctx context.Context, caller source.Caller, profileName, exten string) (*ReverseResult, error) {
	p, err := s.profiles.GetByName(ctx, caller.TenantUUID, profileName)
	if err != nil {
		return nil, err
	}
	r := s.fanout.FirstMatch(ctx, model.ServiceReverse, p.Services[model.ServiceReverse], exten, caller)
	if r == nil {
		return nil, nil
	}
	return &ReverseResult{Exten: exten, Fields: r.Fields, Source: r.SourceName, Relations: r.Relations}, nil
}

// Favorites lists the favorite contacts of the caller found in the
// favorites sources of the profile.
func (s *DirectoryService) Favorites(ctx context.Context, caller source.Caller, profileName string) (*Formatted, error) {
	p, display, err := s.profile(ctx, caller, profileName)
	if err != nil {
		return nil, err
	}
	favorites, err := s.userFavorites(ctx, caller)
	if err != nil {
		return nil, err
	}

	ids := make(map[string][]string)
	for _, f := range favorites {
		ids[f.SourceUUID] = append(ids[f.SourceUUID], f.ContactID)
	}
	results := s.fanout.List(ctx, model.ServiceFavorites, p.Services[model.ServiceFavorites], ids, caller)
	formatted := Format(display, results, NewFavoriteSet(favorites))
	return &formatted, nil
}

// Personal lists every personal contact of the caller through the display
// of the profile. The contacts are attributed to the personal source of the
// lookup service.
func (s *DirectoryService) Personal(ctx context.Context, caller source.Caller, profileName string) (*Formatted, error) {
	if caller.UserUUID == "" {
		return nil, apperrors.ErrInvalidArgument.Msg("user_uuid: required")
	}
	p, display, err := s.profile(ctx, caller, profileName)
	if err != nil {
		return nil, err
	}

	factory := source.ResultFactory{
		UniqueColumn: source.DefaultUniqueColumn,
		IsPersonal:   true,
		IsDeletable:  true,
	}
	for _, ref := range p.Services[model.ServiceLookup].Sources {
		if ref.Backend == model.BackendPersonal {
			factory.SourceName = ref.Name
			break
		}
	}

	contacts, err := s.personal.List(ctx, caller.UserUUID, model.ListParams{})
	if err != nil {
		return nil, err
	}
	results := make([]source.Result, 0, len(contacts))
	for _, c := range contacts {
		results = append(results, factory.New(c))
	}
	favorites, err := s.userFavorites(ctx, caller)
	if err != nil {
		return nil, err
	}
	formatted := Format(display, results, NewFavoriteSet(favorites))
	return &formatted, nil
}

// AddFavorite marks a contact of the source named sourceName, in the tenant
// of the caller, as a favorite. backend may be empty.
func (s *DirectoryService) AddFavorite(ctx context.Context, caller source.Caller, backend, sourceName, contactID string) (*model.Favorite, error) {
	if caller.UserUUID == "" {
		return nil, apperrors.ErrInvalidArgument.Msg("user_uuid: required")
	}
	return s.favorites.Create(ctx, model.User{UUID: caller.UserUUID, TenantUUID: caller.TenantUUID}, backend, sourceName, contactID)
}

// RemoveFavorite removes a favorite of the caller.
func (s *DirectoryService) RemoveFavorite(ctx context.Context, caller source.Caller, sourceName, contactID string) error {
	if caller.UserUUID == "" {
		return apperrors.ErrInvalidArgument.Msg("user_uuid: required")
	}
	return s.favorites.Delete(ctx, caller.UserUUID, sourceName, contactID)
}
