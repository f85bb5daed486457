package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/service"
	"github.com/teresa-solution/directory-service/internal/source"
)

// Headers identifying the caller. The authentication proxy in front of the
// directory sets them.
const (
	TenantHeader = "Tenant-UUID"
	UserHeader   = "User-UUID"
)

const maxImportSize = 10 << 20

// Directory answers the profile queries.
type Directory interface {
	Lookup(ctx context.Context, caller source.Caller, profileName, term string) (*service.Formatted, error)
	Reverse(ctx context.Context, caller source.Caller, profileName, exten string) (*service.ReverseResult, error)
	Favorites(ctx context.Context, caller source.Caller, profileName string) (*service.Formatted, error)
	Personal(ctx context.Context, caller source.Caller, profileName string) (*service.Formatted, error)
	AddFavorite(ctx context.Context, caller source.Caller, backend, sourceName, contactID string) (*model.Favorite, error)
	RemoveFavorite(ctx context.Context, caller source.Caller, sourceName, contactID string) error
}

// Importer imports personal contacts.
type Importer interface {
	Import(ctx context.Context, user model.User, document string) (*service.ImportResult, error)
}

type handlers struct {
	directory  Directory
	importer   Importer
	phonebooks Phonebooks
}

// Router returns the directory API.
func Router(directory Directory, importer Importer, phonebooks Phonebooks) chi.Router {
	h := handlers{directory: directory, importer: importer, phonebooks: phonebooks}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(panicHandler)
	r.Route("/directories", func(r chi.Router) {
		r.Get("/lookup/{profile}", wrap(h.lookup))
		r.Get("/reverse/{profile}/{exten}", wrap(h.reverse))
		r.Get("/favorites/{profile}", wrap(h.favorites))
		r.Put("/favorites/{directory}/{contact}", wrap(h.addFavorite))
		r.Delete("/favorites/{directory}/{contact}", wrap(h.removeFavorite))
		r.Get("/personal/{profile}", wrap(h.personal))
	})
	r.Post("/personal/import", wrap(h.importPersonal))
	r.Route("/phonebooks", func(r chi.Router) {
		r.Post("/", wrap(h.createPhonebook))
		r.Put("/{phonebook}", wrap(h.editPhonebook))
	})
	return r
}

func caller(r *http.Request) (source.Caller, error) {
	c := source.Caller{
		TenantUUID: r.Header.Get(TenantHeader),
		UserUUID:   r.Header.Get(UserHeader),
	}
	if c.TenantUUID == "" {
		return c, apperrors.ErrInvalidArgument.Msg(TenantHeader + ": required")
	}
	return c, nil
}

func (h handlers) lookup(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	term := r.URL.Query().Get("term")
	if term == "" {
		return nil, apperrors.ErrInvalidArgument.Msg("term: required")
	}
	out, err := h.directory.Lookup(r.Context(), c, chi.URLParam(r, "profile"), term)
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusOK, Body: out}, nil
}

func (h handlers) reverse(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	exten := chi.URLParam(r, "exten")
	out, err := h.directory.Reverse(r.Context(), c, chi.URLParam(r, "profile"), exten)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return &response{StatusCode: http.StatusOK, Body: service.ReverseResult{Exten: exten, Fields: map[string]string{}}}, nil
	}
	return &response{StatusCode: http.StatusOK, Body: out}, nil
}

func (h handlers) favorites(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	out, err := h.directory.Favorites(r.Context(), c, chi.URLParam(r, "profile"))
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusOK, Body: out}, nil
}

func (h handlers) addFavorite(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	backend := r.URL.Query().Get("backend")
	if _, err := h.directory.AddFavorite(r.Context(), c, backend, chi.URLParam(r, "directory"), chi.URLParam(r, "contact")); err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusNoContent}, nil
}

func (h handlers) removeFavorite(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	if err := h.directory.RemoveFavorite(r.Context(), c, chi.URLParam(r, "directory"), chi.URLParam(r, "contact")); err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusNoContent}, nil
}

func (h handlers) personal(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	out, err := h.directory.Personal(r.Context(), c, chi.URLParam(r, "profile"))
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusOK, Body: out}, nil
}

func (h handlers) importPersonal(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	if c.UserUUID == "" {
		return nil, apperrors.ErrInvalidArgument.Msg(UserHeader + ": required")
	}
	document, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		return nil, apperrors.ErrInvalidArgument.Err(err)
	}
	out, err := h.importer.Import(r.Context(), model.User{UUID: c.UserUUID, TenantUUID: c.TenantUUID}, string(document))
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusCreated, Body: out}, nil
}
