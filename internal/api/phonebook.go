package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

const maxBodySize = 1 << 20

// Phonebooks creates and edits the phonebooks of the caller's tenant.
type Phonebooks interface {
	Create(ctx context.Context, tenantUUID string, body model.PhonebookBody) (*model.Phonebook, error)
	Edit(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, body model.PhonebookBody) (*model.Phonebook, error)
}

// phonebookKey reads the {phonebook} parameter, either a legacy integer id
// or a uuid.
func phonebookKey(r *http.Request) model.PhonebookKey {
	param := chi.URLParam(r, "phonebook")
	if id, err := strconv.Atoi(param); err == nil {
		return model.PhonebookByID(id)
	}
	return model.PhonebookByUUID(param)
}

func phonebookBody(r *http.Request) (model.PhonebookBody, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return model.PhonebookBody{}, apperrors.ErrInvalidArgument.Err(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.PhonebookBody{}, apperrors.ErrInvalidArgument.MsgErr("body: expected a JSON object", err)
	}
	return model.ParsePhonebookBody(raw)
}

func (h handlers) createPhonebook(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	body, err := phonebookBody(r)
	if err != nil {
		return nil, err
	}
	p, err := h.phonebooks.Create(r.Context(), c.TenantUUID, body)
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusCreated, Body: p}, nil
}

func (h handlers) editPhonebook(r *http.Request) (*response, error) {
	c, err := caller(r)
	if err != nil {
		return nil, err
	}
	body, err := phonebookBody(r)
	if err != nil {
		return nil, err
	}
	p, err := h.phonebooks.Edit(r.Context(), model.Tenants(c.TenantUUID), phonebookKey(r), body)
	if err != nil {
		return nil, err
	}
	return &response{StatusCode: http.StatusOK, Body: p}, nil
}
