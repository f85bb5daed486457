package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

func strPtr(s string) *string { return &s }

func TestStruct_PhonebookBody(t *testing.T) {
	assert.NoError(t, Struct(model.PhonebookBody{Name: "main"}))

	err := Struct(model.PhonebookBody{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "name")
}

func TestStruct_DisplayBody(t *testing.T) {
	err := Struct(model.DisplayBody{Name: "default"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	err = Struct(model.DisplayBody{Name: "default", Columns: []model.DisplayColumn{{}}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	assert.NoError(t, Struct(model.DisplayBody{
		Name:    "default",
		Columns: []model.DisplayColumn{{Field: "firstname", Title: strPtr("Firstname")}},
	}))
}

func TestSourceBody(t *testing.T) {
	tests := []struct {
		name    string
		body    model.SourceBody
		wantErr bool
	}{
		{
			name: "personal",
			body: model.SourceBody{Name: "personal", Backend: model.BackendPersonal},
		},
		{
			name:    "missing name",
			body:    model.SourceBody{Backend: model.BackendPersonal},
			wantErr: true,
		},
		{
			name: "phonebook name comes from the phonebook",
			body: model.SourceBody{Backend: model.BackendPhonebook, PhonebookUUID: strPtr("3f0e6c4c-2b63-4c4e-9d4e-0c5e2f0a9f11")},
		},
		{
			name:    "phonebook without phonebook_uuid",
			body:    model.SourceBody{Name: "pb", Backend: model.BackendPhonebook},
			wantErr: true,
		},
		{
			name:    "malformed backend",
			body:    model.SourceBody{Name: "x", Backend: "Not A Backend"},
			wantErr: true,
		},
		{
			name: "ldap with its settings",
			body: model.SourceBody{Name: "corp", Backend: model.BackendLDAP, ExtraFields: map[string]any{
				"ldap_uri":     "ldap://ldap.example.com",
				"ldap_base_dn": "ou=people,dc=example,dc=com",
			}},
		},
		{
			name:    "ldap missing base dn",
			body:    model.SourceBody{Name: "corp", Backend: model.BackendLDAP, ExtraFields: map[string]any{"ldap_uri": "ldap://ldap.example.com"}},
			wantErr: true,
		},
		{
			name:    "http with a bad url",
			body:    model.SourceBody{Name: "api", Backend: model.BackendHTTP, ExtraFields: map[string]any{"lookup_url": "not a url"}},
			wantErr: true,
		},
		{
			name:    "csv file must be a string",
			body:    model.SourceBody{Name: "csv", Backend: model.BackendCSV, ExtraFields: map[string]any{"file": 3}},
			wantErr: true,
		},
		{
			name: "unknown backend keeps its extra fields unchecked",
			body: model.SourceBody{Name: "custom", Backend: "custom-crm", ExtraFields: map[string]any{"anything": []int{1}}},
		},
		{
			name:    "empty searched column",
			body:    model.SourceBody{Name: "p", Backend: model.BackendPersonal, SearchedColumns: []string{"firstname", ""}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SourceBody(tt.body)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidSourceConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCountry(t *testing.T) {
	assert.NoError(t, Country("FR"))
	assert.ErrorIs(t, Country("fr"), apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, Country("FRA"), apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, Country(""), apperrors.ErrInvalidArgument)
}
