package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

func TestTenantFilter(t *testing.T) {
	t.Run("unrestricted", func(t *testing.T) {
		var args queryArgs
		where, ok := tenantFilter("p.tenant_uuid", model.AllTenants(), &args)
		assert.True(t, ok)
		assert.Equal(t, "TRUE", where)
		assert.Empty(t, args)
	})

	t.Run("empty", func(t *testing.T) {
		var args queryArgs
		_, ok := tenantFilter("p.tenant_uuid", model.Tenants(), &args)
		assert.False(t, ok)
		assert.Empty(t, args)

		_, ok = tenantFilter("p.tenant_uuid", model.TenantScope{}, &args)
		assert.False(t, ok)
	})

	t.Run("restricted", func(t *testing.T) {
		args := queryArgs{"first"}
		where, ok := tenantFilter("p.tenant_uuid", model.Tenants("t1", "t2"), &args)
		assert.True(t, ok)
		assert.Equal(t, "p.tenant_uuid = ANY($2)", where)
		assert.Equal(t, queryArgs{"first", []string{"t1", "t2"}}, args)
	})
}

func TestPhonebookKeyFilter(t *testing.T) {
	var args queryArgs
	where, ok := phonebookKeyFilter("p", model.PhonebookByID(42), &args)
	assert.True(t, ok)
	assert.Equal(t, "p.id = $1", where)

	where, ok = phonebookKeyFilter("p", model.PhonebookByUUID("abc"), &args)
	assert.True(t, ok)
	assert.Equal(t, "p.uuid = $2", where)
	assert.Equal(t, queryArgs{42, "abc"}, args)

	_, ok = phonebookKeyFilter("p", model.PhonebookKey{}, &args)
	assert.False(t, ok)
	_, ok = phonebookKeyFilter("p", model.PhonebookByUUID(""), &args)
	assert.False(t, ok)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%ced%", containsPattern("ced"))
	assert.Equal(t, `%100\%\_a\\b%`, containsPattern(`100%_a\b`))
}

func TestOrderBy(t *testing.T) {
	columns := map[string]string{"name": "name", "description": "description"}

	clause, err := orderBy("p", model.ListParams{}, columns, "name")
	require.NoError(t, err)
	assert.Equal(t, `ORDER BY p."name" ASC`, clause)

	clause, err = orderBy("p", model.ListParams{Order: "description", Direction: model.Descending}, columns, "name")
	require.NoError(t, err)
	assert.Equal(t, `ORDER BY p."description" DESC`, clause)

	_, err = orderBy("p", model.ListParams{Order: "name; DROP TABLE dird_phonebook"}, columns, "name")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = orderBy("p", model.ListParams{Direction: "sideways"}, columns, "name")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestPaginate(t *testing.T) {
	var args queryArgs
	assert.Equal(t, "", paginate(model.ListParams{}, &args))
	assert.Equal(t, " LIMIT $1 OFFSET $2", paginate(model.ListParams{Limit: 10, Offset: 20}, &args))
	assert.Equal(t, queryArgs{10, 20}, args)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	notFound := apperrors.ErrNoSuchPhonebook.Msg("gone")
	assert.Same(t, notFound, classify(notFound))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "dird_phonebook_name_tenant_uuid"}
	assert.True(t, isUniqueViolation(unique, phonebookNameConstraint))
	assert.True(t, isUniqueViolation(unique, ""))
	assert.False(t, isUniqueViolation(unique, sourceNameConstraint))
	assert.ErrorIs(t, classify(unique), apperrors.ErrIntegrity)

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(unique))

	badText := &pgconn.PgError{Code: "22021", Message: "invalid byte sequence for encoding \"UTF8\": 0x00"}
	assert.True(t, isDataException(badText))
	assert.False(t, isDataException(unique))
	assert.ErrorIs(t, classify(badText), apperrors.ErrInvalidArgument)
	assert.Equal(t, 400, apperrors.StatusCode(classify(badText)))

	err := classify(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, apperrors.ErrDatabaseUnavailable)
	assert.Equal(t, 503, apperrors.StatusCode(err))
}
