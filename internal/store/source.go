package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/validation"
)

const sourceSelect = `SELECT s.uuid, s.tenant_uuid, s.backend, COALESCE(p.name, s.name), s.searched_columns,
       s.first_matched_columns, akeys(s.format_columns), avals(s.format_columns), s.extra_fields,
       s.phonebook_uuid, p.id, p.description
FROM dird_source s LEFT JOIN dird_phonebook p ON p.uuid = s.phonebook_uuid`

var sourceOrderColumns = map[string]string{
	"name":    "name",
	"backend": "backend",
	"uuid":    "uuid",
}

// SourceRepository handles database operations for sources
type SourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func noSuchSource(sourceUUID string) error {
	return apperrors.ErrNoSuchSource.Msg(fmt.Sprintf("source %s not found", sourceUUID))
}

func scanSource(row pgx.Row) (*model.Source, error) {
	var (
		s                  model.Source
		formatKeys, values []string
		phonebookID        *int
		phonebookDesc      *string
	)
	err := row.Scan(&s.UUID, &s.TenantUUID, &s.Backend, &s.Name, &s.SearchedColumns, &s.FirstMatchedColumns,
		&formatKeys, &values, &s.ExtraFields, &s.PhonebookUUID, &phonebookID, &phonebookDesc)
	if err != nil {
		return nil, err
	}
	s.FormatColumns = make(map[string]string, len(formatKeys))
	for i, k := range formatKeys {
		if i < len(values) {
			s.FormatColumns[k] = values[i]
		}
	}
	if s.PhonebookUUID != nil && phonebookID != nil {
		s.Phonebook = &model.PhonebookRef{
			ID:          *phonebookID,
			UUID:        *s.PhonebookUUID,
			Name:        s.Name,
			Description: phonebookDesc,
		}
	}
	return &s, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// hstoreArgs splits m into sorted keys and their values.
func hstoreArgs(m map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return keys, values
}

func getSource(ctx context.Context, q querier, scope model.TenantScope, backend, sourceUUID string, lock bool) (*model.Source, error) {
	var args queryArgs
	tenant, ok := tenantFilter("s.tenant_uuid", scope, &args)
	if !ok {
		return nil, noSuchSource(sourceUUID)
	}
	query := sourceSelect + ` WHERE ` + tenant + ` AND s.uuid = ` + args.add(sourceUUID)
	if backend != "" {
		query += ` AND s.backend = ` + args.add(backend)
	}
	if lock {
		query += ` FOR UPDATE OF s`
	}
	s, err := scanSource(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noSuchSource(sourceUUID)
	}
	return s, err
}

// sourcePhonebook resolves the phonebook of a phonebook backed source. The
// phonebook must belong to the tenant of the source.
func sourcePhonebook(ctx context.Context, q querier, tenantUUID string, body model.SourceBody) (*model.Phonebook, error) {
	if body.Backend != model.BackendPhonebook {
		return nil, nil
	}
	p, err := resolvePhonebook(ctx, q, model.Tenants(tenantUUID), model.PhonebookByUUID(*body.PhonebookUUID), false)
	if errors.Is(err, apperrors.ErrNoSuchPhonebook) {
		return nil, apperrors.ErrInvalidSourceConfig.Msg(fmt.Sprintf("phonebook_uuid: phonebook %s not found", *body.PhonebookUUID))
	}
	return p, err
}

func sourceWriteError(err error, name string) error {
	if isUniqueViolation(err, sourceNameConstraint) {
		return apperrors.ErrDuplicatedSource.Msg(fmt.Sprintf("a source named %q already exists", name))
	}
	if isForeignKeyViolation(err) {
		return apperrors.ErrInvalidSourceConfig.Err(err)
	}
	return err
}

// Create adds a source to tenantUUID. The name of a phonebook backed source
// is the name of its phonebook.
func (r *SourceRepository) Create(ctx context.Context, tenantUUID string, body model.SourceBody) (*model.Source, error) {
	if err := validation.SourceBody(body); err != nil {
		return nil, err
	}

	var s *model.Source
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureTenant(ctx, tx, tenantUUID); err != nil {
			return err
		}
		p, err := sourcePhonebook(ctx, tx, tenantUUID, body)
		if err != nil {
			return err
		}
		name := body.Name
		var phonebookUUID *string
		if p != nil {
			name = p.Name
			phonebookUUID = &p.UUID
		}

		sourceUUID := uuid.NewString()
		formatKeys, formatValues := hstoreArgs(body.FormatColumns)
		extra := body.ExtraFields
		if extra == nil {
			extra = map[string]any{}
		}
		query := `INSERT INTO dird_source (uuid, tenant_uuid, name, backend, searched_columns, first_matched_columns,
                                           format_columns, extra_fields, phonebook_uuid)
                  VALUES ($1, $2, $3, $4, $5, $6, hstore($7::text[], $8::text[]), $9, $10)`
		_, err = tx.Exec(ctx, query, sourceUUID, tenantUUID, name, body.Backend, orEmpty(body.SearchedColumns),
			orEmpty(body.FirstMatchedColumns), formatKeys, formatValues, extra, phonebookUUID)
		if err != nil {
			return sourceWriteError(err, name)
		}
		s, err = getSource(ctx, tx, model.AllTenants(), "", sourceUUID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("tenant_uuid", tenantUUID).Str("source_uuid", s.UUID).Str("backend", s.Backend).Msg("Source created")
	return s, nil
}

// Edit replaces the configuration of a source.
func (r *SourceRepository) Edit(ctx context.Context, scope model.TenantScope, backend, sourceUUID string, body model.SourceBody) (*model.Source, error) {
	if body.Backend == "" {
		body.Backend = backend
	}
	if err := validation.SourceBody(body); err != nil {
		return nil, err
	}

	var s *model.Source
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		existing, err := getSource(ctx, tx, scope, backend, sourceUUID, true)
		if err != nil {
			return err
		}
		p, err := sourcePhonebook(ctx, tx, existing.TenantUUID, body)
		if err != nil {
			return err
		}
		name := body.Name
		var phonebookUUID *string
		if p != nil {
			name = p.Name
			phonebookUUID = &p.UUID
		}

		formatKeys, formatValues := hstoreArgs(body.FormatColumns)
		extra := body.ExtraFields
		if extra == nil {
			extra = map[string]any{}
		}
		query := `UPDATE dird_source SET name = $1, searched_columns = $2, first_matched_columns = $3,
                         format_columns = hstore($4::text[], $5::text[]), extra_fields = $6, phonebook_uuid = $7
                  WHERE uuid = $8`
		_, err = tx.Exec(ctx, query, name, orEmpty(body.SearchedColumns), orEmpty(body.FirstMatchedColumns),
			formatKeys, formatValues, extra, phonebookUUID, existing.UUID)
		if err != nil {
			return sourceWriteError(err, name)
		}
		s, err = getSource(ctx, tx, model.AllTenants(), "", existing.UUID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.db.sourcesChanged(ctx, s.UUID)
	return s, nil
}

func (r *SourceRepository) Delete(ctx context.Context, scope model.TenantScope, backend, sourceUUID string) error {
	var args queryArgs
	tenant, ok := tenantFilter("s.tenant_uuid", scope, &args)
	if !ok {
		return noSuchSource(sourceUUID)
	}
	query := `DELETE FROM dird_source s WHERE ` + tenant + ` AND s.uuid = ` + args.add(sourceUUID)
	if backend != "" {
		query += ` AND s.backend = ` + args.add(backend)
	}
	tag, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return noSuchSource(sourceUUID)
	}

	r.db.sourcesChanged(ctx, sourceUUID)
	return nil
}

// Get returns a source under scope. An empty backend matches any backend.
func (r *SourceRepository) Get(ctx context.Context, scope model.TenantScope, backend, sourceUUID string) (*model.Source, error) {
	s, err := getSource(ctx, r.db.pool, scope, backend, sourceUUID, false)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

// GetByUUID returns a source whatever its tenant, going through the cache.
func (r *SourceRepository) GetByUUID(ctx context.Context, sourceUUID string) (*model.Source, error) {
	if s, ok := r.db.cache.Get(ctx, sourceUUID); ok {
		return s, nil
	}
	generation := r.db.cache.Generation(sourceUUID)
	s, err := getSource(ctx, r.db.pool, model.AllTenants(), "", sourceUUID, false)
	if err != nil {
		return nil, classify(err)
	}
	r.db.cache.Set(ctx, s, generation)
	return s, nil
}

// FindByName returns the source named name visible under scope. An empty
// backend matches any backend.
func (r *SourceRepository) FindByName(ctx context.Context, scope model.TenantScope, backend, name string) (*model.Source, error) {
	var args queryArgs
	tenant, ok := tenantFilter("s.tenant_uuid", scope, &args)
	if !ok {
		return nil, apperrors.ErrNoSuchSource.Msg(fmt.Sprintf("source %q not found", name))
	}
	query := sourceSelect + ` WHERE ` + tenant + ` AND COALESCE(p.name, s.name) = ` + args.add(name)
	if backend != "" {
		query += ` AND s.backend = ` + args.add(backend)
	}
	query += ` ORDER BY s.uuid LIMIT 1`
	s, err := scanSource(r.db.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNoSuchSource.Msg(fmt.Sprintf("source %q not found", name))
	}
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

func (r *SourceRepository) listFilter(scope model.TenantScope, backend, search string, args *queryArgs) (string, error) {
	tenant, ok := tenantFilter("s.tenant_uuid", scope, args)
	if !ok {
		return "", apperrors.ErrNoSuchTenant.Msg("no visible tenant")
	}
	where := tenant
	if backend != "" {
		where += ` AND s.backend = ` + args.add(backend)
	}
	if search != "" {
		where += ` AND COALESCE(p.name, s.name) ILIKE ` + args.add(containsPattern(search))
	}
	return where, nil
}

func (r *SourceRepository) List(ctx context.Context, scope model.TenantScope, backend string, params model.ListParams) ([]model.Source, error) {
	var args queryArgs
	where, err := r.listFilter(scope, backend, params.Search, &args)
	if err != nil {
		return nil, err
	}
	order, err := orderBy("s", params, sourceOrderColumns, "name")
	if err != nil {
		return nil, err
	}
	query := sourceSelect + ` WHERE ` + where + ` ` + order + paginate(params, &args)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	sources := []model.Source{}
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, classify(err)
		}
		sources = append(sources, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return sources, nil
}

func (r *SourceRepository) Count(ctx context.Context, scope model.TenantScope, backend string, params model.ListParams) (int, error) {
	var args queryArgs
	where, err := r.listFilter(scope, backend, params.Search, &args)
	if err != nil {
		return 0, err
	}
	query := `SELECT COUNT(*) FROM dird_source s LEFT JOIN dird_phonebook p ON p.uuid = s.phonebook_uuid WHERE ` + where
	var count int
	if err := r.db.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}
