package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/validation"
)

const (
	phonebookColumns        = `p.id, p.uuid, p.tenant_uuid, p.name, p.description`
	phonebookNameConstraint = "dird_phonebook_name_tenant_uuid"
	sourceNameConstraint    = "dird_source_tenant_name"
)

var phonebookOrderColumns = map[string]string{
	"name":        "name",
	"description": "description",
}

// PhonebookRepository handles database operations for phonebooks
type PhonebookRepository struct {
	db *DB
}

func NewPhonebookRepository(db *DB) *PhonebookRepository {
	return &PhonebookRepository{db: db}
}

func scanPhonebook(row pgx.Row) (*model.Phonebook, error) {
	p := &model.Phonebook{}
	if err := row.Scan(&p.ID, &p.UUID, &p.TenantUUID, &p.Name, &p.Description); err != nil {
		return nil, err
	}
	return p, nil
}

func noSuchPhonebook(key model.PhonebookKey) error {
	return apperrors.ErrNoSuchPhonebook.Msg(fmt.Sprintf("phonebook %s not found", key))
}

func duplicatedPhonebook(name string) error {
	return apperrors.ErrDuplicatedPhonebook.Msg(fmt.Sprintf("phonebook %q already exists", name))
}

// resolvePhonebook fetches the phonebook selected by key under scope. With
// lock set the row is locked until the end of the transaction.
func resolvePhonebook(ctx context.Context, q querier, scope model.TenantScope, key model.PhonebookKey, lock bool) (*model.Phonebook, error) {
	var args queryArgs
	tenant, ok := tenantFilter("p.tenant_uuid", scope, &args)
	if !ok {
		return nil, noSuchPhonebook(key)
	}
	selector, ok := phonebookKeyFilter("p", key, &args)
	if !ok {
		return nil, noSuchPhonebook(key)
	}
	query := `SELECT ` + phonebookColumns + ` FROM dird_phonebook p WHERE ` + tenant + ` AND ` + selector
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanPhonebook(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noSuchPhonebook(key)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// listFilter returns the WHERE clause shared by List and Count.
func (r *PhonebookRepository) listFilter(scope model.TenantScope, search string, args *queryArgs) (string, error) {
	tenant, ok := tenantFilter("p.tenant_uuid", scope, args)
	if !ok {
		return "", apperrors.ErrNoSuchTenant.Msg("no visible tenant")
	}
	where := tenant
	if search != "" {
		pattern := args.add(containsPattern(search))
		where += ` AND (p.name ILIKE ` + pattern + ` OR p.description ILIKE ` + pattern + `)`
	}
	return where, nil
}

// Count returns the number of phonebooks matching params.Search. Ordering
// and pagination are ignored.
func (r *PhonebookRepository) Count(ctx context.Context, scope model.TenantScope, params model.ListParams) (int, error) {
	var args queryArgs
	where, err := r.listFilter(scope, params.Search, &args)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dird_phonebook p WHERE `+where, args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (r *PhonebookRepository) List(ctx context.Context, scope model.TenantScope, params model.ListParams) ([]model.Phonebook, error) {
	var args queryArgs
	where, err := r.listFilter(scope, params.Search, &args)
	if err != nil {
		return nil, err
	}
	order, err := orderBy("p", params, phonebookOrderColumns, "name")
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + phonebookColumns + ` FROM dird_phonebook p WHERE ` + where + ` ` + order + paginate(params, &args)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	phonebooks := []model.Phonebook{}
	for rows.Next() {
		p, err := scanPhonebook(rows)
		if err != nil {
			return nil, classify(err)
		}
		phonebooks = append(phonebooks, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return phonebooks, nil
}

func (r *PhonebookRepository) Get(ctx context.Context, scope model.TenantScope, key model.PhonebookKey) (*model.Phonebook, error) {
	p, err := resolvePhonebook(ctx, r.db.pool, scope, key, false)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// Create inserts a phonebook for tenantUUID, creating the tenant if needed.
func (r *PhonebookRepository) Create(ctx context.Context, tenantUUID string, body model.PhonebookBody) (*model.Phonebook, error) {
	body.Name = strings.TrimSpace(body.Name)
	if err := validation.Struct(body); err != nil {
		return nil, err
	}

	p := &model.Phonebook{
		UUID:        uuid.NewString(),
		TenantUUID:  tenantUUID,
		Name:        body.Name,
		Description: body.Description,
	}
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureTenant(ctx, tx, tenantUUID); err != nil {
			return err
		}
		query := `INSERT INTO dird_phonebook (uuid, name, description, tenant_uuid)
                  VALUES ($1, $2, $3, $4) RETURNING id`
		err := tx.QueryRow(ctx, query, p.UUID, p.Name, p.Description, p.TenantUUID).Scan(&p.ID)
		if isUniqueViolation(err, phonebookNameConstraint) {
			return duplicatedPhonebook(p.Name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("tenant_uuid", tenantUUID).Str("phonebook_uuid", p.UUID).Msg("Phonebook created")
	return p, nil
}

// Edit replaces the name and description of a phonebook. The phonebook
// backed sources are renamed along with it.
func (r *PhonebookRepository) Edit(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, body model.PhonebookBody) (*model.Phonebook, error) {
	body.Name = strings.TrimSpace(body.Name)
	if err := validation.Struct(body); err != nil {
		return nil, err
	}

	var (
		p       *model.Phonebook
		renamed []string
	)
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		if p, err = resolvePhonebook(ctx, tx, scope, key, true); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE dird_phonebook SET name = $1, description = $2 WHERE uuid = $3`,
			body.Name, body.Description, p.UUID)
		if isUniqueViolation(err, phonebookNameConstraint) {
			return duplicatedPhonebook(body.Name)
		}
		if err != nil {
			return err
		}
		p.Name = body.Name
		p.Description = body.Description

		rows, err := tx.Query(ctx, `UPDATE dird_source SET name = $1 WHERE phonebook_uuid = $2 RETURNING uuid`, p.Name, p.UUID)
		if err != nil {
			return err
		}
		renamed, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if isUniqueViolation(err, sourceNameConstraint) {
			return apperrors.ErrDuplicatedSource.Msg(fmt.Sprintf("a source named %q already exists", p.Name))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	r.db.sourcesChanged(ctx, renamed...)
	return p, nil
}

// Delete removes a phonebook with its contacts and the sources backed by it.
func (r *PhonebookRepository) Delete(ctx context.Context, scope model.TenantScope, key model.PhonebookKey) error {
	var removed []string
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		p, err := resolvePhonebook(ctx, tx, scope, key, true)
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT uuid FROM dird_source WHERE phonebook_uuid = $1`, p.UUID)
		if err != nil {
			return err
		}
		if removed, err = pgx.CollectRows(rows, pgx.RowTo[string]); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM dird_phonebook WHERE uuid = $1`, p.UUID)
		return err
	})
	if err != nil {
		return err
	}

	r.db.sourcesChanged(ctx, removed...)
	return nil
}

// UpdateTenant moves a phonebook to another tenant. Phonebooks used by a
// source cannot move since the source would end up in a different tenant.
func (r *PhonebookRepository) UpdateTenant(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, tenantUUID string) (*model.Phonebook, error) {
	var p *model.Phonebook
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		if p, err = resolvePhonebook(ctx, tx, scope, key, true); err != nil {
			return err
		}
		if p.TenantUUID == tenantUUID {
			return nil
		}
		var used bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dird_source WHERE phonebook_uuid = $1)`, p.UUID).Scan(&used); err != nil {
			return err
		}
		if used {
			return apperrors.ErrInvalidPhonebook.Msg(fmt.Sprintf("phonebook %s is used by a source", p.UUID))
		}
		if err := ensureTenant(ctx, tx, tenantUUID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE dird_phonebook SET tenant_uuid = $1 WHERE uuid = $2`, tenantUUID, p.UUID)
		if isUniqueViolation(err, phonebookNameConstraint) {
			return duplicatedPhonebook(p.Name)
		}
		if err != nil {
			return err
		}
		p.TenantUUID = tenantUUID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
