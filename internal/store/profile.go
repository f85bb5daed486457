package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/validation"
)

const (
	profileSelect = `SELECT pr.uuid, pr.tenant_uuid, pr.name, pr.display_uuid, d.name
FROM dird_profile pr LEFT JOIN dird_display d ON d.uuid = pr.display_uuid`
	profileNameConstraint = "dird_profile_tenant_name"
)

var profileOrderColumns = map[string]string{
	"name": "name",
	"uuid": "uuid",
}

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func noSuchProfile(profile string) error {
	return apperrors.ErrNoSuchProfile.Msg(fmt.Sprintf("profile %s not found", profile))
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p           model.Profile
		displayUUID *string
		displayName *string
	)
	if err := row.Scan(&p.UUID, &p.TenantUUID, &p.Name, &displayUUID, &displayName); err != nil {
		return nil, err
	}
	if displayUUID != nil {
		p.Display = &model.DisplayRef{UUID: *displayUUID}
		if displayName != nil {
			p.Display.Name = *displayName
		}
	}
	p.Services = map[string]model.ProfileService{}
	return &p, nil
}

// loadServices fills the services of profiles, sources in their order.
func loadServices(ctx context.Context, q querier, profiles []*model.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	index := make(map[string]*model.Profile, len(profiles))
	uuids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		index[p.UUID] = p
		uuids = append(uuids, p.UUID)
	}

	query := `SELECT ps.profile_uuid, ps.name, ps.config, s.uuid, COALESCE(pb.name, s.name), s.backend
              FROM dird_profile_service ps
              LEFT JOIN dird_profile_service_source pss ON pss.profile_service_uuid = ps.uuid
              LEFT JOIN dird_source s ON s.uuid = pss.source_uuid
              LEFT JOIN dird_phonebook pb ON pb.uuid = s.phonebook_uuid
              WHERE ps.profile_uuid = ANY($1)
              ORDER BY ps.profile_uuid, ps.name, pss.position`
	rows, err := q.Query(ctx, query, uuids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			profileUUID, name string
			options           model.ServiceOptions
			sourceUUID        *string
			sourceName        *string
			backend           *string
		)
		if err := rows.Scan(&profileUUID, &name, &options, &sourceUUID, &sourceName, &backend); err != nil {
			return err
		}
		p := index[profileUUID]
		service, ok := p.Services[name]
		if !ok {
			service = model.ProfileService{Sources: []model.SourceRef{}, Options: options}
		}
		if sourceUUID != nil {
			ref := model.SourceRef{UUID: *sourceUUID}
			if sourceName != nil {
				ref.Name = *sourceName
			}
			if backend != nil {
				ref.Backend = *backend
			}
			service.Sources = append(service.Sources, ref)
		}
		p.Services[name] = service
	}
	return rows.Err()
}

func getProfile(ctx context.Context, q querier, scope model.TenantScope, where string, args queryArgs, ref string, lock bool) (*model.Profile, error) {
	tenant, ok := tenantFilter("pr.tenant_uuid", scope, &args)
	if !ok {
		return nil, noSuchProfile(ref)
	}
	query := profileSelect + ` WHERE ` + tenant + ` AND ` + where
	if lock {
		query += ` FOR UPDATE OF pr`
	}
	p, err := scanProfile(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noSuchProfile(ref)
	}
	if err != nil {
		return nil, err
	}
	if err := loadServices(ctx, q, []*model.Profile{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// checkDisplay verifies that the display belongs to tenantUUID.
func checkDisplay(ctx context.Context, q querier, tenantUUID string, displayUUID *string) error {
	if displayUUID == nil {
		return nil
	}
	_, err := getDisplay(ctx, q, model.Tenants(tenantUUID), *displayUUID)
	return err
}

// insertServices stores the services of a profile. Every source must belong
// to tenantUUID.
func insertServices(ctx context.Context, tx pgx.Tx, tenantUUID, profileUUID string, services map[string]model.ServiceBody) error {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		service := services[name]
		serviceUUID := uuid.NewString()
		if _, err := tx.Exec(ctx, `INSERT INTO dird_profile_service (uuid, profile_uuid, name, config) VALUES ($1, $2, $3, $4)`,
			serviceUUID, profileUUID, name, service.Options); err != nil {
			return err
		}
		for position, sourceUUID := range service.Sources {
			if _, err := getSource(ctx, tx, model.Tenants(tenantUUID), "", sourceUUID, false); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO dird_profile_service_source (profile_service_uuid, source_uuid, position)
                                    VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, serviceUUID, sourceUUID, position)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Create adds a profile to tenantUUID. The display and every source of
// every service must belong to the same tenant.
func (r *ProfileRepository) Create(ctx context.Context, tenantUUID string, body model.ProfileBody) (*model.Profile, error) {
	if err := validation.Struct(body); err != nil {
		return nil, err
	}

	var p *model.Profile
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureTenant(ctx, tx, tenantUUID); err != nil {
			return err
		}
		if err := checkDisplay(ctx, tx, tenantUUID, body.DisplayUUID); err != nil {
			return err
		}
		profileUUID := uuid.NewString()
		_, err := tx.Exec(ctx, `INSERT INTO dird_profile (uuid, tenant_uuid, name, display_uuid) VALUES ($1, $2, $3, $4)`,
			profileUUID, tenantUUID, body.Name, body.DisplayUUID)
		if isUniqueViolation(err, profileNameConstraint) {
			return apperrors.ErrDuplicatedProfile.Msg(fmt.Sprintf("profile %q already exists", body.Name))
		}
		if err != nil {
			return err
		}
		if err := insertServices(ctx, tx, tenantUUID, profileUUID, body.Services); err != nil {
			return err
		}
		var args queryArgs
		where := `pr.uuid = ` + args.add(profileUUID)
		p, err = getProfile(ctx, tx, model.AllTenants(), where, args, profileUUID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Edit replaces the name, the display and the whole service map of a
// profile.
func (r *ProfileRepository) Edit(ctx context.Context, scope model.TenantScope, profileUUID string, body model.ProfileBody) (*model.Profile, error) {
	if err := validation.Struct(body); err != nil {
		return nil, err
	}

	var p *model.Profile
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var args queryArgs
		where := `pr.uuid = ` + args.add(profileUUID)
		existing, err := getProfile(ctx, tx, scope, where, args, profileUUID, true)
		if err != nil {
			return err
		}
		if err := checkDisplay(ctx, tx, existing.TenantUUID, body.DisplayUUID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE dird_profile SET name = $1, display_uuid = $2 WHERE uuid = $3`,
			body.Name, body.DisplayUUID, existing.UUID)
		if isUniqueViolation(err, profileNameConstraint) {
			return apperrors.ErrDuplicatedProfile.Msg(fmt.Sprintf("profile %q already exists", body.Name))
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dird_profile_service WHERE profile_uuid = $1`, existing.UUID); err != nil {
			return err
		}
		if err := insertServices(ctx, tx, existing.TenantUUID, existing.UUID, body.Services); err != nil {
			return err
		}
		p, err = getProfile(ctx, tx, model.AllTenants(), where, args, profileUUID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProfileRepository) Get(ctx context.Context, scope model.TenantScope, profileUUID string) (*model.Profile, error) {
	var args queryArgs
	where := `pr.uuid = ` + args.add(profileUUID)
	p, err := getProfile(ctx, r.db.pool, scope, where, args, profileUUID, false)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// GetByName returns the profile named name in tenantUUID.
func (r *ProfileRepository) GetByName(ctx context.Context, tenantUUID, name string) (*model.Profile, error) {
	var args queryArgs
	where := `pr.name = ` + args.add(name)
	p, err := getProfile(ctx, r.db.pool, model.Tenants(tenantUUID), where, args, fmt.Sprintf("%q", name), false)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (r *ProfileRepository) listFilter(scope model.TenantScope, search string, args *queryArgs) (string, error) {
	tenant, ok := tenantFilter("pr.tenant_uuid", scope, args)
	if !ok {
		return "", apperrors.ErrNoSuchTenant.Msg("no visible tenant")
	}
	if search != "" {
		tenant += ` AND pr.name ILIKE ` + args.add(containsPattern(search))
	}
	return tenant, nil
}

func (r *ProfileRepository) List(ctx context.Context, scope model.TenantScope, params model.ListParams) ([]model.Profile, error) {
	var args queryArgs
	where, err := r.listFilter(scope, params.Search, &args)
	if err != nil {
		return nil, err
	}
	order, err := orderBy("pr", params, profileOrderColumns, "name")
	if err != nil {
		return nil, err
	}
	query := profileSelect + ` WHERE ` + where + ` ` + order + paginate(params, &args)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Profile, error) {
		return scanProfile(row)
	})
	if err != nil {
		return nil, classify(err)
	}
	if err := loadServices(ctx, r.db.pool, profiles); err != nil {
		return nil, classify(err)
	}

	out := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (r *ProfileRepository) Count(ctx context.Context, scope model.TenantScope, params model.ListParams) (int, error) {
	var args queryArgs
	where, err := r.listFilter(scope, params.Search, &args)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dird_profile pr WHERE `+where, args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (r *ProfileRepository) Delete(ctx context.Context, scope model.TenantScope, profileUUID string) error {
	var args queryArgs
	tenant, ok := tenantFilter("pr.tenant_uuid", scope, &args)
	if !ok {
		return noSuchProfile(profileUUID)
	}
	query := `DELETE FROM dird_profile pr WHERE ` + tenant + ` AND pr.uuid = ` + args.add(profileUUID)
	tag, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return noSuchProfile(profileUUID)
	}
	return nil
}
