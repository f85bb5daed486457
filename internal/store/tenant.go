package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/validation"
)

// TenantRepository handles database operations for tenants
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// ensureTenant creates the tenant row unless it already exists. Concurrent
// callers may race on the insert, the loser does nothing.
func ensureTenant(ctx context.Context, q querier, tenantUUID string) error {
	if tenantUUID == "" {
		return apperrors.ErrInvalidArgument.Msg("tenant_uuid: required")
	}
	_, err := q.Exec(ctx, `INSERT INTO dird_tenant (uuid) VALUES ($1) ON CONFLICT (uuid) DO NOTHING`, tenantUUID)
	return err
}

// Ensure creates the tenant if it does not exist yet.
func (r *TenantRepository) Ensure(ctx context.Context, tenantUUID string) error {
	return classify(ensureTenant(ctx, r.db.pool, tenantUUID))
}

// Get retrieves a tenant by uuid
func (r *TenantRepository) Get(ctx context.Context, tenantUUID string) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	err := r.db.pool.QueryRow(ctx, `SELECT uuid, country FROM dird_tenant WHERE uuid = $1`, tenantUUID).
		Scan(&tenant.UUID, &tenant.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNoSuchTenant.Msg(fmt.Sprintf("tenant %s not found", tenantUUID))
	}
	if err != nil {
		return nil, classify(err)
	}
	return tenant, nil
}

// SetCountry records the country of a tenant, creating the tenant if needed.
func (r *TenantRepository) SetCountry(ctx context.Context, tenantUUID, country string) error {
	if err := validation.Country(country); err != nil {
		return err
	}
	query := `INSERT INTO dird_tenant (uuid, country) VALUES ($1, $2)
              ON CONFLICT (uuid) DO UPDATE SET country = EXCLUDED.country`
	if _, err := r.db.pool.Exec(ctx, query, tenantUUID, country); err != nil {
		return classify(err)
	}
	log.Ctx(ctx).Debug().Str("tenant_uuid", tenantUUID).Str("country", country).Msg("Tenant country updated")
	return nil
}

// UserRepository handles database operations for users
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// ensureUser creates the user and its tenant unless they exist.
func ensureUser(ctx context.Context, q querier, user model.User) error {
	if user.UUID == "" {
		return apperrors.ErrInvalidArgument.Msg("user_uuid: required")
	}
	if err := ensureTenant(ctx, q, user.TenantUUID); err != nil {
		return err
	}
	_, err := q.Exec(ctx, `INSERT INTO dird_user (user_uuid, tenant_uuid) VALUES ($1, $2) ON CONFLICT (user_uuid) DO NOTHING`,
		user.UUID, user.TenantUUID)
	return err
}

func (r *UserRepository) Ensure(ctx context.Context, user model.User) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		return ensureUser(ctx, tx, user)
	})
}

func (r *UserRepository) Get(ctx context.Context, userUUID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.pool.QueryRow(ctx, `SELECT user_uuid, tenant_uuid FROM dird_user WHERE user_uuid = $1`, userUUID).
		Scan(&user.UUID, &user.TenantUUID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNoSuchUser.Msg(fmt.Sprintf("user %s not found", userUUID))
	}
	if err != nil {
		return nil, classify(err)
	}
	return user, nil
}

// Delete removes the user with its personal contacts and favorites.
func (r *UserRepository) Delete(ctx context.Context, userUUID string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM dird_user WHERE user_uuid = $1`, userUUID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNoSuchUser.Msg(fmt.Sprintf("user %s not found", userUUID))
	}
	return nil
}
