package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/validation"
)

var displayOrderColumns = map[string]string{
	"name": "name",
	"uuid": "uuid",
}

// DisplayRepository handles database operations for displays
type DisplayRepository struct {
	db *DB
}

func NewDisplayRepository(db *DB) *DisplayRepository {
	return &DisplayRepository{db: db}
}

func noSuchDisplay(displayUUID string) error {
	return apperrors.ErrNoSuchDisplay.Msg(fmt.Sprintf("display %s not found", displayUUID))
}

func insertColumns(ctx context.Context, tx pgx.Tx, displayUUID string, columns []model.DisplayColumn) error {
	batch := &pgx.Batch{}
	for i, c := range columns {
		batch.Queue(`INSERT INTO dird_display_column (uuid, display_uuid, field, title, type, "default", number_display, position)
                     VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), displayUUID, c.Field, c.Title, c.Type, c.Default, c.NumberDisplay, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// loadColumns fills the columns of displays.
func loadColumns(ctx context.Context, q querier, displays []model.Display) error {
	if len(displays) == 0 {
		return nil
	}
	index := make(map[string]int, len(displays))
	uuids := make([]string, 0, len(displays))
	for i := range displays {
		index[displays[i].UUID] = i
		uuids = append(uuids, displays[i].UUID)
		displays[i].Columns = []model.DisplayColumn{}
	}

	rows, err := q.Query(ctx, `SELECT display_uuid, field, title, type, "default", number_display
                               FROM dird_display_column WHERE display_uuid = ANY($1)
                               ORDER BY display_uuid, position`, uuids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			displayUUID string
			c           model.DisplayColumn
		)
		if err := rows.Scan(&displayUUID, &c.Field, &c.Title, &c.Type, &c.Default, &c.NumberDisplay); err != nil {
			return err
		}
		i := index[displayUUID]
		displays[i].Columns = append(displays[i].Columns, c)
	}
	return rows.Err()
}

func (r *DisplayRepository) query(ctx context.Context, q querier, where string, args queryArgs) ([]model.Display, error) {
	rows, err := q.Query(ctx, `SELECT d.uuid, d.tenant_uuid, d.name FROM dird_display d WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	displays, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Display, error) {
		var d model.Display
		err := row.Scan(&d.UUID, &d.TenantUUID, &d.Name)
		return d, err
	})
	if err != nil {
		return nil, err
	}
	if err := loadColumns(ctx, q, displays); err != nil {
		return nil, err
	}
	return displays, nil
}

func getDisplay(ctx context.Context, q querier, scope model.TenantScope, displayUUID string) (*model.Display, error) {
	var args queryArgs
	tenant, ok := tenantFilter("d.tenant_uuid", scope, &args)
	if !ok {
		return nil, noSuchDisplay(displayUUID)
	}
	query := `SELECT d.uuid, d.tenant_uuid, d.name FROM dird_display d WHERE ` + tenant + ` AND d.uuid = ` + args.add(displayUUID)
	var d model.Display
	err := q.QueryRow(ctx, query, args...).Scan(&d.UUID, &d.TenantUUID, &d.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noSuchDisplay(displayUUID)
	}
	if err != nil {
		return nil, err
	}
	displays := []model.Display{d}
	if err := loadColumns(ctx, q, displays); err != nil {
		return nil, err
	}
	return &displays[0], nil
}

func (r *DisplayRepository) Create(ctx context.Context, tenantUUID string, body model.DisplayBody) (*model.Display, error) {
	if err := validation.Struct(body); err != nil {
		return nil, err
	}
	d := &model.Display{
		UUID:       uuid.NewString(),
		TenantUUID: tenantUUID,
		Name:       body.Name,
		Columns:    body.Columns,
	}
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureTenant(ctx, tx, tenantUUID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO dird_display (uuid, tenant_uuid, name) VALUES ($1, $2, $3)`,
			d.UUID, d.TenantUUID, d.Name); err != nil {
			return err
		}
		return insertColumns(ctx, tx, d.UUID, d.Columns)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DisplayRepository) Get(ctx context.Context, scope model.TenantScope, displayUUID string) (*model.Display, error) {
	d, err := getDisplay(ctx, r.db.pool, scope, displayUUID)
	if err != nil {
		return nil, classify(err)
	}
	return d, nil
}

func (r *DisplayRepository) listFilter(scope model.TenantScope, search string, args *queryArgs) (string, error) {
	tenant, ok := tenantFilter("d.tenant_uuid", scope, args)
	if !ok {
		return "", apperrors.ErrNoSuchTenant.Msg("no visible tenant")
	}
	if search != "" {
		tenant += ` AND d.name ILIKE ` + args.add(containsPattern(search))
	}
	return tenant, nil
}

func (r *DisplayRepository) List(ctx context.Context, scope model.TenantScope, params model.ListParams) ([]model.Display, error) {
	var args queryArgs
	where, err := r.listFilter(scope, params.Search, &args)
	if err != nil {
		return nil, err
	}
	order, err := orderBy("d", params, displayOrderColumns, "name")
	if err != nil {
		return nil, err
	}
	clause := where + " " + order + paginate(params, &args)
	displays, err := r.query(ctx, r.db.pool, clause, args)
	if err != nil {
		return nil, classify(err)
	}
	return displays, nil
}

func (r *DisplayRepository) Count(ctx context.Context, scope model.TenantScope, params model.ListParams) (int, error) {
	var args queryArgs
	where, err := r.listFilter(scope, params.Search, &args)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dird_display d WHERE `+where, args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

// Edit replaces the name and every column of a display.
func (r *DisplayRepository) Edit(ctx context.Context, scope model.TenantScope, displayUUID string, body model.DisplayBody) (*model.Display, error) {
	if err := validation.Struct(body); err != nil {
		return nil, err
	}
	var d *model.Display
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		if d, err = getDisplay(ctx, tx, scope, displayUUID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE dird_display SET name = $1 WHERE uuid = $2`, body.Name, d.UUID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dird_display_column WHERE display_uuid = $1`, d.UUID); err != nil {
			return err
		}
		d.Name = body.Name
		d.Columns = body.Columns
		return insertColumns(ctx, tx, d.UUID, d.Columns)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DisplayRepository) Delete(ctx context.Context, scope model.TenantScope, displayUUID string) error {
	var args queryArgs
	tenant, ok := tenantFilter("d.tenant_uuid", scope, &args)
	if !ok {
		return noSuchDisplay(displayUUID)
	}
	query := `DELETE FROM dird_display d WHERE ` + tenant + ` AND d.uuid = ` + args.add(displayUUID)
	tag, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return noSuchDisplay(displayUUID)
	}
	return nil
}
