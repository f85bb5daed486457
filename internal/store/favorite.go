package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

const favoritePrimaryKey = "dird_favorite_pkey"

// FavoriteRepository handles the favorites of users
type FavoriteRepository struct {
	db *DB
}

func NewFavoriteRepository(db *DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Create marks a contact of the source named sourceName as a favorite of
// user. The source is looked up in the tenant of the user, restricted to
// backend unless it is empty.
func (r *FavoriteRepository) Create(ctx context.Context, user model.User, backend, sourceName, contactID string) (*model.Favorite, error) {
	if contactID == "" {
		return nil, apperrors.ErrInvalidArgument.Msg("contact_id: required")
	}
	var favorite *model.Favorite
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, user); err != nil {
			return err
		}
		var args queryArgs
		query := `SELECT s.uuid, s.backend, COALESCE(p.name, s.name)
                  FROM dird_source s LEFT JOIN dird_phonebook p ON p.uuid = s.phonebook_uuid
                  WHERE s.tenant_uuid = ` + args.add(user.TenantUUID) + ` AND COALESCE(p.name, s.name) = ` + args.add(sourceName)
		if backend != "" {
			query += ` AND s.backend = ` + args.add(backend)
		}
		query += ` LIMIT 1`

		f := model.Favorite{UserUUID: user.UUID, ContactID: contactID}
		err := tx.QueryRow(ctx, query, args...).Scan(&f.SourceUUID, &f.Backend, &f.SourceName)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNoSuchSource.Msg(fmt.Sprintf("source %q not found", sourceName))
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO dird_favorite (user_uuid, source_uuid, contact_id) VALUES ($1, $2, $3)`,
			f.UserUUID, f.SourceUUID, f.ContactID)
		if isUniqueViolation(err, favoritePrimaryKey) {
			return apperrors.ErrDuplicatedFavorite.Msg(fmt.Sprintf("contact %s of %q is already a favorite", contactID, sourceName))
		}
		if err != nil {
			return err
		}
		favorite = &f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return favorite, nil
}

// Delete removes a favorite of userUUID. Any source named sourceName
// matches, whatever its tenant.
func (r *FavoriteRepository) Delete(ctx context.Context, userUUID, sourceName, contactID string) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dird_source s LEFT JOIN dird_phonebook p ON p.uuid = s.phonebook_uuid
                                                WHERE COALESCE(p.name, s.name) = $1)`, sourceName).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.ErrNoSuchSource.Msg(fmt.Sprintf("source %q not found", sourceName))
		}

		query := `DELETE FROM dird_favorite f
                  USING dird_source s LEFT JOIN dird_phonebook p ON p.uuid = s.phonebook_uuid
                  WHERE f.source_uuid = s.uuid AND f.user_uuid = $1 AND COALESCE(p.name, s.name) = $2 AND f.contact_id = $3`
		tag, err := tx.Exec(ctx, query, userUUID, sourceName, contactID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrNoSuchFavorite.Msg(fmt.Sprintf("contact %s of %q is not a favorite", contactID, sourceName))
		}
		return nil
	})
}

// List returns the favorites of userUUID with the name of their source.
func (r *FavoriteRepository) List(ctx context.Context, userUUID string) ([]model.Favorite, error) {
	query := `SELECT f.user_uuid, f.source_uuid, COALESCE(p.name, s.name), s.backend, f.contact_id
              FROM dird_favorite f
              JOIN dird_source s ON s.uuid = f.source_uuid
              LEFT JOIN dird_phonebook p ON p.uuid = s.phonebook_uuid
              WHERE f.user_uuid = $1
              ORDER BY s.name, f.contact_id`
	rows, err := r.db.pool.Query(ctx, query, userUUID)
	if err != nil {
		return nil, classify(err)
	}
	favorites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Favorite, error) {
		var f model.Favorite
		err := row.Scan(&f.UserUUID, &f.SourceUUID, &f.SourceName, &f.Backend, &f.ContactID)
		return f, err
	})
	if err != nil {
		return nil, classify(err)
	}
	return favorites, nil
}
