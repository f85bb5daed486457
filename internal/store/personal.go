package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/model"
)

// PersonalRepository handles the personal contacts of users
type PersonalRepository struct {
	db *DB
}

func NewPersonalRepository(db *DB) *PersonalRepository {
	return &PersonalRepository{db: db}
}

// personalUUID keeps the id supplied in body when it is a valid uuid, so
// that exported contacts keep their identity when imported back.
func personalUUID(body model.Contact) string {
	if id, err := uuid.Parse(body.ID()); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Create adds a personal contact to user, creating the user if needed.
func (r *PersonalRepository) Create(ctx context.Context, user model.User, body model.Contact) (model.Contact, error) {
	var contact model.Contact
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, user); err != nil {
			return err
		}
		var err error
		contact, err = insertContact(ctx, tx, userOwner(user.UUID), personalUUID(body), body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// CreateMany adds every body to the personal contacts of user. Bodies that
// cannot be created are returned as failures along with the reason.
func (r *PersonalRepository) CreateMany(ctx context.Context, user model.User, bodies []model.Contact) ([]model.Contact, []model.FailedContact, error) {
	var (
		created []model.Contact
		failed  []model.FailedContact
	)
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, user); err != nil {
			return err
		}
		var err error
		created, failed, err = createContacts(ctx, tx, userOwner(user.UUID), bodies, personalUUID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	log.Ctx(ctx).Info().Str("user_uuid", user.UUID).Int("created", len(created)).Int("failed", len(failed)).Msg("Personal contacts imported")
	return created, failed, nil
}

func (r *PersonalRepository) Count(ctx context.Context, userUUID, search string) (int, error) {
	count, err := countContacts(ctx, r.db.pool, userOwner(userUUID), search)
	return count, classify(err)
}

func (r *PersonalRepository) List(ctx context.Context, userUUID string, params model.ListParams) ([]model.Contact, error) {
	contacts, err := listContacts(ctx, r.db.pool, userOwner(userUUID), params)
	if err != nil {
		return nil, classify(err)
	}
	return contacts, nil
}

func (r *PersonalRepository) Get(ctx context.Context, userUUID, contactUUID string) (model.Contact, error) {
	contact, err := getContact(ctx, r.db.pool, userOwner(userUUID), contactUUID)
	if err != nil {
		return nil, classify(err)
	}
	return contact, nil
}

func (r *PersonalRepository) Edit(ctx context.Context, userUUID, contactUUID string, body model.Contact) (model.Contact, error) {
	var contact model.Contact
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		contact, err = replaceContact(ctx, tx, userOwner(userUUID), contactUUID, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (r *PersonalRepository) Delete(ctx context.Context, userUUID, contactUUID string) error {
	return classify(deleteContact(ctx, r.db.pool, userOwner(userUUID), contactUUID))
}

// DeleteAll removes every personal contact of userUUID.
func (r *PersonalRepository) DeleteAll(ctx context.Context, userUUID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM dird_contact WHERE user_uuid = $1`, userUUID)
	return classify(err)
}
