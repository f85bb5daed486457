package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/crypto"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/textfold"
)

// contactOwner selects the contacts of one phonebook or of one user.
type contactOwner struct {
	column string
	uuid   string
}

func phonebookOwner(phonebookUUID string) contactOwner {
	return contactOwner{column: "phonebook_uuid", uuid: phonebookUUID}
}

func userOwner(userUUID string) contactOwner {
	return contactOwner{column: "user_uuid", uuid: userUUID}
}

func (o contactOwner) filter(alias string, args *queryArgs) string {
	return alias + "." + o.column + " = " + args.add(o.uuid)
}

func noSuchContact(contactUUID string) error {
	return apperrors.ErrNoSuchContact.Msg(fmt.Sprintf("contact %s not found", contactUUID))
}

func duplicatedContact() error {
	return apperrors.ErrDuplicatedContact.Msg("a contact with the same fields already exists")
}

// checkFields rejects names and values postgres cannot store as text.
func checkFields(body model.Contact) error {
	if len(body.WithoutID()) == 0 {
		return apperrors.ErrInvalidContact.Msg("contact has no field")
	}
	for name, value := range body {
		for _, s := range []string{name, value} {
			if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
				return apperrors.ErrInvalidContact.Msg(fmt.Sprintf("field %q is not valid text", name))
			}
		}
	}
	return nil
}

// insertContact stores body as a new contact of owner and returns the
// stored fields, including the id.
func insertContact(ctx context.Context, tx pgx.Tx, owner contactOwner, contactUUID string, body model.Contact) (model.Contact, error) {
	if err := checkFields(body); err != nil {
		return nil, err
	}
	hash := crypto.ContactHash(body)
	query := `INSERT INTO dird_contact (uuid, hash, ` + owner.column + `) VALUES ($1, $2, $3)`
	_, err := tx.Exec(ctx, query, contactUUID, hash, owner.uuid)
	if isUniqueViolation(err, "") {
		return nil, duplicatedContact()
	}
	if err != nil {
		return nil, err
	}

	contact := body.WithoutID()
	contact[model.ContactIDField] = contactUUID
	if err := insertFields(ctx, tx, contactUUID, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func insertFields(ctx context.Context, tx pgx.Tx, contactUUID string, contact model.Contact) error {
	names := make([]string, 0, len(contact))
	for name := range contact {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, []any{name, contact[name], contactUUID})
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"dird_contact_fields"}, []string{"name", "value", "contact_uuid"}, pgx.CopyFromRows(rows))
	return err
}

// replaceContact overwrites the fields of an existing contact of owner. The
// stored id is kept whatever body says.
func replaceContact(ctx context.Context, tx pgx.Tx, owner contactOwner, contactUUID string, body model.Contact) (model.Contact, error) {
	if err := checkFields(body); err != nil {
		return nil, err
	}
	var args queryArgs
	query := `SELECT c.uuid FROM dird_contact c WHERE c.uuid = ` + args.add(contactUUID) + ` AND ` + owner.filter("c", &args) + ` FOR UPDATE`
	var found string
	err := tx.QueryRow(ctx, query, args...).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noSuchContact(contactUUID)
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE dird_contact SET hash = $1 WHERE uuid = $2`, crypto.ContactHash(body), contactUUID)
	if isUniqueViolation(err, "") {
		return nil, duplicatedContact()
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM dird_contact_fields WHERE contact_uuid = $1`, contactUUID); err != nil {
		return nil, err
	}

	contact := body.WithoutID()
	contact[model.ContactIDField] = contactUUID
	if err := insertFields(ctx, tx, contactUUID, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// createContacts inserts every body, each one behind a savepoint so that a
// failing body does not abort the others.
func createContacts(ctx context.Context, tx pgx.Tx, owner contactOwner, bodies []model.Contact, newUUID func(model.Contact) string) ([]model.Contact, []model.FailedContact, error) {
	created := []model.Contact{}
	failed := []model.FailedContact{}
	for _, body := range bodies {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, nil, err
		}
		contact, err := insertContact(ctx, sp, owner, newUUID(body), body)
		if err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return nil, nil, rbErr
			}
			if isDataException(err) {
				err = apperrors.ErrInvalidContact.MsgErr("contact data rejected by the database", err)
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				return nil, nil, err
			}
			failed = append(failed, model.FailedContact{Contact: body, Reason: err.Error()})
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, nil, err
		}
		created = append(created, contact)
	}
	return created, failed, nil
}

// loadContacts returns the fields of the given contacts, in the order of
// uuids. Unknown uuids are skipped.
func loadContacts(ctx context.Context, q querier, uuids []string) ([]model.Contact, error) {
	if len(uuids) == 0 {
		return []model.Contact{}, nil
	}
	rows, err := q.Query(ctx, `SELECT contact_uuid, name, value FROM dird_contact_fields WHERE contact_uuid = ANY($1) ORDER BY id`, uuids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUUID := make(map[string]model.Contact, len(uuids))
	for rows.Next() {
		var (
			contactUUID, name string
			value             *string
		)
		if err := rows.Scan(&contactUUID, &name, &value); err != nil {
			return nil, err
		}
		contact, ok := byUUID[contactUUID]
		if !ok {
			contact = model.Contact{}
			byUUID[contactUUID] = contact
		}
		if value != nil {
			contact[name] = *value
		} else {
			contact[name] = ""
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	contacts := make([]model.Contact, 0, len(uuids))
	for _, u := range uuids {
		if contact, ok := byUUID[u]; ok {
			contacts = append(contacts, contact)
		}
	}
	return contacts, nil
}

func getContact(ctx context.Context, q querier, owner contactOwner, contactUUID string) (model.Contact, error) {
	var args queryArgs
	query := `SELECT c.uuid FROM dird_contact c WHERE c.uuid = ` + args.add(contactUUID) + ` AND ` + owner.filter("c", &args)
	var found string
	err := q.QueryRow(ctx, query, args...).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noSuchContact(contactUUID)
	}
	if err != nil {
		return nil, err
	}
	contacts, err := loadContacts(ctx, q, []string{found})
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, apperrors.ErrIntegrity.Msg(fmt.Sprintf("contact %s has no field", contactUUID))
	}
	return contacts[0], nil
}

func deleteContact(ctx context.Context, q querier, owner contactOwner, contactUUID string) error {
	var args queryArgs
	query := `DELETE FROM dird_contact c WHERE c.uuid = ` + args.add(contactUUID) + ` AND ` + owner.filter("c", &args)
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return noSuchContact(contactUUID)
	}
	return nil
}

// matchingContacts returns the uuids of the contacts of owner whose values,
// concatenated, contain the search term. Contacts are sorted on the folded
// value of the params.Order field when given, in insertion order otherwise.
func matchingContacts(ctx context.Context, q querier, owner contactOwner, params model.ListParams) ([]string, error) {
	var args queryArgs
	query := `SELECT c.uuid FROM dird_contact c
              JOIN dird_contact_fields f ON f.contact_uuid = c.uuid
              WHERE ` + owner.filter("c", &args) + `
              GROUP BY c.uuid`
	if params.Search != "" {
		query += ` HAVING unaccent(string_agg(f.value, ' ' ORDER BY f.id) FILTER (WHERE f.name <> 'id')) ILIKE ` +
			args.add(containsPattern(textfold.Fold(params.Search)))
	}
	direction, err := sqlDirection(params.Direction)
	if err != nil {
		return nil, err
	}
	if params.Order != "" {
		query += ` ORDER BY lower(unaccent(max(f.value) FILTER (WHERE f.name = ` + args.add(params.Order) + `))) ` + direction + `, min(f.id)`
	} else {
		query += ` ORDER BY min(f.id) ` + direction
	}
	query += paginate(params, &args)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func countContacts(ctx context.Context, q querier, owner contactOwner, search string) (int, error) {
	var args queryArgs
	query := `SELECT COUNT(*) FROM dird_contact c WHERE ` + owner.filter("c", &args)
	if search != "" {
		query += ` AND (SELECT unaccent(string_agg(f.value, ' ' ORDER BY f.id)) FROM dird_contact_fields f
                        WHERE f.contact_uuid = c.uuid AND f.name <> 'id') ILIKE ` + args.add(containsPattern(textfold.Fold(search)))
	}
	var count int
	err := q.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func listContacts(ctx context.Context, q querier, owner contactOwner, params model.ListParams) ([]model.Contact, error) {
	uuids, err := matchingContacts(ctx, q, owner, params)
	if err != nil {
		return nil, err
	}
	return loadContacts(ctx, q, uuids)
}

// ContactRepository handles the contacts of phonebooks
type ContactRepository struct {
	db *DB
}

func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) owner(ctx context.Context, q querier, scope model.TenantScope, key model.PhonebookKey, lock bool) (contactOwner, error) {
	p, err := resolvePhonebook(ctx, q, scope, key, lock)
	if err != nil {
		return contactOwner{}, err
	}
	return phonebookOwner(p.UUID), nil
}

func (r *ContactRepository) Count(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, search string) (int, error) {
	owner, err := r.owner(ctx, r.db.pool, scope, key, false)
	if err != nil {
		return 0, classify(err)
	}
	count, err := countContacts(ctx, r.db.pool, owner, search)
	return count, classify(err)
}

func (r *ContactRepository) List(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, params model.ListParams) ([]model.Contact, error) {
	owner, err := r.owner(ctx, r.db.pool, scope, key, false)
	if err != nil {
		return nil, classify(err)
	}
	contacts, err := listContacts(ctx, r.db.pool, owner, params)
	if err != nil {
		return nil, classify(err)
	}
	return contacts, nil
}

func (r *ContactRepository) Get(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, contactUUID string) (model.Contact, error) {
	owner, err := r.owner(ctx, r.db.pool, scope, key, false)
	if err != nil {
		return nil, classify(err)
	}
	contact, err := getContact(ctx, r.db.pool, owner, contactUUID)
	if err != nil {
		return nil, classify(err)
	}
	return contact, nil
}

// Create adds a contact to a phonebook. The returned contact carries its
// new uuid under the id field.
func (r *ContactRepository) Create(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, body model.Contact) (model.Contact, error) {
	var contact model.Contact
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		owner, err := r.owner(ctx, tx, scope, key, false)
		if err != nil {
			return err
		}
		contact, err = insertContact(ctx, tx, owner, uuid.NewString(), body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// CreateMany adds every body to a phonebook. Bodies that cannot be created,
// duplicates included, are returned as failures along with the reason.
func (r *ContactRepository) CreateMany(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, bodies []model.Contact) ([]model.Contact, []model.FailedContact, error) {
	var (
		created []model.Contact
		failed  []model.FailedContact
	)
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		owner, err := r.owner(ctx, tx, scope, key, false)
		if err != nil {
			return err
		}
		created, failed, err = createContacts(ctx, tx, owner, bodies, func(model.Contact) string {
			return uuid.NewString()
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	log.Ctx(ctx).Info().Str("phonebook", key.String()).Int("created", len(created)).Int("failed", len(failed)).Msg("Contacts imported")
	return created, failed, nil
}

func (r *ContactRepository) Edit(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, contactUUID string, body model.Contact) (model.Contact, error) {
	var contact model.Contact
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		owner, err := r.owner(ctx, tx, scope, key, false)
		if err != nil {
			return err
		}
		contact, err = replaceContact(ctx, tx, owner, contactUUID, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (r *ContactRepository) Delete(ctx context.Context, scope model.TenantScope, key model.PhonebookKey, contactUUID string) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		owner, err := r.owner(ctx, tx, scope, key, false)
		if err != nil {
			return err
		}
		return deleteContact(ctx, tx, owner, contactUUID)
	})
}
