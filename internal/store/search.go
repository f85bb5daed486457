package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/textfold"
)

// searchEngine matches contacts on their field values. searched limits
// substring searches and firstMatched limits exact matches to some fields.
type searchEngine struct {
	db           *DB
	searched     []string
	firstMatched []string
}

func (e searchEngine) find(ctx context.Context, owner contactOwner, term string) ([]model.Contact, error) {
	if len(e.searched) == 0 {
		return []model.Contact{}, nil
	}
	var args queryArgs
	query := `SELECT c.uuid FROM dird_contact c
              JOIN dird_contact_fields f ON f.contact_uuid = c.uuid
              WHERE ` + owner.filter("c", &args) + `
                AND f.name = ANY(` + args.add(e.searched) + `)
                AND unaccent(f.value) ILIKE ` + args.add(containsPattern(textfold.Fold(term))) + `
              GROUP BY c.uuid
              ORDER BY min(f.id)`
	rows, err := e.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	uuids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	contacts, err := loadContacts(ctx, e.db.pool, uuids)
	return contacts, classify(err)
}

func (e searchEngine) findFirst(ctx context.Context, owner contactOwner, term string) (model.Contact, error) {
	if len(e.firstMatched) == 0 {
		return nil, nil
	}
	var args queryArgs
	query := `SELECT c.uuid FROM dird_contact c
              JOIN dird_contact_fields f ON f.contact_uuid = c.uuid
              WHERE ` + owner.filter("c", &args) + `
                AND f.name = ANY(` + args.add(e.firstMatched) + `)
                AND unaccent(f.value) = ` + args.add(textfold.Fold(term)) + `
              ORDER BY f.id
              LIMIT 1`
	rows, err := e.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	uuids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	contacts, err := loadContacts(ctx, e.db.pool, uuids)
	if err != nil {
		return nil, classify(err)
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return contacts[0], nil
}

// list returns the contacts of owner among ids. Ids of contacts owned by
// someone else are ignored.
func (e searchEngine) list(ctx context.Context, owner contactOwner, ids []string) ([]model.Contact, error) {
	if len(ids) == 0 {
		return []model.Contact{}, nil
	}
	var args queryArgs
	query := `SELECT c.uuid FROM dird_contact c
              WHERE ` + owner.filter("c", &args) + ` AND c.uuid = ANY(` + args.add(ids) + `)`
	rows, err := e.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	uuids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	contacts, err := loadContacts(ctx, e.db.pool, uuids)
	return contacts, classify(err)
}

// PhonebookSearchEngine searches the contacts of one phonebook.
type PhonebookSearchEngine struct {
	engine searchEngine
	scope  model.TenantScope
	key    model.PhonebookKey
}

func NewPhonebookSearchEngine(db *DB, scope model.TenantScope, key model.PhonebookKey, searched, firstMatched []string) *PhonebookSearchEngine {
	return &PhonebookSearchEngine{
		engine: searchEngine{db: db, searched: searched, firstMatched: firstMatched},
		scope:  scope,
		key:    key,
	}
}

func (e *PhonebookSearchEngine) owner(ctx context.Context) (contactOwner, error) {
	p, err := resolvePhonebook(ctx, e.engine.db.pool, e.scope, e.key, false)
	if err != nil {
		return contactOwner{}, classify(err)
	}
	return phonebookOwner(p.UUID), nil
}

// Find returns the contacts with a searched field containing term.
func (e *PhonebookSearchEngine) Find(ctx context.Context, term string) ([]model.Contact, error) {
	owner, err := e.owner(ctx)
	if err != nil {
		return nil, err
	}
	return e.engine.find(ctx, owner, term)
}

// FindFirst returns the first contact with a first matched field equal to
// term, or nil.
func (e *PhonebookSearchEngine) FindFirst(ctx context.Context, term string) (model.Contact, error) {
	owner, err := e.owner(ctx)
	if err != nil {
		return nil, err
	}
	return e.engine.findFirst(ctx, owner, term)
}

func (e *PhonebookSearchEngine) List(ctx context.Context, ids []string) ([]model.Contact, error) {
	owner, err := e.owner(ctx)
	if err != nil {
		return nil, err
	}
	return e.engine.list(ctx, owner, ids)
}

// PersonalSearchEngine searches the personal contacts of a user.
type PersonalSearchEngine struct {
	engine searchEngine
}

func NewPersonalSearchEngine(db *DB, searched, firstMatched []string) *PersonalSearchEngine {
	return &PersonalSearchEngine{
		engine: searchEngine{db: db, searched: searched, firstMatched: firstMatched},
	}
}

func (e *PersonalSearchEngine) Find(ctx context.Context, userUUID, term string) ([]model.Contact, error) {
	return e.engine.find(ctx, userOwner(userUUID), term)
}

func (e *PersonalSearchEngine) FindFirst(ctx context.Context, userUUID, term string) (model.Contact, error) {
	return e.engine.findFirst(ctx, userOwner(userUUID), term)
}

func (e *PersonalSearchEngine) List(ctx context.Context, userUUID string, ids []string) ([]model.Contact, error) {
	return e.engine.list(ctx, userOwner(userUUID), ids)
}
