package source

import (
	"context"
	"slices"

	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/store"
)

// RegisterBuiltins registers the drivers backed by the directory database
// and the sample driver.
func RegisterBuiltins(m *Manager, db *store.DB) {
	m.Register(model.BackendPhonebook, NewPhonebookFactory(db))
	m.Register(model.BackendPersonal, NewPersonalFactory(db))
	m.Register(model.BackendSample, NewSampleDriver)
}

func toResults(factory ResultFactory, contacts []model.Contact) []Result {
	results := make([]Result, 0, len(contacts))
	for _, c := range contacts {
		results = append(results, factory.New(c))
	}
	return results
}

type phonebookDriver struct {
	engine  *store.PhonebookSearchEngine
	results ResultFactory
}

// NewPhonebookFactory returns the factory of phonebook-backed sources.
func NewPhonebookFactory(db *store.DB) Factory {
	return func(_ context.Context, src model.Source) (Driver, error) {
		if src.PhonebookUUID == nil {
			return nil, apperrors.ErrInvalidSourceConfig.Msg("phonebook source " + src.UUID + " has no phonebook")
		}
		engine := store.NewPhonebookSearchEngine(db,
			model.Tenants(src.TenantUUID),
			model.PhonebookByUUID(*src.PhonebookUUID),
			src.SearchedColumns, src.FirstMatchedColumns)
		return &phonebookDriver{engine: engine, results: NewResultFactory(src)}, nil
	}
}

func (d *phonebookDriver) Search(ctx context.Context, term string, _ Caller) ([]Result, error) {
	contacts, err := d.engine.Find(ctx, term)
	if err != nil {
		return nil, err
	}
	return toResults(d.results, contacts), nil
}

func (d *phonebookDriver) FirstMatch(ctx context.Context, term string, _ Caller) (*Result, error) {
	contact, err := d.engine.FindFirst(ctx, term)
	if err != nil || contact == nil {
		return nil, err
	}
	r := d.results.New(contact)
	return &r, nil
}

func (d *phonebookDriver) List(ctx context.Context, ids []string, _ Caller) ([]Result, error) {
	contacts, err := d.engine.List(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toResults(d.results, contacts), nil
}

// personalDriver serves the personal contacts of the calling user.
type personalDriver struct {
	engine  *store.PersonalSearchEngine
	results ResultFactory
}

// NewPersonalFactory returns the factory of personal sources.
func NewPersonalFactory(db *store.DB) Factory {
	return func(_ context.Context, src model.Source) (Driver, error) {
		results := NewResultFactory(src)
		results.IsPersonal = true
		results.IsDeletable = true
		engine := store.NewPersonalSearchEngine(db, src.SearchedColumns, src.FirstMatchedColumns)
		return &personalDriver{engine: engine, results: results}, nil
	}
}

func (d *personalDriver) Search(ctx context.Context, term string, caller Caller) ([]Result, error) {
	if caller.UserUUID == "" {
		return []Result{}, nil
	}
	contacts, err := d.engine.Find(ctx, caller.UserUUID, term)
	if err != nil {
		return nil, err
	}
	return toResults(d.results, contacts), nil
}

func (d *personalDriver) FirstMatch(ctx context.Context, term string, caller Caller) (*Result, error) {
	if caller.UserUUID == "" {
		return nil, nil
	}
	contact, err := d.engine.FindFirst(ctx, caller.UserUUID, term)
	if err != nil || contact == nil {
		return nil, err
	}
	r := d.results.New(contact)
	return &r, nil
}

func (d *personalDriver) List(ctx context.Context, ids []string, caller Caller) ([]Result, error) {
	if caller.UserUUID == "" {
		return []Result{}, nil
	}
	contacts, err := d.engine.List(ctx, caller.UserUUID, ids)
	if err != nil {
		return nil, err
	}
	return toResults(d.results, contacts), nil
}

// sampleDriver answers every query with the same contact.
type sampleDriver struct {
	contact model.Contact
	results ResultFactory
}

const sampleNumber = "5555555555"

// NewSampleDriver builds the demo driver of sample sources.
func NewSampleDriver(_ context.Context, src model.Source) (Driver, error) {
	return &sampleDriver{
		contact: model.Contact{
			"id":          "1",
			"firstname":   "John",
			"lastname":    "Doe",
			"description": "It works but this is a sample source",
			"number":      sampleNumber,
		},
		results: NewResultFactory(src),
	}, nil
}

func (d *sampleDriver) Search(_ context.Context, _ string, _ Caller) ([]Result, error) {
	return []Result{d.results.New(d.contact)}, nil
}

func (d *sampleDriver) FirstMatch(_ context.Context, term string, _ Caller) (*Result, error) {
	if term != d.contact["number"] {
		return nil, nil
	}
	r := d.results.New(d.contact)
	return &r, nil
}

func (d *sampleDriver) List(_ context.Context, ids []string, _ Caller) ([]Result, error) {
	if !slices.Contains(ids, d.contact.ID()) {
		return []Result{}, nil
	}
	return []Result{d.results.New(d.contact)}, nil
}
