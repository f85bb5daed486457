package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

// PersonalImporter creates personal contacts in bulk.
type PersonalImporter interface {
	CreateMany(ctx context.Context, user model.User, bodies []model.Contact) ([]model.Contact, []model.FailedContact, error)
}

// PersonalService handles the personal contacts of users
type PersonalService struct {
	store PersonalImporter
}

func NewPersonalService(store PersonalImporter) *PersonalService {
	return &PersonalService{store: store}
}

// ImportResult reports the outcome of a personal import.
type ImportResult struct {
	Created []model.Contact       `json:"created"`
	Failed  []model.FailedContact `json:"failed"`
}

// Import creates a personal contact of user for every row of a CSV document
// whose header row names the fields. Rows that do not match the header or
// cannot be created are reported as failed.
func (s *PersonalService) Import(ctx context.Context, user model.User, document string) (*ImportResult, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(document, "\ufeff")))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.ErrInvalidArgument.Msg("csv: missing header row")
	}
	if err != nil {
		return nil, apperrors.ErrInvalidArgument.Err(err)
	}

	var (
		bodies []model.Contact
		failed []model.FailedContact
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.ErrInvalidArgument.Err(err)
		}

		contact := make(model.Contact, len(header))
		for i, field := range header {
			if field == "" || i >= len(record) {
				continue
			}
			contact[field] = record[i]
		}
		if len(record) != len(header) {
			failed = append(failed, model.FailedContact{Contact: contact, Reason: "wrong number of fields"})
			continue
		}
		bodies = append(bodies, contact)
	}

	created, rejected, err := s.store.CreateMany(ctx, user, bodies)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{Created: created, Failed: append(failed, rejected...)}
	if result.Created == nil {
		result.Created = []model.Contact{}
	}
	if result.Failed == nil {
		result.Failed = []model.FailedContact{}
	}
	log.Ctx(ctx).Info().Str("user_uuid", user.UUID).Int("created", len(result.Created)).
		Int("failed", len(result.Failed)).Msg("Personal import done")
	return result, nil
}
