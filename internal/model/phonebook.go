package model

import (
	"fmt"
	"strings"

	"github.com/teresa-solution/directory-service/internal/apperrors"
)

// Phonebook represents the dird_phonebook table
type Phonebook struct {
	ID          int     `json:"id"`
	UUID        string  `json:"uuid"`
	TenantUUID  string  `json:"tenant_uuid"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// PhonebookBody holds the writable fields of a phonebook.
type PhonebookBody struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
}

// ParsePhonebookBody converts a decoded request body, rejecting any field
// other than name and description.
func ParsePhonebookBody(raw map[string]any) (PhonebookBody, error) {
	var body PhonebookBody
	for k, v := range raw {
		switch k {
		case "name":
			s, ok := v.(string)
			if !ok {
				return body, apperrors.ErrInvalidArgument.Msg("name: expected a string")
			}
			body.Name = s
		case "description":
			if v == nil {
				body.Description = nil
				continue
			}
			s, ok := v.(string)
			if !ok {
				return body, apperrors.ErrInvalidArgument.Msg("description: expected a string")
			}
			body.Description = &s
		default:
			return body, apperrors.ErrInvalidArgument.Msg(k + ": unknown field")
		}
	}
	body.Name = strings.TrimSpace(body.Name)
	return body, nil
}

// PhonebookKey selects a phonebook either by its legacy integer id or by its
// uuid. The zero value selects nothing.
type PhonebookKey struct {
	id   int
	uuid string
	set  bool
	byID bool
}

func PhonebookByID(id int) PhonebookKey {
	return PhonebookKey{id: id, set: true, byID: true}
}

func PhonebookByUUID(uuid string) PhonebookKey {
	return PhonebookKey{uuid: uuid, set: true}
}

// Valid reports whether the key selects something.
func (k PhonebookKey) Valid() bool {
	return k.set && (k.byID || k.uuid != "")
}

// ID returns the integer id and whether the key is an id key.
func (k PhonebookKey) ID() (int, bool) {
	return k.id, k.set && k.byID
}

// UUID returns the uuid and whether the key is a uuid key.
func (k PhonebookKey) UUID() (string, bool) {
	return k.uuid, k.set && !k.byID
}

func (k PhonebookKey) String() string {
	switch {
	case !k.set:
		return "<none>"
	case k.byID:
		return fmt.Sprintf("id=%d", k.id)
	default:
		return "uuid=" + k.uuid
	}
}

// Sort directions.
const (
	Ascending  = "asc"
	Descending = "desc"
)

// ListParams holds the filtering and pagination options of list operations.
// A zero Limit means no limit.
type ListParams struct {
	Search    string
	Order     string
	Direction string
	Limit     int
	Offset    int
}
