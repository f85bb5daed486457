package model

// Backend kinds known to the directory. The set is open: any other kind can
// be stored, only BackendPhonebook gets special treatment.
const (
	BackendPhonebook  = "phonebook"
	BackendPersonal   = "personal"
	BackendCSV        = "csv"
	BackendCSVWS      = "csv-ws"
	BackendLDAP       = "ldap"
	BackendHTTP       = "http"
	BackendWazoUser   = "wazo-user"
	BackendConference = "conference"
	BackendOffice365  = "office365"
	BackendGoogle     = "google"
	BackendSample     = "sample"
)

// Source represents the dird_source table
type Source struct {
	UUID                string            `json:"uuid"`
	TenantUUID          string            `json:"tenant_uuid"`
	Backend             string            `json:"backend"`
	Name                string            `json:"name"`
	SearchedColumns     []string          `json:"searched_columns"`
	FirstMatchedColumns []string          `json:"first_matched_columns"`
	FormatColumns       map[string]string `json:"format_columns"`
	PhonebookUUID       *string           `json:"phonebook_uuid,omitempty"`
	ExtraFields         map[string]any    `json:"extra_fields,omitempty"`
	Phonebook           *PhonebookRef     `json:"phonebook,omitempty"`
}

// PhonebookRef describes the phonebook behind a phonebook-backed source.
type PhonebookRef struct {
	ID          int     `json:"id"`
	UUID        string  `json:"uuid"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Record returns the source as a flat record: the backend-specific extra
// fields merged with the common columns, the common columns winning.
func (s Source) Record() map[string]any {
	rec := make(map[string]any, len(s.ExtraFields)+10)
	for k, v := range s.ExtraFields {
		rec[k] = v
	}
	rec["uuid"] = s.UUID
	rec["tenant_uuid"] = s.TenantUUID
	rec["backend"] = s.Backend
	rec["name"] = s.Name
	rec["searched_columns"] = nonNil(s.SearchedColumns)
	rec["first_matched_columns"] = nonNil(s.FirstMatchedColumns)
	format := s.FormatColumns
	if format == nil {
		format = map[string]string{}
	}
	rec["format_columns"] = format
	if s.Phonebook != nil {
		rec["phonebook_uuid"] = s.Phonebook.UUID
		rec["phonebook_name"] = s.Phonebook.Name
		rec["phonebook_description"] = s.Phonebook.Description
		rec["phonebook_id"] = s.Phonebook.ID
	} else if s.PhonebookUUID != nil {
		rec["phonebook_uuid"] = *s.PhonebookUUID
	}
	return rec
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SourceBody holds the writable fields of a source.
type SourceBody struct {
	Name                string            `json:"name" validate:"required_unless=Backend phonebook,max=512"`
	Backend             string            `json:"-" validate:"required,backend"`
	SearchedColumns     []string          `json:"searched_columns" validate:"dive,required"`
	FirstMatchedColumns []string          `json:"first_matched_columns" validate:"dive,required"`
	FormatColumns       map[string]string `json:"format_columns" validate:"dive,keys,required,endkeys"`
	PhonebookUUID       *string           `json:"phonebook_uuid" validate:"omitempty,uuid"`
	ExtraFields         map[string]any    `json:"-"`
}
