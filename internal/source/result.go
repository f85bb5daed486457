package source

import (
	"strings"

	"github.com/teresa-solution/directory-service/internal/model"
)

// Relations carries the identifiers linking a result to platform objects.
type Relations struct {
	PlatformUUID  *string `json:"xivo_id"`
	AgentID       *string `json:"agent_id"`
	UserID        *string `json:"user_id"`
	UserUUID      *string `json:"user_uuid"`
	EndpointID    *string `json:"endpoint_id"`
	SourceEntryID *string `json:"source_entry_id"`
}

// Result is one contact returned by a source.
type Result struct {
	Fields      map[string]string
	Relations   Relations
	SourceName  string
	IsPersonal  bool
	IsDeletable bool
}

// Caller identifies who runs a query.
type Caller struct {
	TenantUUID string
	UserUUID   string
}

// DefaultUniqueColumn is the field identifying a contact within its source.
const DefaultUniqueColumn = "id"

// ResultFactory builds the results of one source, applying its format
// columns.
type ResultFactory struct {
	SourceName    string
	UniqueColumn  string
	FormatColumns map[string]string
	IsPersonal    bool
	IsDeletable   bool
}

// NewResultFactory returns the factory for src. The unique column can be
// overridden through the unique_column extra field.
func NewResultFactory(src model.Source) ResultFactory {
	unique := DefaultUniqueColumn
	if v, ok := src.ExtraFields["unique_column"].(string); ok && v != "" {
		unique = v
	}
	return ResultFactory{
		SourceName:    src.Name,
		UniqueColumn:  unique,
		FormatColumns: src.FormatColumns,
	}
}

// New builds a result from the raw fields of a contact.
func (f ResultFactory) New(fields map[string]string) Result {
	out := make(map[string]string, len(fields)+len(f.FormatColumns))
	for k, v := range fields {
		out[k] = v
	}
	for k, tmpl := range f.FormatColumns {
		out[k] = Format(tmpl, fields)
	}

	r := Result{
		Fields:      out,
		SourceName:  f.SourceName,
		IsPersonal:  f.IsPersonal,
		IsDeletable: f.IsDeletable,
	}
	if id, ok := fields[f.UniqueColumn]; ok {
		r.Relations.SourceEntryID = &id
	}
	return r
}

// Format substitutes every {key} of tmpl with the value of key in fields.
// Missing keys are replaced with the empty string, {{ and }} stand for
// literal braces.
func Format(tmpl string, fields map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				return b.String()
			}
			b.WriteString(fields[tmpl[i+1:i+1+end]])
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
