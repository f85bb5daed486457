package model

// Display represents the dird_display table with its ordered columns
type Display struct {
	UUID       string          `json:"uuid"`
	TenantUUID string          `json:"tenant_uuid"`
	Name       string          `json:"name"`
	Columns    []DisplayColumn `json:"columns"`
}

// DisplayColumn represents the dird_display_column table
type DisplayColumn struct {
	Field         string  `json:"field" validate:"required"`
	Title         *string `json:"title"`
	Type          *string `json:"type"`
	Default       *string `json:"default"`
	NumberDisplay *string `json:"number_display"`
}

// Column types computed by the formatter instead of read from results.
const (
	ColumnTypeFavorite = "favorite"
	ColumnTypePersonal = "personal"
)

// DisplayBody holds the writable fields of a display.
type DisplayBody struct {
	Name    string          `json:"name" validate:"required,max=512"`
	Columns []DisplayColumn `json:"columns" validate:"required,min=1,dive"`
}
