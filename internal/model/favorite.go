package model

// Favorite represents the dird_favorite table, joined with its source
type Favorite struct {
	UserUUID   string `json:"user_uuid"`
	SourceUUID string `json:"source_uuid"`
	SourceName string `json:"source"`
	Backend    string `json:"backend"`
	ContactID  string `json:"contact_id"`
}
