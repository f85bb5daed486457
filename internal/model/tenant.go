package model

// Tenant represents the dird_tenant table
type Tenant struct {
	UUID    string  `json:"uuid"`
	Country *string `json:"country,omitempty"`
}

// User represents the dird_user table
type User struct {
	UUID       string `json:"user_uuid"`
	TenantUUID string `json:"tenant_uuid"`
}
