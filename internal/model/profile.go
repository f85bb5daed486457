package model

import "time"

// Service names routed through profiles.
const (
	ServiceLookup    = "lookup"
	ServiceReverse   = "reverse"
	ServiceFavorites = "favorites"
)

// Profile represents the dird_profile table with its service bindings
type Profile struct {
	UUID       string                    `json:"uuid"`
	TenantUUID string                    `json:"tenant_uuid"`
	Name       string                    `json:"name"`
	Display    *DisplayRef               `json:"display"`
	Services   map[string]ProfileService `json:"services"`
}

// DisplayRef references the display of a profile.
type DisplayRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
}

// SourceRef references a source bound to a profile service.
type SourceRef struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name,omitempty"`
	Backend string `json:"backend,omitempty"`
}

// ProfileService is the ordered list of sources of one service, with its
// options.
type ProfileService struct {
	Sources []SourceRef    `json:"sources"`
	Options ServiceOptions `json:"options"`
}

// ServiceOptions is stored as the JSON config of a profile service.
type ServiceOptions struct {
	// Timeout in seconds. Nil means the configured default.
	Timeout *float64 `json:"timeout,omitempty" validate:"omitempty,gt=0"`
}

// TimeoutOr returns the service timeout, or def when none is set.
func (o ServiceOptions) TimeoutOr(def time.Duration) time.Duration {
	if o.Timeout == nil {
		return def
	}
	return time.Duration(*o.Timeout * float64(time.Second))
}

// ProfileBody holds the writable fields of a profile.
type ProfileBody struct {
	Name        string                 `json:"name" validate:"required,max=512"`
	DisplayUUID *string                `json:"display_uuid"`
	Services    map[string]ServiceBody `json:"services" validate:"dive,keys,required,endkeys"`
}

// ServiceBody is the requested binding of one service.
type ServiceBody struct {
	Sources []string       `json:"sources" validate:"dive,required"`
	Options ServiceOptions `json:"options"`
}
