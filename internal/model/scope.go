package model

// TenantScope is the set of tenants a caller may see. It has three states:
// unrestricted (privileged callers), a non-empty set of tenant uuids, and
// empty. The zero value is empty, and an empty scope sees nothing.
type TenantScope struct {
	unrestricted bool
	uuids        []string
}

// AllTenants returns the unrestricted scope.
func AllTenants() TenantScope {
	return TenantScope{unrestricted: true}
}

// Tenants returns a scope restricted to the given tenants. Calling it with no
// arguments yields the empty scope.
func Tenants(uuids ...string) TenantScope {
	seen := make(map[string]struct{}, len(uuids))
	out := make([]string, 0, len(uuids))
	for _, u := range uuids {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return TenantScope{uuids: out}
}

func (s TenantScope) Unrestricted() bool {
	return s.unrestricted
}

// Empty reports whether no tenant at all is visible.
func (s TenantScope) Empty() bool {
	return !s.unrestricted && len(s.uuids) == 0
}

// UUIDs returns the visible tenants. It is nil for the unrestricted scope.
func (s TenantScope) UUIDs() []string {
	if s.unrestricted {
		return nil
	}
	out := make([]string, len(s.uuids))
	copy(out, s.uuids)
	return out
}

// Contains reports whether tenantUUID is visible.
func (s TenantScope) Contains(tenantUUID string) bool {
	if s.unrestricted {
		return true
	}
	for _, u := range s.uuids {
		if u == tenantUUID {
			return true
		}
	}
	return false
}
