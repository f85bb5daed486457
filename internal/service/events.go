package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
)

// UserDeleted is published when a user is removed from the platform.
type UserDeleted struct {
	UUID string `json:"uuid"`
}

// LocalizationEdited is published when the country of a tenant changes.
type LocalizationEdited struct {
	TenantUUID string `json:"tenant_uuid"`
	Country    string `json:"country"`
}

type UserDeleter interface {
	Delete(ctx context.Context, userUUID string) error
}

type CountrySetter interface {
	SetCountry(ctx context.Context, tenantUUID, country string) error
}

// EventHandlers applies platform events to the directory.
type EventHandlers struct {
	provisioning *ProvisioningService
	users        UserDeleter
	tenants      CountrySetter
}

func NewEventHandlers(provisioning *ProvisioningService, users UserDeleter, tenants CountrySetter) *EventHandlers {
	return &EventHandlers{provisioning: provisioning, users: users, tenants: tenants}
}

// TenantCreated queues the tenant for provisioning.
func (h *EventHandlers) TenantCreated(ctx context.Context, event TenantCreated) error {
	if event.UUID == "" {
		return apperrors.ErrInvalidArgument.Msg("uuid: required")
	}
	log.Ctx(ctx).Info().Str("tenant_uuid", event.UUID).Msg("Tenant created")
	return h.provisioning.QueueForProvisioning(event)
}

// UserDeleted removes the user with its personal contacts and favorites.
// Unknown users are ignored.
func (h *EventHandlers) UserDeleted(ctx context.Context, event UserDeleted) error {
	err := h.users.Delete(ctx, event.UUID)
	if errors.Is(err, apperrors.ErrNoSuchUser) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("user_uuid", event.UUID).Msg("User deleted")
	return nil
}

// LocalizationEdited records the new country of the tenant.
func (h *EventHandlers) LocalizationEdited(ctx context.Context, event LocalizationEdited) error {
	return h.tenants.SetCountry(ctx, event.TenantUUID, event.Country)
}
