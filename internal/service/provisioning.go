package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/config"
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/monitoring"
)

// Provisioners groups the stores written by tenant provisioning.
type Provisioners struct {
	Tenants interface {
		Ensure(ctx context.Context, tenantUUID string) error
	}
	Displays interface {
		Create(ctx context.Context, tenantUUID string, body model.DisplayBody) (*model.Display, error)
	}
	Phonebooks interface {
		Create(ctx context.Context, tenantUUID string, body model.PhonebookBody) (*model.Phonebook, error)
	}
	Sources interface {
		Create(ctx context.Context, tenantUUID string, body model.SourceBody) (*model.Source, error)
	}
	Profiles interface {
		Create(ctx context.Context, tenantUUID string, body model.ProfileBody) (*model.Profile, error)
		GetByName(ctx context.Context, tenantUUID, name string) (*model.Profile, error)
	}
}

// TenantCreated is published when a tenant is added to the platform.
type TenantCreated struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ProvisioningService creates the default directory configuration of new
// tenants in the background.
type ProvisioningService struct {
	stores       Provisioners
	cfg          config.ProvisioningConfig
	provisioning chan TenantCreated // Channel for background provisioning
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// ErrProvisioningStopped is returned for tenants queued after Close.
var ErrProvisioningStopped = apperrors.ErrDirectory.New("tenant provisioning stopped")

// NewProvisioningService starts the provisioning worker. Close stops it.
func NewProvisioningService(stores Provisioners, cfg config.ProvisioningConfig) *ProvisioningService {
	ps := &ProvisioningService{
		stores:       stores,
		cfg:          cfg,
		provisioning: make(chan TenantCreated, 10),
	}
	ps.wg.Add(1)
	go ps.startProvisioningWorker()
	return ps
}

// startProvisioningWorker runs the background job for provisioning
func (ps *ProvisioningService) startProvisioningWorker() {
	defer ps.wg.Done()
	for tenant := range ps.provisioning {
		log.Info().Str("tenant_uuid", tenant.UUID).Msg("Starting provisioning process")
		start := time.Now()
		err := ps.provisionTenant(context.Background(), tenant)
		monitoring.ProvisioningDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			monitoring.TenantsProvisioned.WithLabelValues("failed").Inc()
			monitoring.Alert("tenant provisioning failed", map[string]string{"tenant_uuid": tenant.UUID, "error": err.Error()})
			continue
		}
		monitoring.TenantsProvisioned.WithLabelValues("success").Inc()
	}
}

// QueueForProvisioning adds a tenant to the provisioning queue
func (ps *ProvisioningService) QueueForProvisioning(tenant TenantCreated) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.closed {
		return ErrProvisioningStopped
	}
	ps.provisioning <- tenant
	return nil
}

// Close stops accepting tenants and waits for the queued ones. Calling it
// again is a no-op.
func (ps *ProvisioningService) Close() {
	ps.mu.Lock()
	if !ps.closed {
		ps.closed = true
		close(ps.provisioning)
	}
	ps.mu.Unlock()
	ps.wg.Wait()
}

// provisionTenant creates the default display, the personal and phonebook
// sources, the configured extra sources and a default profile binding them.
// Tenants already having the default profile are left untouched.
func (ps *ProvisioningService) provisionTenant(ctx context.Context, tenant TenantCreated) error {
	logger := log.With().Str("tenant_uuid", tenant.UUID).Logger()

	if err := ps.stores.Tenants.Ensure(ctx, tenant.UUID); err != nil {
		return err
	}
	_, err := ps.stores.Profiles.GetByName(ctx, tenant.UUID, ps.cfg.ProfileName)
	if err == nil {
		logger.Info().Msg("Tenant already provisioned")
		return nil
	}
	if !errors.Is(err, apperrors.ErrNoSuchProfile) {
		return err
	}

	display, err := ps.stores.Displays.Create(ctx, tenant.UUID, ps.displayBody())
	if err != nil {
		return fmt.Errorf("creating display: %w", err)
	}

	var sources []string
	personal, err := ps.stores.Sources.Create(ctx, tenant.UUID, ps.sourceBody(model.BackendPersonal, "personal", nil))
	if err != nil {
		return fmt.Errorf("creating personal source: %w", err)
	}
	sources = append(sources, personal.UUID)

	name := tenant.Name
	if name == "" {
		name = tenant.UUID
	}
	phonebook, err := ps.stores.Phonebooks.Create(ctx, tenant.UUID, model.PhonebookBody{Name: name})
	if err != nil {
		return fmt.Errorf("creating phonebook: %w", err)
	}
	body := ps.sourceBody(model.BackendPhonebook, "", nil)
	body.PhonebookUUID = &phonebook.UUID
	shared, err := ps.stores.Sources.Create(ctx, tenant.UUID, body)
	if err != nil {
		return fmt.Errorf("creating phonebook source: %w", err)
	}
	sources = append(sources, shared.UUID)

	for _, extra := range ps.cfg.Sources {
		src, err := ps.stores.Sources.Create(ctx, tenant.UUID, ps.sourceBody(extra.Backend, extra.Name, extra.ExtraFields))
		if err != nil {
			logger.Warn().Err(err).Str("backend", extra.Backend).Str("source", extra.Name).Msg("Skipping provisioned source")
			continue
		}
		sources = append(sources, src.UUID)
	}

	var options model.ServiceOptions
	if ps.cfg.Timeout > 0 {
		timeout := ps.cfg.Timeout
		options.Timeout = &timeout
	}
	services := make(map[string]model.ServiceBody, 3)
	for _, service := range []string{model.ServiceLookup, model.ServiceReverse, model.ServiceFavorites} {
		services[service] = model.ServiceBody{Sources: sources, Options: options}
	}
	profile, err := ps.stores.Profiles.Create(ctx, tenant.UUID, model.ProfileBody{
		Name:        ps.cfg.ProfileName,
		DisplayUUID: &display.UUID,
		Services:    services,
	})
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}

	logger.Info().Str("profile_uuid", profile.UUID).Int("sources", len(sources)).Msg("Tenant provisioned")
	return nil
}

func (ps *ProvisioningService) displayBody() model.DisplayBody {
	columns := make([]model.DisplayColumn, 0, len(ps.cfg.Columns))
	for _, c := range ps.cfg.Columns {
		columns = append(columns, model.DisplayColumn{
			Field:         c.Field,
			Title:         optional(c.Title),
			Type:          optional(c.Type),
			Default:       optional(c.Default),
			NumberDisplay: optional(c.NumberDisplay),
		})
	}
	return model.DisplayBody{Name: ps.cfg.DisplayName, Columns: columns}
}

func (ps *ProvisioningService) sourceBody(backend, name string, extra map[string]any) model.SourceBody {
	return model.SourceBody{
		Name:                name,
		Backend:             backend,
		SearchedColumns:     ps.cfg.SearchedFields,
		FirstMatchedColumns: ps.cfg.FirstMatched,
		FormatColumns:       ps.cfg.FormatColumns,
		ExtraFields:         extra,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
