package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/authz"
	"github.com/example/facility-booking/internal/events"
	"github.com/example/facility-booking/internal/lifecycle"
	"github.com/example/facility-booking/internal/lock"
	"github.com/example/facility-booking/internal/persistence"
)

// ResourceStore captures the persistence operations needed by the resource service.
type ResourceStore interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
	persistence.ResourceRepository
	ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error)
	UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error)
}

// ResourceOptions carries optional collaborators and tuning for ResourceService.
type ResourceOptions struct {
	LockTimeout time.Duration
	// CancelOnDeactivate cancels outstanding bookings when a resource leaves Active.
	CancelOnDeactivate bool
	Events             EventPublisher
	Cache              AvailabilityCache
}

// ResourceService manages the resource catalog for administrators.
type ResourceService struct {
	store              ResourceStore
	locker             lock.Locker
	idGenerator        func() string
	now                func() time.Time
	lockTimeout        time.Duration
	cancelOnDeactivate bool
	events             EventPublisher
	cache              AvailabilityCache
	logger             *slog.Logger
}

// NewResourceService constructs a resource service with the provided dependencies.
func NewResourceService(store ResourceStore, locker lock.Locker, idGenerator func() string, now func() time.Time, opts ResourceOptions) *ResourceService {
	return NewResourceServiceWithLogger(store, locker, idGenerator, now, opts, nil)
}

// NewResourceServiceWithLogger constructs a resource service with a specified logger.
// The locker must be the one shared with the booking service.
func NewResourceServiceWithLogger(store ResourceStore, locker lock.Locker, idGenerator func() string, now func() time.Time, opts ResourceOptions, logger *slog.Logger) *ResourceService {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	return &ResourceService{
		store:              store,
		locker:             locker,
		idGenerator:        idGenerator,
		now:                now,
		lockTimeout:        opts.LockTimeout,
		cancelOnDeactivate: opts.CancelOnDeactivate,
		events:             opts.Events,
		cache:              opts.Cache,
		logger:             defaultLogger(logger),
	}
}

func (s *ResourceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ResourceService", operation, attrs...)
}

func (s *ResourceService) requireCatalogAdmin(ctx context.Context, principal Principal) (persistence.User, error) {
	user, err := loadSubject(ctx, s.store, principal)
	if err != nil {
		return persistence.User{}, err
	}
	if err := authorize(authz.Request{Action: authz.ActionManageCatalog, Subject: subjectFromRecord(user)}); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func (s *ResourceService) withResourceLock(ctx context.Context, resourceID string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, resourceLockKey(resourceID), s.lockTimeout)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return ErrBusy
		}
		return fmt.Errorf("acquire resource lock: %w", err)
	}
	defer release()
	return fn()
}

// CreateResource validates input and adds a resource to the catalog.
func (s *ResourceService) CreateResource(ctx context.Context, principal Principal, input ResourceInput) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	input = normalizeResourceInput(input)
	logger := s.loggerWith(ctx, "CreateResource",
		"principal_id", principal.UserID,
		"resource_id", input.ID,
		"name", input.Name,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create resource", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("resource_id", resource.ID).InfoContext(ctx, "resource created")
	}()

	if _, err = s.requireCatalogAdmin(ctx, principal); err != nil {
		return
	}
	if input.Status == "" {
		input.Status = ResourceActive
	}
	if vErr := validateResourceInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	resource = resourceFromInput(input)
	if resource.ID == "" {
		resource.ID = s.idGenerator()
	}
	resource.CreatedAt = now
	resource.UpdatedAt = now

	if err = s.store.CreateResource(ctx, resourceToRecord(resource)); err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

// UpdateResource replaces a resource's attributes. Existing bookings keep
// their snapshots. Status changes are delegated to SetStatus semantics.
func (s *ResourceService) UpdateResource(ctx context.Context, principal Principal, resourceID string, input ResourceInput) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	resourceID = strings.TrimSpace(resourceID)
	input = normalizeResourceInput(input)
	logger := s.loggerWith(ctx, "UpdateResource",
		"principal_id", principal.UserID,
		"resource_id", resourceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update resource", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resource updated")
	}()

	var user persistence.User
	user, err = s.requireCatalogAdmin(ctx, principal)
	if err != nil {
		return
	}

	err = s.withResourceLock(ctx, resourceID, func() error {
		existing, err := s.store.GetResource(ctx, resourceID)
		if err != nil {
			return mapRepoError(err)
		}
		if input.Status == "" {
			input.Status = ResourceStatus(existing.Status)
		}
		if vErr := validateResourceInput(input); vErr.HasErrors() {
			return vErr
		}

		updated := resourceFromInput(input)
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = s.now()
		if err := s.store.UpdateResource(ctx, resourceToRecord(updated)); err != nil {
			return mapRepoError(err)
		}
		resource = updated

		if existing.Status == string(ResourceActive) && updated.Status != ResourceActive {
			return s.cascadeCancel(ctx, logger, existing.ID, user.ID)
		}
		return nil
	})
	return
}

// SetStatus changes a resource's operational status. It serializes with
// admissions on the same resource, so no booking is admitted after a
// deactivation returns.
func (s *ResourceService) SetStatus(ctx context.Context, principal Principal, resourceID string, status ResourceStatus) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	resourceID = strings.TrimSpace(resourceID)
	logger := s.loggerWith(ctx, "SetStatus",
		"principal_id", principal.UserID,
		"resource_id", resourceID,
		"status", status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set resource status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resource status changed")
	}()

	var user persistence.User
	user, err = s.requireCatalogAdmin(ctx, principal)
	if err != nil {
		return
	}
	if !status.IsValid() {
		vErr := &ValidationError{}
		vErr.add("status", "status must be Active, Maintenance or Inactive")
		err = vErr
		return
	}

	err = s.withResourceLock(ctx, resourceID, func() error {
		record, err := s.store.GetResource(ctx, resourceID)
		if err != nil {
			return mapRepoError(err)
		}
		previous := record.Status
		record.Status = string(status)
		record.UpdatedAt = s.now()
		if err := s.store.UpdateResource(ctx, record); err != nil {
			return mapRepoError(err)
		}
		resource = resourceFromRecord(record)

		if previous == string(ResourceActive) && status != ResourceActive {
			return s.cascadeCancel(ctx, logger, record.ID, user.ID)
		}
		return nil
	})
	return
}

// cascadeCancel cancels outstanding bookings on a resource that left Active,
// when configured to. Callers hold the resource lock.
func (s *ResourceService) cascadeCancel(ctx context.Context, logger *slog.Logger, resourceID, actor string) error {
	if !s.cancelOnDeactivate {
		return nil
	}

	now := s.now()
	records, err := s.store.ListBookings(ctx, persistence.BookingFilter{
		ResourceID: resourceID,
		Statuses:   persistence.ActiveStatuses,
		From:       now,
	})
	if err != nil {
		return mapRepoError(err)
	}

	cancelled := 0
	for _, rec := range records {
		if !lifecycle.Effective(lifecycle.Status(rec.Status), rec.End, now).IsActive() {
			continue
		}
		updated, err := s.store.UpdateBookingStatus(ctx, persistence.StatusChange{
			BookingID: rec.ID,
			From:      rec.Status,
			To:        string(lifecycle.StatusCancelled),
			At:        now,
			By:        actor,
		})
		if errors.Is(err, persistence.ErrStale) {
			continue
		}
		if err != nil {
			return mapRepoError(err)
		}
		cancelled++

		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, updated.ResourceID, updated.Date); err != nil {
				logger.WarnContext(ctx, "availability cache invalidation failed", "error", err)
			}
		}
		if s.events != nil {
			event := events.NewBookingEvent(events.BookingCancelled, s.idGenerator(), now, events.BookingFields{
				BookingID:    updated.ID,
				ResourceID:   updated.ResourceID,
				ResourceName: updated.ResourceName,
				Category:     updated.ResourceCategory,
				UserID:       updated.UserID,
				UserRole:     updated.UserRole,
				Status:       updated.Status,
				Date:         updated.Date,
				Start:        updated.Start,
				End:          updated.End,
				ActorID:      actor,
			})
			if err := s.events.Publish(ctx, event); err != nil {
				logger.WarnContext(ctx, "failed to publish booking event", "error", err)
			}
		}
	}
	logger.InfoContext(ctx, "cancelled bookings on deactivated resource", "cancelled", cancelled)
	return nil
}

// DeleteResource removes a resource that has no effectively active bookings.
// Past bookings keep their snapshots.
func (s *ResourceService) DeleteResource(ctx context.Context, principal Principal, resourceID string) (err error) {
	if s == nil {
		return fmt.Errorf("ResourceService is nil")
	}

	resourceID = strings.TrimSpace(resourceID)
	logger := s.loggerWith(ctx, "DeleteResource",
		"principal_id", principal.UserID,
		"resource_id", resourceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete resource", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resource deleted")
	}()

	if _, err = s.requireCatalogAdmin(ctx, principal); err != nil {
		return
	}

	err = s.withResourceLock(ctx, resourceID, func() error {
		if _, err := s.store.GetResource(ctx, resourceID); err != nil {
			return mapRepoError(err)
		}

		now := s.now()
		records, err := s.store.ListBookings(ctx, persistence.BookingFilter{
			ResourceID: resourceID,
			Statuses:   persistence.ActiveStatuses,
			From:       now,
		})
		if err != nil {
			return mapRepoError(err)
		}
		for _, rec := range records {
			if lifecycle.Effective(lifecycle.Status(rec.Status), rec.End, now).IsActive() {
				return ErrResourceInUse
			}
		}

		return mapRepoError(s.store.DeleteResource(ctx, resourceID))
	})
	return
}

// GetResource returns a resource to any authenticated user.
func (s *ResourceService) GetResource(ctx context.Context, principal Principal, resourceID string) (Resource, error) {
	if s == nil {
		return Resource{}, fmt.Errorf("ResourceService is nil")
	}
	if _, err := loadSubject(ctx, s.store, principal); err != nil {
		return Resource{}, err
	}
	record, err := s.store.GetResource(ctx, strings.TrimSpace(resourceID))
	if err != nil {
		return Resource{}, mapRepoError(err)
	}
	return resourceFromRecord(record), nil
}

// ListResources returns the catalog ordered by name.
func (s *ResourceService) ListResources(ctx context.Context, principal Principal) ([]Resource, error) {
	if s == nil {
		return nil, fmt.Errorf("ResourceService is nil")
	}
	if _, err := loadSubject(ctx, s.store, principal); err != nil {
		return nil, err
	}
	records, err := s.store.ListResources(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	resources := make([]Resource, 0, len(records))
	for _, rec := range records {
		resources = append(resources, resourceFromRecord(rec))
	}
	return resources, nil
}

func resourceFromInput(input ResourceInput) Resource {
	return Resource{
		ID:          input.ID,
		Name:        input.Name,
		Category:    input.Category,
		SubCategory: input.SubCategory,
		Capacity:    input.Capacity,
		Status:      input.Status,
		Location:    input.Location,
		Rules:       input.Rules,
	}
}

func normalizeResourceInput(input ResourceInput) ResourceInput {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	input.SubCategory = strings.TrimSpace(input.SubCategory)
	input.Status = ResourceStatus(strings.TrimSpace(string(input.Status)))
	input.Location.Building = strings.TrimSpace(input.Location.Building)
	input.Location.Zone = strings.TrimSpace(input.Location.Zone)
	input.Location.Floor = strings.TrimSpace(input.Location.Floor)
	input.Rules.RequiredCapability = strings.TrimSpace(input.Rules.RequiredCapability)
	if len(input.Rules.AllowedRoles) == 0 {
		input.Rules.AllowedRoles = nil
	}
	return input
}

func validateResourceInput(input ResourceInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Category == "" {
		vErr.add("category", "category is required")
	}
	if input.Location.Building == "" {
		vErr.add("location.building", "building is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if !input.Status.IsValid() {
		vErr.add("status", "status must be Active, Maintenance or Inactive")
	}
	for _, role := range input.Rules.AllowedRoles {
		if !role.IsValid() {
			vErr.add("bookingRules.allowedRoles", fmt.Sprintf("unknown role %q", role))
			break
		}
	}
	if input.Rules.MaxDurationHours < 0 {
		vErr.add("bookingRules.maxDurationHours", "max duration must not be negative")
	}
	return vErr
}
