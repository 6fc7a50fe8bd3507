package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/authz"
	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/events"
	"github.com/example/facility-booking/internal/lifecycle"
	"github.com/example/facility-booking/internal/lock"
	"github.com/example/facility-booking/internal/persistence"
)

const (
	maxPurposeLength   = 500
	defaultLockTimeout = 3 * time.Second
)

// BookingStore captures the persistence operations needed by the booking service.
type BookingStore interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetResource(ctx context.Context, id string) (persistence.Resource, error)
	persistence.BookingRepository
}

// BookingOptions carries optional collaborators and tuning for BookingService.
type BookingOptions struct {
	// Location resolves civil dates and times of day. Defaults to UTC.
	Location *time.Location
	// LockTimeout bounds the wait for a resource's critical section.
	LockTimeout time.Duration
	Events      EventPublisher
	Cache       AvailabilityCache
	Metrics     Metrics
}

// BookingService is the admission and availability engine. Every admission
// for a resource runs inside that resource's critical section, and the store
// re-checks overlap atomically on insert.
type BookingService struct {
	store       BookingStore
	locker      lock.Locker
	idGenerator func() string
	now         func() time.Time
	loc         *time.Location
	lockTimeout time.Duration
	events      EventPublisher
	cache       AvailabilityCache
	metrics     Metrics
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(store BookingStore, locker lock.Locker, idGenerator func() string, now func() time.Time, opts BookingOptions) *BookingService {
	return NewBookingServiceWithLogger(store, locker, idGenerator, now, opts, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(store BookingStore, locker lock.Locker, idGenerator func() string, now func() time.Time, opts BookingOptions, logger *slog.Logger) *BookingService {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &BookingService{
		store:       store,
		locker:      locker,
		idGenerator: idGenerator,
		now:         now,
		loc:         opts.Location,
		lockTimeout: opts.LockTimeout,
		events:      opts.Events,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// resourceLockKey names the critical section shared by admissions and
// catalog mutations on one resource.
func resourceLockKey(resourceID string) string {
	return "resource:" + resourceID
}

// GetAvailability returns the busy intervals of a resource on a civil date,
// sorted by start. The result is advisory; CreateBooking is authoritative.
func (s *BookingService) GetAvailability(ctx context.Context, principal Principal, resourceID, date string) (result Availability, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	resourceID = strings.TrimSpace(resourceID)
	date = strings.TrimSpace(date)
	logger := s.loggerWith(ctx, "GetAvailability",
		"principal_id", principal.UserID,
		"resource_id", resourceID,
		"date", date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	if resourceID == "" {
		vErr.add("resourceId", "resource id is required")
	}
	day, dayErr := availability.DayWindow(date, s.loc)
	if dayErr != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, err = s.store.GetResource(ctx, resourceID); err != nil {
		err = mapRepoError(err)
		return
	}

	result = Availability{ResourceID: resourceID, Date: date}

	cacheable := false
	var version uint64
	if s.cache != nil {
		busy, hit, cacheErr := s.cache.Get(ctx, resourceID, date)
		if cacheErr != nil {
			logger.WarnContext(ctx, "availability cache read failed", "error", cacheErr)
		} else if hit {
			result.Busy = busy
			return
		}
		// The version must be read before the ledger.
		if version, cacheErr = s.cache.Version(ctx, resourceID, date); cacheErr != nil {
			logger.WarnContext(ctx, "availability cache version read failed", "error", cacheErr)
		} else {
			cacheable = true
		}
	}

	result.Busy, err = s.activeBusy(ctx, resourceID, day)
	if err != nil {
		return
	}

	if cacheable {
		if cacheErr := s.cache.Set(ctx, resourceID, date, version, result.Busy); cacheErr != nil {
			logger.WarnContext(ctx, "availability cache write failed", "error", cacheErr)
		}
	}
	return
}

// activeBusy lists bookings on resourceID intersecting window whose effective
// status still occupies time.
func (s *BookingService) activeBusy(ctx context.Context, resourceID string, window availability.Interval) ([]availability.Busy, error) {
	records, err := s.store.ListBookings(ctx, persistence.BookingFilter{
		ResourceID: resourceID,
		Statuses:   persistence.ActiveStatuses,
		From:       window.Start,
		To:         window.End,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	now := s.now()
	busy := make([]availability.Busy, 0, len(records))
	for _, rec := range records {
		if !lifecycle.Effective(lifecycle.Status(rec.Status), rec.End, now).IsActive() {
			continue
		}
		busy = append(busy, availability.Busy{
			BookingID: rec.ID,
			Interval:  availability.Interval{Start: rec.Start, End: rec.End},
		})
	}
	return availability.BusyWithin(busy, window), nil
}

// CreateBooking admits a booking if the caller may book the resource and the
// window is free. Concurrent requests for one resource behave as if run one
// after another: exactly one of two overlapping requests succeeds.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("booking store not configured")
		return
	}

	started := time.Now()
	input := normalizeBookingInput(params.Input)
	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"resource_id", input.ResourceID,
		"date", input.Date,
		"start", input.StartTime,
		"end", input.EndTime,
	)
	defer func() {
		s.metrics.ObserveAdmission(admissionOutcome(err), time.Since(started))
		if err != nil {
			level := slog.LevelError
			if kind := ErrorKind(err); kind != "internal_error" {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "booking rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID, "status", booking.Status).InfoContext(ctx, "booking admitted")
	}()

	var window availability.Interval
	window, err = s.validateBookingInput(input)
	if err != nil {
		return
	}

	var record persistence.Booking
	record, err = s.admit(ctx, params.Principal, input, window)
	if err != nil {
		return
	}

	booking = bookingFromRecord(record, s.now())
	s.afterChange(ctx, logger, record, events.BookingCreated, params.Principal.UserID)
	return
}

// admit runs the read-check-write sequence inside the resource's critical section.
func (s *BookingService) admit(ctx context.Context, principal Principal, input BookingInput, window availability.Interval) (persistence.Booking, error) {
	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, resourceLockKey(input.ResourceID), s.lockTimeout)
	s.metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return persistence.Booking{}, ErrBusy
		}
		return persistence.Booking{}, fmt.Errorf("acquire resource lock: %w", err)
	}
	defer release()

	user, err := loadSubject(ctx, s.store, principal)
	if err != nil {
		return persistence.Booking{}, err
	}
	resource, err := s.store.GetResource(ctx, input.ResourceID)
	if err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}

	if err := authorize(authz.Request{
		Action:   authz.ActionCreateBooking,
		Subject:  subjectFromRecord(user),
		Resource: resourceFacts(resource),
		Duration: window.Duration(),
	}); err != nil {
		return persistence.Booking{}, err
	}

	conflicts, err := s.activeBusy(ctx, resource.ID, window)
	if err != nil {
		return persistence.Booking{}, err
	}
	if len(conflicts) > 0 {
		return persistence.Booking{}, &ConflictError{ResourceID: resource.ID, Busy: conflicts}
	}

	now := s.now()
	record := persistence.Booking{
		ID:               s.idGenerator(),
		ResourceID:       resource.ID,
		UserID:           user.ID,
		Date:             input.Date,
		Start:            window.Start,
		End:              window.End,
		Purpose:          input.Purpose,
		Status:           string(lifecycle.InitialStatus(resource.RequiresApproval)),
		ResourceName:     resource.Name,
		ResourceBuilding: resource.Building,
		ResourceCategory: resource.Category,
		UserName:         user.FullName,
		UserRole:         user.Role,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateBooking(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrOverlap) {
			// Another writer won at the storage layer; report what it holds.
			conflicts, listErr := s.activeBusy(ctx, resource.ID, window)
			if listErr != nil {
				return persistence.Booking{}, listErr
			}
			return persistence.Booking{}, &ConflictError{ResourceID: resource.ID, Busy: conflicts}
		}
		return persistence.Booking{}, mapRepoError(err)
	}
	return record, nil
}

func (s *BookingService) validateBookingInput(input BookingInput) (availability.Interval, error) {
	vErr := &ValidationError{}
	if input.ResourceID == "" {
		vErr.add("resourceId", "resource id is required")
	}
	if len(input.Purpose) > maxPurposeLength {
		vErr.add("purpose", fmt.Sprintf("purpose must be at most %d characters", maxPurposeLength))
	}

	window, err := availability.ResolveWindow(input.Date, input.StartTime, input.EndTime, s.loc)
	switch {
	case err == nil:
		if window.Start.Before(s.now()) {
			vErr.add("startTime", "start must not be in the past")
		}
	case errors.Is(err, availability.ErrInvalidRange):
		vErr.addCause("endTime", "end must be after start", ErrInvalidRange)
	case errors.Is(err, availability.ErrInvalidDate):
		vErr.add("date", "date must be YYYY-MM-DD")
	case errors.Is(err, availability.ErrInvalidClock):
		if !availability.ValidClock(input.StartTime) {
			vErr.add("startTime", "start time must be HH:MM")
		}
		if !availability.ValidClock(input.EndTime) {
			vErr.add("endTime", "end time must be HH:MM")
		}
	default:
		vErr.add("date", err.Error())
	}

	if vErr.HasErrors() {
		return availability.Interval{}, vErr
	}
	return window, nil
}

func normalizeBookingInput(input BookingInput) BookingInput {
	input.ResourceID = strings.TrimSpace(input.ResourceID)
	input.Date = strings.TrimSpace(input.Date)
	input.StartTime = strings.TrimSpace(input.StartTime)
	input.EndTime = strings.TrimSpace(input.EndTime)
	input.Purpose = strings.TrimSpace(input.Purpose)
	return input
}

// CancelBooking cancels a booking for its owner or an administrator.
// Cancelling an already cancelled booking succeeds without change.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	changed := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("changed", changed).InfoContext(ctx, "booking cancelled")
	}()

	var user persistence.User
	user, err = loadSubject(ctx, s.store, principal)
	if err != nil {
		return
	}

	var record persistence.Booking
	record, changed, err = s.transition(ctx, bookingID, func(rec persistence.Booking) error {
		return authorize(authz.Request{
			Action:  authz.ActionCancelBooking,
			Subject: subjectFromRecord(user),
			OwnerID: rec.UserID,
		})
	}, func(current lifecycle.Status) (lifecycle.Status, bool, error) {
		return lifecycle.Cancel(current)
	}, principal.UserID)
	if err != nil {
		return
	}

	booking = bookingFromRecord(record, s.now())
	if changed {
		s.afterChange(ctx, logger, record, events.BookingCancelled, principal.UserID)
	}
	return
}

// ApproveBooking confirms a Pending booking on behalf of an administrator.
func (s *BookingService) ApproveBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ApproveBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking approved")
	}()

	var user persistence.User
	user, err = loadSubject(ctx, s.store, principal)
	if err != nil {
		return
	}
	if err = authorize(authz.Request{Action: authz.ActionApproveBooking, Subject: subjectFromRecord(user)}); err != nil {
		return
	}

	var record persistence.Booking
	record, _, err = s.transition(ctx, bookingID, nil, func(current lifecycle.Status) (lifecycle.Status, bool, error) {
		next, err := lifecycle.Approve(current)
		return next, err == nil, err
	}, "")
	if err != nil {
		return
	}

	booking = bookingFromRecord(record, s.now())
	s.afterChange(ctx, logger, record, events.BookingApproved, principal.UserID)
	return
}

// transition loads a booking, checks access, computes the next status from
// its effective status and applies it with a compare-and-set. A lost race is
// retried once against the fresh state.
func (s *BookingService) transition(
	ctx context.Context,
	bookingID string,
	check func(persistence.Booking) error,
	next func(lifecycle.Status) (lifecycle.Status, bool, error),
	actor string,
) (persistence.Booking, bool, error) {
	const attempts = 2
	for attempt := 1; ; attempt++ {
		record, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return persistence.Booking{}, false, mapRepoError(err)
		}
		if check != nil {
			if err := check(record); err != nil {
				return persistence.Booking{}, false, err
			}
		}

		now := s.now()
		effective := lifecycle.Effective(lifecycle.Status(record.Status), record.End, now)
		target, changed, err := next(effective)
		if err != nil {
			return persistence.Booking{}, false, err
		}
		if !changed {
			return record, false, nil
		}

		updated, err := s.store.UpdateBookingStatus(ctx, persistence.StatusChange{
			BookingID: record.ID,
			From:      record.Status,
			To:        string(target),
			At:        now,
			By:        actor,
		})
		if err == nil {
			s.metrics.IncTransition(string(target))
			return updated, true, nil
		}
		if !errors.Is(err, persistence.ErrStale) || attempt >= attempts {
			return persistence.Booking{}, false, mapRepoError(err)
		}
	}
}

// GetBooking returns a booking to its owner or an administrator.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	user, err := loadSubject(ctx, s.store, principal)
	if err != nil {
		return Booking{}, err
	}
	record, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if err := authorize(authz.Request{
		Action:  authz.ActionViewUserBookings,
		Subject: subjectFromRecord(user),
		OwnerID: record.UserID,
	}); err != nil {
		return Booking{}, err
	}
	return bookingFromRecord(record, s.now()), nil
}

// ListUserBookings returns a user's bookings ordered by start, for that user or an administrator.
func (s *BookingService) ListUserBookings(ctx context.Context, principal Principal, userID string) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListUserBookings", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list user bookings", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var user persistence.User
	user, err = loadSubject(ctx, s.store, principal)
	if err != nil {
		return
	}
	if err = authorize(authz.Request{
		Action:  authz.ActionViewUserBookings,
		Subject: subjectFromRecord(user),
		OwnerID: userID,
	}); err != nil {
		return
	}

	bookings, err = s.list(ctx, persistence.BookingFilter{UserID: userID}, "")
	return
}

// ListAllBookings returns every booking matching query, for administrators.
func (s *BookingService) ListAllBookings(ctx context.Context, principal Principal, query BookingQuery) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListAllBookings", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var user persistence.User
	user, err = loadSubject(ctx, s.store, principal)
	if err != nil {
		return
	}
	if err = authorize(authz.Request{Action: authz.ActionViewAllBookings, Subject: subjectFromRecord(user)}); err != nil {
		return
	}

	filter := persistence.BookingFilter{
		ResourceID: strings.TrimSpace(query.ResourceID),
		UserID:     strings.TrimSpace(query.UserID),
	}
	vErr := &ValidationError{}
	if query.Status != "" && !query.Status.IsValid() {
		vErr.add("status", "status is invalid")
	}
	if date := strings.TrimSpace(query.Date); date != "" {
		day, dayErr := availability.DayWindow(date, s.loc)
		if dayErr != nil {
			vErr.add("date", "date must be YYYY-MM-DD")
		}
		filter.From, filter.To = day.Start, day.End
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	bookings, err = s.list(ctx, filter, query.Status)
	return
}

// list converts records and, when status is set, filters on effective status.
func (s *BookingService) list(ctx context.Context, filter persistence.BookingFilter, status lifecycle.Status) ([]Booking, error) {
	records, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	now := s.now()
	bookings := make([]Booking, 0, len(records))
	for _, rec := range records {
		b := bookingFromRecord(rec, now)
		if status != "" && b.Status != status {
			continue
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// Reconcile persists statuses that reads already derive lazily: Confirmed
// bookings past their end become Completed, unapproved Pending ones Cancelled.
// Correctness never depends on running it.
func (s *BookingService) Reconcile(ctx context.Context) (result ReconcileResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	now := s.now()
	logger := s.loggerWith(ctx, "Reconcile", "as_of", now)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reconcile failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reconcile finished", "completed", result.Completed, "lapsed", result.Lapsed)
	}()

	var records []persistence.Booking
	records, err = s.store.ListBookings(ctx, persistence.BookingFilter{Statuses: persistence.ActiveStatuses, To: now})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	for _, rec := range records {
		if err = ctx.Err(); err != nil {
			return
		}
		stored := lifecycle.Status(rec.Status)
		effective := lifecycle.Effective(stored, rec.End, now)
		if effective == stored {
			continue
		}

		updated, updateErr := s.store.UpdateBookingStatus(ctx, persistence.StatusChange{
			BookingID: rec.ID,
			From:      rec.Status,
			To:        string(effective),
			At:        now,
		})
		if errors.Is(updateErr, persistence.ErrStale) {
			continue
		}
		if updateErr != nil {
			err = mapRepoError(updateErr)
			return
		}

		s.metrics.IncTransition(string(effective))
		eventType := events.BookingCompleted
		if effective == lifecycle.StatusCompleted {
			result.Completed++
		} else {
			result.Lapsed++
			eventType = events.BookingLapsed
		}
		s.afterChange(ctx, logger, updated, eventType, "")
	}
	return
}

// afterChange runs best-effort side effects of a ledger change.
func (s *BookingService) afterChange(ctx context.Context, logger *slog.Logger, record persistence.Booking, eventType events.Type, actor string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, record.ResourceID, record.Date); err != nil {
			logger.WarnContext(ctx, "availability cache invalidation failed", "error", err)
		}
	}
	s.publish(ctx, logger, record, eventType, actor)
}

func (s *BookingService) publish(ctx context.Context, logger *slog.Logger, record persistence.Booking, eventType events.Type, actor string) {
	if s.events == nil {
		return
	}
	event := events.NewBookingEvent(eventType, s.idGenerator(), s.now(), events.BookingFields{
		BookingID:    record.ID,
		ResourceID:   record.ResourceID,
		ResourceName: record.ResourceName,
		Category:     record.ResourceCategory,
		UserID:       record.UserID,
		UserRole:     record.UserRole,
		Status:       record.Status,
		Date:         record.Date,
		Start:        record.Start,
		End:          record.End,
		ActorID:      actor,
	})
	if err := s.events.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish booking event", "error", err, "event_type", eventType)
	}
}
