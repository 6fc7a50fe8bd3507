package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/authz"
	"github.com/example/facility-booking/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
	UpdateUser(ctx context.Context, user persistence.User) error
	ListUsers(ctx context.Context) ([]persistence.User, error)
}

// knownCapabilities is the closed set of grantable capability flags.
var knownCapabilities = []string{CapabilityBookAuditorium, CapabilityBookLabs}

// UserService lets administrators manage accounts.
type UserService struct {
	users  UserRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, now func() time.Time, logger *slog.Logger) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

func (s *UserService) requireUserAdmin(ctx context.Context, principal Principal) (persistence.User, error) {
	user, err := loadSubject(ctx, s.users, principal)
	if err != nil {
		return persistence.User{}, err
	}
	if err := authorize(authz.Request{Action: authz.ActionManageUsers, Subject: subjectFromRecord(user)}); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// ListUsers returns all accounts ordered by email.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]UserProfile, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if _, err := s.requireUserAdmin(ctx, principal); err != nil {
		return nil, err
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	profiles := make([]UserProfile, 0, len(records))
	for _, rec := range records {
		profiles = append(profiles, profileFromRecord(rec))
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Email < profiles[j].Email
	})
	return profiles, nil
}

// GetUser returns one account.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (UserProfile, error) {
	if s == nil {
		return UserProfile{}, fmt.Errorf("UserService is nil")
	}
	if _, err := s.requireUserAdmin(ctx, principal); err != nil {
		return UserProfile{}, err
	}
	record, err := s.users.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return UserProfile{}, mapRepoError(err)
	}
	return profileFromRecord(record), nil
}

// SetRole changes a user's role. Administrators cannot demote themselves.
func (s *UserService) SetRole(ctx context.Context, principal Principal, userID string, role Role) (UserProfile, error) {
	return s.mutate(ctx, principal, "SetRole", userID, func(admin persistence.User, target *persistence.User) error {
		if !role.IsValid() {
			vErr := &ValidationError{}
			vErr.add("role", "role must be one of Admin, Faculty, Student, Staff")
			return vErr
		}
		if admin.ID == target.ID && role != RoleAdmin {
			vErr := &ValidationError{}
			vErr.add("role", "administrators cannot change their own role")
			return vErr
		}
		target.Role = string(role)
		return nil
	})
}

// SetCapabilities replaces a user's capability flags.
func (s *UserService) SetCapabilities(ctx context.Context, principal Principal, userID string, capabilities []string) (UserProfile, error) {
	return s.mutate(ctx, principal, "SetCapabilities", userID, func(_ persistence.User, target *persistence.User) error {
		normalized := make([]string, 0, len(capabilities))
		for _, c := range capabilities {
			c = strings.TrimSpace(c)
			if !slices.Contains(knownCapabilities, c) {
				vErr := &ValidationError{}
				vErr.add("capabilities", fmt.Sprintf("unknown capability %q", c))
				return vErr
			}
			if !slices.Contains(normalized, c) {
				normalized = append(normalized, c)
			}
		}
		sort.Strings(normalized)
		target.Capabilities = normalized
		return nil
	})
}

// Deactivate disables an account. Existing sessions fail their next
// authorization check because every decision reloads the user record.
func (s *UserService) Deactivate(ctx context.Context, principal Principal, userID string) (UserProfile, error) {
	return s.mutate(ctx, principal, "Deactivate", userID, func(admin persistence.User, target *persistence.User) error {
		if admin.ID == target.ID {
			vErr := &ValidationError{}
			vErr.add("userId", "administrators cannot deactivate themselves")
			return vErr
		}
		target.Active = false
		return nil
	})
}

// Reactivate re-enables an account.
func (s *UserService) Reactivate(ctx context.Context, principal Principal, userID string) (UserProfile, error) {
	return s.mutate(ctx, principal, "Reactivate", userID, func(_ persistence.User, target *persistence.User) error {
		target.Active = true
		return nil
	})
}

func (s *UserService) mutate(ctx context.Context, principal Principal, operation, userID string, apply func(admin persistence.User, target *persistence.User) error) (profile UserProfile, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	userID = strings.TrimSpace(userID)
	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "user update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	var admin persistence.User
	admin, err = s.requireUserAdmin(ctx, principal)
	if err != nil {
		return
	}

	var target persistence.User
	target, err = s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if err = apply(admin, &target); err != nil {
		return
	}
	target.UpdatedAt = s.now()
	if err = s.users.UpdateUser(ctx, target); err != nil {
		err = mapRepoError(err)
		return
	}
	profile = profileFromRecord(target)
	return
}
