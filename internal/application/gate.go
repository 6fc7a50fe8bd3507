package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/facility-booking/internal/authz"
	"github.com/example/facility-booking/internal/persistence"
)

type userReader interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// loadSubject fetches the current user record behind principal so that role,
// capability and deactivation changes apply immediately, not at token expiry.
func loadSubject(ctx context.Context, users userReader, principal Principal) (persistence.User, error) {
	if principal.UserID == "" {
		return persistence.User{}, ErrSessionInvalid
	}
	user, err := users.GetUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.User{}, ErrSessionInvalid
		}
		return persistence.User{}, mapRepoError(err)
	}
	return user, nil
}

func authorize(req authz.Request) error {
	decision := authz.Authorize(req)
	if decision.Allowed {
		return nil
	}
	if decision.Code == authz.CodeResourceUnavailable {
		return fmt.Errorf("%w: %s", ErrResourceUnavailable, decision.Reason)
	}
	return &DeniedError{Code: decision.Code, Reason: decision.Reason}
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrBusy):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	default:
		return err
	}
}
