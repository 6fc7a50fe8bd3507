package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/session"
)

// UserStore exposes the account operations required by the auth service.
type UserStore interface {
	CreateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// PasswordHasher produces a storable hash of a password.
type PasswordHasher func(password string) (string, error)

const minPasswordLength = 6

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	batchPattern = regexp.MustCompile(`^[0-9]{4}$`)
)

// AuthService is the session manager: it authenticates users, issues and
// validates stateless session tokens, and handles self-registration.
type AuthService struct {
	users          UserStore
	tokens         *session.Manager
	denylist       session.Denylist
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users UserStore, tokens *session.Manager, denylist session.Denylist, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, tokens, denylist, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(users UserStore, tokens *session.Manager, denylist session.Denylist, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:          users,
		tokens:         tokens,
		denylist:       denylist,
		verifyPassword: VerifyPassword,
		hashPassword:   HashPassword,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

// WithPasswordFuncs overrides hashing, mainly so tests avoid argon2 cost.
func (s *AuthService) WithPasswordFuncs(hash PasswordHasher, verify PasswordVerifier) *AuthService {
	if hash != nil {
		s.hashPassword = hash
	}
	if verify != nil {
		s.verifyPassword = verify
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new session token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil || s.tokens == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var user persistence.User
	user, err = s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
			return
		}
		err = mapRepoError(err)
		return
	}

	if verifyErr := s.verifyPassword(user.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	if !user.Active {
		err = ErrAccountDisabled
		return
	}

	var token session.Token
	token, err = s.tokens.Issue(session.Identity{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.FullName,
	})
	if err != nil {
		return
	}

	result = AuthenticateResult{
		Session: Session{
			ID:        token.ID,
			UserID:    user.ID,
			Token:     token.Value,
			IssuedAt:  token.IssuedAt,
			ExpiresAt: token.ExpiresAt,
		},
		User: profileFromRecord(user),
	}
	return
}

// ValidateSession verifies a token's signature and expiry and returns its
// principal. It performs no storage lookups; only the optional denylist is consulted.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil || s.tokens == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	token = strings.TrimSpace(token)
	if token == "" {
		err = ErrSessionInvalid
		return
	}

	claims, parseErr := s.tokens.Parse(token)
	switch {
	case errors.Is(parseErr, session.ErrExpired):
		err = ErrSessionExpired
		return
	case parseErr != nil:
		err = fmt.Errorf("%w: %v", ErrSessionInvalid, parseErr)
		return
	}

	if s.denylist != nil {
		revoked, lookupErr := s.denylist.IsRevoked(ctx, claims.ID)
		if lookupErr != nil {
			err = fmt.Errorf("check session revocation: %w", lookupErr)
			return
		}
		if revoked {
			err = ErrSessionInvalid
			return
		}
	}

	principal = Principal{
		UserID:    claims.Subject,
		Role:      Role(claims.Role),
		Email:     claims.Email,
		Name:      claims.Name,
		SessionID: claims.ID,
	}
	return
}

// Invalidate revokes a token until its natural expiry. Tokens that are already
// expired, malformed or revoked make this a no-op.
func (s *AuthService) Invalidate(ctx context.Context, token string) error {
	if s == nil || s.tokens == nil {
		return fmt.Errorf("AuthService is nil")
	}

	logger := s.loggerWith(ctx, "Invalidate")

	claims, err := s.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		logger.DebugContext(ctx, "ignoring logout for unusable token", "error", err)
		return nil
	}
	if s.denylist == nil || claims.ExpiresAt == nil {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "session_id", claims.ID)
		return fmt.Errorf("revoke session: %w", err)
	}
	logger.With("user_id", claims.Subject, "session_id", claims.ID).InfoContext(ctx, "session revoked")
	return nil
}

// Register creates a self-service account. Administrator accounts cannot be
// self-registered.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (profile UserProfile, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	input = normalizeRegisterInput(input)
	logger := s.loggerWith(ctx, "Register", "email", input.Email, "role", input.Role)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", profile.ID).InfoContext(ctx, "user registered")
	}()

	if vErr := validateRegisterInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	profile, err = s.createUser(ctx, input)
	return
}

// BootstrapAdmin ensures an administrator account exists for email. It is
// used by operators at deploy time and never exposed over HTTP.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password, fullName string) (profile UserProfile, created bool, err error) {
	if s == nil || s.users == nil {
		return UserProfile{}, false, fmt.Errorf("AuthService is nil")
	}

	email = normalizeEmail(email)
	existing, lookupErr := s.users.GetUserByEmail(ctx, email)
	switch {
	case lookupErr == nil:
		if Role(existing.Role) != RoleAdmin {
			return UserProfile{}, false, fmt.Errorf("%w: %s is registered with role %s", ErrAlreadyExists, email, existing.Role)
		}
		return profileFromRecord(existing), false, nil
	case !errors.Is(lookupErr, persistence.ErrNotFound):
		return UserProfile{}, false, mapRepoError(lookupErr)
	}

	input := RegisterInput{Email: email, Password: password, FullName: strings.TrimSpace(fullName), Role: RoleAdmin}
	if input.FullName == "" {
		input.FullName = "Administrator"
	}
	vErr := validateRegisterInput(input)
	delete(vErr.FieldErrors, "role")
	if vErr.HasErrors() {
		return UserProfile{}, false, vErr
	}

	profile, err = s.createUser(ctx, input)
	if err != nil {
		return UserProfile{}, false, err
	}
	s.loggerWith(ctx, "BootstrapAdmin", "user_id", profile.ID).InfoContext(ctx, "administrator created")
	return profile, true, nil
}

// Me returns the current profile of the principal.
func (s *AuthService) Me(ctx context.Context, principal Principal) (UserProfile, error) {
	if s == nil || s.users == nil {
		return UserProfile{}, fmt.Errorf("AuthService is nil")
	}
	user, err := loadSubject(ctx, s.users, principal)
	if err != nil {
		return UserProfile{}, err
	}
	return profileFromRecord(user), nil
}

func (s *AuthService) createUser(ctx context.Context, input RegisterInput) (UserProfile, error) {
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return UserProfile{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	record := persistence.User{
		ID:             s.idGenerator(),
		Email:          input.Email,
		FullName:       input.FullName,
		Phone:          input.Phone,
		Role:           string(input.Role),
		DepartmentCode: input.Department.Code,
		DepartmentName: input.Department.Name,
		Batch:          input.Department.Batch,
		Active:         true,
		PasswordHash:   hash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.CreateUser(ctx, record); err != nil {
		return UserProfile{}, mapRepoError(err)
	}
	return profileFromRecord(record), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRegisterInput(input RegisterInput) RegisterInput {
	input.Email = normalizeEmail(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Department.Code = strings.ToUpper(strings.TrimSpace(input.Department.Code))
	input.Department.Name = strings.TrimSpace(input.Department.Name)
	input.Department.Batch = strings.TrimSpace(input.Department.Batch)
	if input.Role == "" {
		input.Role = RoleStudent
	}
	return input
}

func validateRegisterInput(input RegisterInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		vErr.add("email", "email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if input.FullName == "" {
		vErr.add("fullName", "full name is required")
	}
	if input.Phone != "" && !phonePattern.MatchString(input.Phone) {
		vErr.add("phone", "phone must be exactly 10 digits")
	}
	if input.Department.Batch != "" && !batchPattern.MatchString(input.Department.Batch) {
		vErr.add("department.batch", "batch must be a 4-digit year")
	}
	switch input.Role {
	case RoleStudent, RoleFaculty, RoleStaff:
	case RoleAdmin:
		vErr.add("role", "administrator accounts cannot be self-registered")
	default:
		vErr.add("role", "role is invalid")
	}
	return vErr
}
