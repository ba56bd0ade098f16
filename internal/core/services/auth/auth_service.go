package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrInvalidSession     = errors.New("invalid session")
)

const (
	maxLoginAttempts  = 5
	defaultSessionTTL = 24 * time.Hour
)

// Session is an authenticated bearer token.
type Session struct {
	UserID    string
	Role      domain.Role
	ExpiresAt time.Time
}

// AuthService implements ports.AuthService with bcrypt passwords and
// in-memory bearer sessions.
type AuthService struct {
	repo          ports.UserRepository
	mu            sync.RWMutex
	sessions      map[string]Session
	loginAttempts map[string]int
	sessionTTL    time.Duration
	cost          int
	now           func() time.Time
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithSessionTTL sets how long a token stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *AuthService) { s.sessionTTL = ttl }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *AuthService) { s.cost = cost }
}

// NewAuthService creates a new authentication service instance.
func NewAuthService(repo ports.UserRepository, opts ...Option) *AuthService {
	s := &AuthService{
		repo:          repo,
		sessions:      make(map[string]Session),
		loginAttempts: make(map[string]int),
		sessionTTL:    defaultSessionTTL,
		cost:          bcrypt.DefaultCost,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login validates user credentials and returns a session token.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	if err := s.checkRateLimit(creds.Username); err != nil {
		return "", err
	}

	user, err := s.repo.GetByUsername(ctx, creds.Username)
	if err != nil {
		s.incrementAttempts(creds.Username)
		return "", ErrInvalidCredentials // no user enumeration
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.incrementAttempts(creds.Username)
		return "", ErrInvalidCredentials
	}

	s.resetAttempts(creds.Username)

	user.LastLogin = s.now().UTC()
	if err := s.repo.Save(ctx, *user); err != nil {
		slog.Warn("last login update failed", "user", user.Username, "error", err)
	}

	return s.createSession(user), nil
}

// ValidateToken verifies a session token and returns the associated user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.now().After(session.ExpiresAt) {
		_ = s.Logout(ctx, token)
		return nil, ErrTokenExpired
	}

	user, err := s.repo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	return user, nil
}

// Logout invalidates a session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// CreateUser provisions a new user with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, user domain.User, password string) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: empty password", domain.ErrInvalidArguments)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.CreatedAt = s.now().UTC()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	return s.repo.Save(ctx, user)
}

// EnsureUser creates username with role unless it already exists.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string, role domain.Role) error {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil
	}
	if err := s.CreateUser(ctx, domain.User{Username: username, Role: role}, password); err != nil {
		return err
	}
	slog.Info("user provisioned", "user", username, "role", role)
	return nil
}

// PurgeExpired drops sessions past their expiry and returns how many.
func (s *AuthService) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

func (s *AuthService) checkRateLimit(username string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loginAttempts[username] >= maxLoginAttempts {
		return ErrRateLimitExceeded
	}
	return nil
}

func (s *AuthService) incrementAttempts(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginAttempts[username]++
}

func (s *AuthService) resetAttempts(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loginAttempts, username)
}

func (s *AuthService) createSession(user *domain.User) string {
	token := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = Session{
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	return token
}

var _ ports.AuthService = (*AuthService)(nil)
