package service

import (
	"context"
	"errors"
	"time"

	"parkly/internal/domain"
	"parkly/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserService handles registration, login sessions and profile management.
// Emails listed in the admins config are granted the admin role on
// registration.
type UserService struct {
	store      domain.Store
	sessions   domain.SessionRepository
	logger     *zerolog.Logger
	adminsMap  map[string]bool
	sessionTTL time.Duration
}

func NewUserService(store domain.Store, sessions domain.SessionRepository, admins []string, sessionTTL time.Duration, logger *zerolog.Logger) *UserService {
	adminsMap := make(map[string]bool, len(admins))
	for _, email := range admins {
		adminsMap[email] = true
	}

	return &UserService{
		store:      store,
		sessions:   sessions,
		logger:     logger,
		adminsMap:  adminsMap,
		sessionTTL: sessionTTL,
	}
}

func (s *UserService) IsAdmin(email string) bool {
	return s.adminsMap[email]
}

func (s *UserService) Register(ctx context.Context, name, email, password, address string, pincode int) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := models.RoleUser
	if s.IsAdmin(email) {
		role = models.RoleAdmin
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Address:      address,
		Pincode:      pincode,
		Role:         role,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("email", email).Str("role", role).Msg("user registered")
	return user, nil
}

// Login verifies credentials and opens a session; the returned token
// identifies the caller on subsequent requests.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		// Do not reveal whether the email exists.
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info().Str("email", email).Msg("user logged in")
	return session, nil
}

func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

func (s *UserService) GetProfile(ctx context.Context, email string) (*models.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

func (s *UserService) UpdateProfile(ctx context.Context, email, name, address string, pincode int) error {
	return s.store.UpdateUserProfile(ctx, email, name, address, pincode)
}

// SearchUsers returns non-admin users matching the email/name substring;
// admin-only at the API boundary.
func (s *UserService) SearchUsers(ctx context.Context, search string) ([]*models.User, error) {
	return s.store.SearchUsers(ctx, search)
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	return s.store.DeleteUser(ctx, id)
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}
