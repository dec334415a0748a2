package userService

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"spreadsheet-service/internal/model/user"
	"spreadsheet-service/internal/repository"
	"spreadsheet-service/pkg/apperr"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type UserService struct {
	users repository.UserStore
}

func New(users repository.UserStore) *UserService {
	return &UserService{users: users}
}

// Register creates a user with a bcrypt-hashed password. Username and
// email must be unused.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, apperr.InvalidArgument("username, email and password are required")
	}
	if !emailRegex.MatchString(email) {
		return nil, apperr.InvalidArgument("invalid email format")
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, apperr.InvalidArgument("email already exists")
	}

	existing, err = s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, apperr.InvalidArgument("username already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := s.users.CreateUser(ctx, username, email, string(hashedPassword))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Authenticate checks a username/password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint32) (*user.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}
