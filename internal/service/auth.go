package service

import (
	"context"
	"strings"

	"capture-service/internal/domain/user"
	"capture-service/internal/repository"
	apperrors "capture-service/pkg/errors"
	"capture-service/pkg/password"
	"capture-service/pkg/validator"

	"go.uber.org/zap"
)

// TokenIssuer mints access tokens for authenticated users. The jwt-backed
// implementation lives in internal/auth.
type TokenIssuer interface {
	Issue(u *user.User) (string, error)
}

// AuthService handles signup and login.
type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	logger *zap.Logger
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

func (s *AuthService) Signup(ctx context.Context, email, fullName, plainPassword string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validator.Email(email); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validator.Password(plainPassword); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	hashed, err := password.Hash(plainPassword)
	if err != nil {
		return nil, apperrors.InternalServer("failed to hash password", err)
	}

	return s.users.Create(ctx, user.CreateUserInput{
		Email:          email,
		FullName:       strings.TrimSpace(fullName),
		HashedPassword: hashed,
	})
}

// Login verifies credentials and issues a token. Lookup and verification
// failures collapse into the same invalid-credentials error so responses do
// not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (string, *user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, apperrors.InvalidCredentials()
	}

	if !password.Verify(plainPassword, u.HashedPassword) {
		return "", nil, apperrors.InvalidCredentials()
	}

	if !u.IsActive {
		return "", nil, apperrors.Forbidden("account is deactivated")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", nil, apperrors.InternalServer("failed to issue token", err)
	}

	return token, u, nil
}
