package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var errInvalidCredentials = domain.NewUnauthorizedError("invalid username or password")

// RegisterRequest is the request DTO for creating a customer account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the request DTO for exchanging credentials for tokens.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateUserRequest is the admin request DTO for editing an account.
type UpdateUserRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
	Role  string `json:"role"`
}

// UserDTO is the API response representation of an account.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	User   UserDTO         `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// UserService implements account and authentication use cases.
type UserService struct {
	repo       userDomain.UserRepository
	jwt        *auth.JWTManager
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo userDomain.UserRepository, jwtManager *auth.JWTManager, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, jwt: jwtManager, bcryptCost: bcrypt.DefaultCost, logger: logger}
}

// Register creates a customer account. Staff roles are granted by an admin afterwards.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*UserDTO, error) {
	if len(req.Password) < minPasswordLength {
		return nil, domain.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := userDomain.NewUser(req.Username, auth.RoleCustomer, req.Email, string(hash))
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID().String()),
		zap.String("username", user.Username()),
	)
	result := toUserDTO(user)
	return &result, nil
}

// Login verifies credentials and issues a token pair. Unknown users, wrong passwords and
// deactivated accounts all fail the same way.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash()), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID(), user.Role())
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID().String()))
	return &LoginResponse{User: toUserDTO(user), Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair. The account's current role is used,
// so role changes take effect on the next refresh.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, domain.NewUnauthorizedError("invalid refresh token")
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive() {
		return nil, domain.NewUnauthorizedError("invalid refresh token")
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID(), user.Role())
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return tokens, nil
}

// GetUser returns an account by ID.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := toUserDTO(user)
	return &result, nil
}

// ListUsers returns a paginated list of accounts (admin).
func (s *UserService) ListUsers(ctx context.Context, page, limit int) ([]UserDTO, int64, error) {
	users, total, err := s.repo.FindMany(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	return dtos, total, nil
}

// UpdateUser changes an account's email and/or role (admin).
func (s *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, req UpdateUserRequest) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := user.Update(req.Email, auth.Role(req.Role)); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", zap.String("user_id", userID.String()))
	result := toUserDTO(user)
	return &result, nil
}

// DeactivateUser soft-deletes an account (admin). The user's ledger is kept.
func (s *UserService) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.Deactivate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info("user deactivated", zap.String("user_id", userID.String()))
	return nil
}

func toUserDTO(u *userDomain.User) UserDTO {
	return UserDTO{
		ID:        u.ID(),
		Username:  u.Username(),
		Email:     u.Email(),
		Role:      string(u.Role()),
		Active:    u.IsActive(),
		CreatedAt: u.CreatedAt(),
		UpdatedAt: u.UpdatedAt(),
	}
}
