package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"

	"leetclash/internal/common"
	"leetclash/internal/common/security"
	"leetclash/internal/domain/model"
	"leetclash/internal/domain/repository"
)

const guestNameAttempts = 5

type AuthService struct {
	userRepo repository.UserRepository
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	LoginField string `json:"login_field"` // Can be username or email
	Password   string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", common.ErrValidation)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser, // Default role
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo might return common.ErrConflict
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.LoginField == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	// Try finding by email first, then by username
	user, err := s.userRepo.FindByEmail(ctx, req.LoginField)
	if errors.Is(err, common.ErrNotFound) {
		user, err = s.userRepo.FindByUsername(ctx, req.LoginField)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.HashedPassword == "" || !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}
	return s.issue(user)
}

// Guest registers a throwaway account under a random two-word name so the
// player can join duels and appear on the leaderboard without signing up.
func (s *AuthService) Guest(ctx context.Context) (*AuthResponse, error) {
	var lastErr error
	for attempt := 0; attempt < guestNameAttempts; attempt++ {
		name := petname.Generate(2, "-")
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d", name, attempt+1)
		}
		user := &model.User{
			ID:       uuid.NewString(),
			Username: name,
			Role:     model.RoleGuest,
		}
		err := s.userRepo.Create(ctx, user)
		if err == nil {
			return s.issue(user)
		}
		if !errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("failed to create guest: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("could not find a free guest name: %w", lastErr)
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{User: user, Token: token}, nil
}
