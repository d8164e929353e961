// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/models"
	"github.com/gmatrix/gmatrix-backend/internal/utils"
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strong_password"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	// Check if user already exists
	var existingUser models.User
	if err := s.db.WithContext(ctx).Where("email = ? OR username = ?", req.Email, req.Username).First(&existingUser).Error; err == nil {
		if existingUser.Email == req.Email {
			return nil, errors.New("user with this email already exists")
		}
		return nil, errors.New("username already taken")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		UserType: models.UserTypeRegistered,
		Status:   models.UserStatusActive,
	}

	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issueTokens(user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid credentials")
		}
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		return nil, ErrPermissionDenied
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, errors.New("invalid credentials")
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	s.db.WithContext(ctx).Model(&user).Update("last_login_at", now)

	return s.issueTokens(&user)
}

// CreateGuest issues an anonymous identity. Guest votes count toward the
// aggregates but are never attributed a gamification profile.
func (s *AuthService) CreateGuest(ctx context.Context) (*AuthResponse, error) {
	suffix, err := utils.GenerateRandomString(10)
	if err != nil {
		return nil, fmt.Errorf("failed to generate guest identity: %w", err)
	}
	suffix = strings.ToLower(suffix)

	user := &models.User{
		Username: "guest-" + suffix,
		Email:    fmt.Sprintf("guest-%s@guest.invalid", suffix),
		UserType: models.UserTypeGuest,
		Status:   models.UserStatusActive,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create guest user: %w", err)
	}

	accessToken, err := utils.GenerateJWT(user.ID, user.Username, string(user.UserType), s.cfg.JWT.GuestTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate guest token: %w", err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.JWT.GuestTokenTTL * 3600,
	}, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	userIDStr, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		return nil, ErrPermissionDenied
	}

	return s.issueTokens(&user)
}

func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.Username, string(user.UserType), s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600,
	}, nil
}
