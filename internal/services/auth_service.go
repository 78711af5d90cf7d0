package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/repository"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of an issued access token.
const TokenTTL = 24 * time.Hour

type AuthService interface {
	Register(ctx context.Context, dealershipID uuid.UUID, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	hmacSecret []byte
}

func NewAuthService(userRepo repository.UserRepository, secret []byte) AuthService {
	return &authService{
		userRepo:   userRepo,
		hmacSecret: secret,
	}
}

var _ AuthService = (*authService)(nil)

func (s *authService) Register(ctx context.Context, dealershipID uuid.UUID, email, password, name string) (*models.User, error) {
	ph, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		DealershipID: dealershipID,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(ph),
		Name:         name,
		Role:         "staff",
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	if err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)), &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return "", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           user.ID.String(),
		"dealership_id": user.DealershipID.String(),
		"role":          user.Role,
		"exp":           time.Now().Add(TokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, &user, nil
}
