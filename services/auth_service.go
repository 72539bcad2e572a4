package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

const minPasswordLength = 8

// AuthService handles signup and login. The wallet account is created in
// the same transaction as the user row, so every user has a zero-balance
// wallet from the moment they exist.
type AuthService struct {
	tx          TxManager
	userRepo    repositories.UserRepository
	accountRepo repositories.AccountRepository
	logger      *slog.Logger

	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(
	tx TxManager,
	userRepo repositories.UserRepository,
	accountRepo repositories.AccountRepository,
	logger *slog.Logger,
	jwtSecret string,
) *AuthService {
	return &AuthService{
		tx:          tx,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		logger:      logger,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    24 * time.Hour,
	}
}

// Claims is the JWT payload: the account id and the role the middleware
// forwards to handlers.
type Claims struct {
	UserID int             `json:"user_id"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Register creates the user and their wallet account atomically.
func (s *AuthService) Register(ctx context.Context, nickname, email, password string, role models.UserRole) (*models.User, error) {
	if nickname == "" {
		return nil, ErrValidationFailed
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrValidationFailed
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	switch role {
	case models.RolePlayer, models.RoleCreator, models.RoleOrganizer:
	case "":
		role = models.RolePlayer
	default:
		return nil, ErrValidationFailed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Nickname:     nickname,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
	}

	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			if errors.Is(err, repositories.ErrUserEmailConflict) || errors.Is(err, repositories.ErrUserNicknameConflict) {
				return ErrValidationFailed
			}
			return err
		}
		return s.accountRepo.Create(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.Int("user_id", user.ID), slog.String("role", string(role)))
	return user, nil
}

// Login verifies the password and issues a signed token carrying the role
// claim.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
