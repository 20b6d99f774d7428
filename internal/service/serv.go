package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/parfume-shop/internal/domain/models"
	security "github.com/linemk/parfume-shop/internal/jwt-new"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
	"github.com/linemk/parfume-shop/internal/storage"
)

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	secret   string
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (string, *models.User, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName *string
	LastName  *string
}

// Register создаёт пользователя с ролью user; email и username должны быть свободны.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "service.AuthService.Register"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("username", in.Username),
	)

	if msg := checkPasswordStrength(in.Password); msg != "" {
		return nil, apperr.Fields([]apperr.FieldError{{Field: "password", Message: msg}})
	}

	if _, err := a.userRepo.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Validation("email already registered", map[string]any{"field": "email"})
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		logger.Error("failed to check email", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to check email: %w", op, err)
	}

	if _, err := a.userRepo.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, apperr.Validation("username already taken", map[string]any{"field": "username"})
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		logger.Error("failed to check username", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to check username: %w", op, err)
	}

	// bcrypt сам добавляет соль
	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Email:     in.Email,
		Username:  in.Username,
		PassHash:  passHash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      models.RoleUser,
		IsActive:  true,
	})
	if err != nil {
		// гонка двух регистраций с одинаковыми данными
		if errors.Is(err, storage.ErrUserExists) {
			return nil, apperr.Validation("email or username already registered", nil)
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID))
	return user, nil
}

// Login проверяет пароль и выдаёт access-токен.
// login с "@" ищется как email, иначе как username с запасным поиском по email.
func (a *AuthService) Login(ctx context.Context, login, password string) (string, *models.User, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("login", login),
	)
	logger.Info("checking user")

	user, err := a.findByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return "", nil, apperr.Auth("incorrect login or password")
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", nil, apperr.Auth("incorrect login or password")
	}
	if !user.IsActive {
		logger.Warn("inactive user tried to log in")
		return "", nil, apperr.Auth("user is inactive")
	}

	token, err := security.NewToken(user, a.secret, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, user, nil
}

func (a *AuthService) findByLogin(ctx context.Context, login string) (*models.User, error) {
	if strings.Contains(login, "@") {
		return a.userRepo.GetUserByEmail(ctx, login)
	}
	user, err := a.userRepo.GetUserByUsername(ctx, login)
	if errors.Is(err, storage.ErrUserNotFound) {
		return a.userRepo.GetUserByEmail(ctx, login)
	}
	return user, err
}

// Authenticate возвращает активного пользователя по access-токену.
// Используется и в HTTP middleware, и при подключении к чату.
func (a *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "service.AuthService.Authenticate"

	if token == "" {
		return nil, apperr.Auth("missing token")
	}
	userID, err := security.ParseToken(token, a.secret)
	if err != nil {
		return nil, apperr.Auth("could not validate credentials")
	}

	user, err := a.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.Auth("user not found")
		}
		a.log.Error("failed to get user", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	if !user.IsActive {
		return nil, apperr.Auth("user is inactive")
	}
	return user, nil
}

func checkPasswordStrength(password string) string {
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "password must contain an uppercase letter, a lowercase letter and a digit"
	}
	return ""
}
