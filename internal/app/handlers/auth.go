package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/service"
)

// RegisterRequest запрос регистрации
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Username  string  `json:"username" validate:"required,min=3,max=100"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
}

// LoginRequest login - email или username
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse ответ с JWT-токеном
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(logger, w, err)
			return
		}

		user, err := authService.Register(r.Context(), service.RegisterInput{
			Email:     req.Email,
			Username:  req.Username,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, user)
	}
}

// LoginHandler – HTTP-обработчик для аутентификации
func LoginHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LoginHandler"
		logger := log.With(slog.String("op", op))

		var req LoginRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(logger, w, err)
			return
		}

		token, user, err := authService.Login(r.Context(), req.Login, req.Password)
		if err != nil {
			logger.Warn("login failed", slog.Any("error", err))
			writeError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
	}
}

func MeHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := currentUser(r)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, user)
	}
}
