package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
)

var validate = newValidator()

// имена полей в ошибках валидации берутся из json-тегов
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError пишет ошибку бизнес-логики как есть, остальные - как 500 без подробностей
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		apperr.Write(w, appErr)
		return
	}
	log.Error("internal error", slog.Any("error", err))
	apperr.Write(w, apperr.Internal())
}

// decodeAndValidate разбирает тело запроса и проверяет теги validate
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body", map[string]any{"reason": err.Error()})
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]apperr.FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
			}
			return apperr.Fields(fields)
		}
		return apperr.Validation(err.Error(), nil)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// idParam читает положительный целый параметр пути
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Fields([]apperr.FieldError{{Field: name, Message: "must be a positive integer"}})
	}
	return id, nil
}

// currentUser пользователь, которого положил JWT middleware
func currentUser(r *http.Request) (*models.User, error) {
	user, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		return nil, apperr.Auth("missing token")
	}
	return user, nil
}

// intQuery читает необязательный целый параметр запроса в диапазоне [lo, hi]
func intQuery(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, apperr.Fields([]apperr.FieldError{{
			Field:   name,
			Message: fmt.Sprintf("must be an integer between %d and %d", lo, hi),
		}})
	}
	return v, nil
}
