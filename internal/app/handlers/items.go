package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
	"github.com/linemk/parfume-shop/internal/service"
)

type ItemCreateRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=200"`
	Description   *string         `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Brand         *string         `json:"brand" validate:"omitempty,max=100"`
	VolumeML      *int            `json:"volume_ml" validate:"omitempty,gt=0"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	ImageURL      *string         `json:"image_url" validate:"omitempty,max=500"`
	CategoryID    *int64          `json:"category_id" validate:"omitempty,gt=0"`
}

type ItemUpdateRequest struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Brand         *string          `json:"brand" validate:"omitempty,max=100"`
	VolumeML      *int             `json:"volume_ml" validate:"omitempty,gt=0"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
	ImageURL      *string          `json:"image_url" validate:"omitempty,max=500"`
	CategoryID    *int64           `json:"category_id" validate:"omitempty,gt=0"`
	IsActive      *bool            `json:"is_active"`
}

// parseItemFilter разбирает фильтры каталога из query
func parseItemFilter(r *http.Request) (models.ItemFilter, error) {
	q := r.URL.Query()
	var filter models.ItemFilter
	var errs []apperr.FieldError

	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, apperr.FieldError{Field: "category_id", Message: "must be an integer"})
		} else {
			filter.CategoryID = &id
		}
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"min_price", &filter.MinPrice}, {"max_price", &filter.MaxPrice}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			errs = append(errs, apperr.FieldError{Field: p.name, Message: "must be a non-negative number"})
			continue
		}
		*p.dst = &d
	}
	if raw := q.Get("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, apperr.FieldError{Field: "in_stock", Message: "must be a boolean"})
		} else {
			filter.InStock = &v
		}
	}
	filter.Search = strings.TrimSpace(q.Get("search"))

	page, err := intQuery(r, "page", 1, 1, 1<<30)
	if err != nil {
		errs = append(errs, apperr.FieldError{Field: "page", Message: "must be a positive integer"})
	}
	pageSize, err := intQuery(r, "page_size", service.DefaultPageSize, 1, service.MaxPageSize)
	if err != nil {
		errs = append(errs, apperr.FieldError{Field: "page_size", Message: "must be between 1 and 100"})
	}
	filter.Page, filter.PageSize = page, pageSize

	if len(errs) > 0 {
		return filter, apperr.Fields(errs)
	}
	return filter, nil
}

func ListItemsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListItemsHandler"
		logger := log.With(slog.String("op", op))

		filter, err := parseItemFilter(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		page, err := catalog.ListItems(r.Context(), filter)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, page)
	}
}

func GetItemHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetItemHandler"
		logger := log.With(slog.String("op", op))

		id, err := idParam(r, "id")
		if err != nil {
			writeError(logger, w, err)
			return
		}
		item, err := catalog.GetItem(r.Context(), id)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, item)
	}
}

func CreateItemHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateItemHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		var req ItemCreateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(logger, w, err)
			return
		}

		item, err := catalog.CreateItem(r.Context(), user, service.ItemInput{
			Name:          req.Name,
			Description:   req.Description,
			Price:         req.Price,
			Brand:         req.Brand,
			VolumeML:      req.VolumeML,
			StockQuantity: req.StockQuantity,
			ImageURL:      req.ImageURL,
			CategoryID:    req.CategoryID,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, item)
	}
}

func UpdateItemHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateItemHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			writeError(logger, w, err)
			return
		}
		var req ItemUpdateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(logger, w, err)
			return
		}

		item, err := catalog.UpdateItem(r.Context(), user, id, service.ItemPatch{
			Name:          req.Name,
			Description:   req.Description,
			Price:         req.Price,
			Brand:         req.Brand,
			VolumeML:      req.VolumeML,
			StockQuantity: req.StockQuantity,
			ImageURL:      req.ImageURL,
			CategoryID:    req.CategoryID,
			IsActive:      req.IsActive,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, item)
	}
}
