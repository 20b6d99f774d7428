package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/lib/apperr"
	"github.com/linemk/parfume-shop/internal/service"
)

type OrderCreateRequest struct {
	ShippingAddress string  `json:"shipping_address" validate:"required,min=5,max=500"`
	Notes           *string `json:"notes" validate:"omitempty,max=1000"`
}

type OrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

func CreateOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		var req OrderCreateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(logger, w, err)
			return
		}

		order, err := orders.CreateOrder(r.Context(), user, req.ShippingAddress, req.Notes)
		if err != nil {
			logger.Warn("checkout failed", slog.Int64("userID", user.ID), slog.Any("error", err))
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, order)
	}
}

func ListOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		list, err := orders.ListOrders(r.Context(), user.ID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		if list == nil {
			list = []*models.Order{}
		}
		writeJSON(logger, w, http.StatusOK, list)
	}
}

func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
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
		order, err := orders.GetOrder(r.Context(), id, user)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

func UpdateOrderStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
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
		var req OrderStatusRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(logger, w, err)
			return
		}

		order, err := orders.UpdateStatus(r.Context(), id, req.Status, user)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

// SellerOrdersHandler заказы, в которых есть товары продавца; ?status= фильтрует по статусу
func SellerOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SellerOrdersHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		var status *models.OrderStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			s := models.OrderStatus(raw)
			if !s.Valid() {
				writeError(logger, w, apperr.Fields([]apperr.FieldError{{Field: "status", Message: "unknown order status"}}))
				return
			}
			status = &s
		}

		list, err := orders.GetOrdersForSeller(r.Context(), user, status)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		if list == nil {
			list = []*models.Order{}
		}
		writeJSON(logger, w, http.StatusOK, list)
	}
}
