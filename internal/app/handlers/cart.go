package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/parfume-shop/internal/service"
)

type CartAddRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity *int  `json:"quantity" validate:"omitempty,gte=1"`
}

type CartUpdateRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

func GetCartHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		view, err := cart.GetCart(r.Context(), user.ID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, view)
	}
}

func AddToCartHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddToCartHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		var req CartAddRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(logger, w, err)
			return
		}
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}

		line, err := cart.AddToCart(r.Context(), user.ID, req.ItemID, quantity)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, line)
	}
}

func UpdateCartLineHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCartLineHandler"
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
		var req CartUpdateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(logger, w, err)
			return
		}

		line, err := cart.UpdateCartLine(r.Context(), user.ID, id, req.Quantity)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, line)
	}
}

func RemoveCartLineHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartLineHandler"
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
		if err := cart.RemoveCartLine(r.Context(), user.ID, id); err != nil {
			writeError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
