package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linemk/parfume-shop/internal/app/handlers"
	"github.com/linemk/parfume-shop/internal/chat"
	"github.com/linemk/parfume-shop/internal/domain/models"
	"github.com/linemk/parfume-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/parfume-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/parfume-shop/internal/service"
)

// Services зависимости HTTP-слоя
type Services struct {
	Auth             service.AuthServiceInterface
	Catalog          service.CatalogService
	Cart             service.CartService
	Orders           service.OrderService
	Chat             *chat.Hub
	ChatWriteTimeout time.Duration
}

func NewRouter(log *slog.Logger, svc Services) http.Handler {
	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/health", handlers.HealthHandler(log))

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", handlers.RegisterHandler(log, svc.Auth))
		r.Post("/auth/login", handlers.LoginHandler(log, svc.Auth))

		r.Get("/items", handlers.ListItemsHandler(log, svc.Catalog))
		r.Get("/items/{id}", handlers.GetItemHandler(log, svc.Catalog))

		// токен передаётся в query, проверка внутри обработчика
		r.Get("/ws/chat/{item_id}", handlers.ChatWSHandler(log, svc.Auth, svc.Chat, svc.ChatWriteTimeout))

		r.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.NewJWTMiddleware(svc.Auth))

			r.Get("/auth/me", handlers.MeHandler(log))

			r.Get("/cart", handlers.GetCartHandler(log, svc.Cart))
			r.Post("/cart", handlers.AddToCartHandler(log, svc.Cart))
			r.Put("/cart/{id}", handlers.UpdateCartLineHandler(log, svc.Cart))
			r.Delete("/cart/{id}", handlers.RemoveCartLineHandler(log, svc.Cart))

			r.Post("/orders", handlers.CreateOrderHandler(log, svc.Orders))
			r.Get("/orders", handlers.ListOrdersHandler(log, svc.Orders))
			r.Get("/orders/{id}", handlers.GetOrderHandler(log, svc.Orders))

			r.Get("/chat/{item_id}/messages", handlers.ChatHistoryHandler(log, svc.Chat))
			r.Post("/chat/{item_id}/read", handlers.MarkReadHandler(log, svc.Chat))

			r.Group(func(r chi.Router) {
				r.Use(jwtmiddleware.RequireRole(models.RoleSeller, models.RoleAdmin))

				r.Post("/items", handlers.CreateItemHandler(log, svc.Catalog))
				r.Put("/items/{id}", handlers.UpdateItemHandler(log, svc.Catalog))
				r.Put("/orders/{id}/status", handlers.UpdateOrderStatusHandler(log, svc.Orders))
				r.Get("/orders/seller/orders", handlers.SellerOrdersHandler(log, svc.Orders))
			})
		})
	})

	return router
}
