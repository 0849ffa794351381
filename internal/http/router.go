package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "order-service"

type RouterConfig struct {
	Carts          *CartHandler
	Orders         *OrdersHandler
	Tokens         TokenParser
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Tokens))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Carts.GetCart)
				r.Delete("/", cfg.Carts.ClearCart)
				r.Post("/items", cfg.Carts.AddItem)
				r.Put("/items/{productId}", cfg.Carts.UpdateQuantity)
				r.Delete("/items/{productId}", cfg.Carts.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", cfg.Orders.ListOrders)
				r.Post("/", cfg.Orders.CreateOrder)
				r.Get("/{id}", cfg.Orders.GetOrder)
				r.Post("/{id}/cancel", cfg.Orders.CancelOrder)
				r.With(RequireAdmin).Patch("/{id}/status", cfg.Orders.UpdateStatus)
				r.With(RequireAdmin).Patch("/{id}/payment", cfg.Orders.UpdatePaymentStatus)
			})

			r.With(RequireAdmin).Get("/admin/orders", cfg.Orders.ListAllOrders)
		})
	})

	return otelhttp.NewHandler(r, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
