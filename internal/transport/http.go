package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vasiliy-maslov/basket-service/internal/account"
	"github.com/vasiliy-maslov/basket-service/internal/basket"
	"github.com/vasiliy-maslov/basket-service/internal/catalog"
	"github.com/vasiliy-maslov/basket-service/internal/handler"
	"github.com/vasiliy-maslov/basket-service/internal/history"
	"github.com/vasiliy-maslov/basket-service/internal/order"
)

func NewRouter(pool *pgxpool.Pool, catalogCacheTTL time.Duration) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	resolver := catalog.NewPostgresResolver(pool)
	cached := catalog.NewCachingResolver(resolver, catalogCacheTTL)

	baskets := basket.NewRepository()
	accounts := account.NewStore()

	// Display paths read prices through the cache; checkout always hits the
	// catalog directly so totals use current prices.
	basketSvc := basket.NewService(pool, baskets, cached)
	orderSvc := order.NewService(pool, baskets, resolver, accounts)
	historyReader := history.NewReader(pool, baskets, cached)

	h := handler.NewBasketHandler(basketSvc, orderSvc, historyReader)

	r.Route("/basket", func(r chi.Router) {
		r.Get("/", h.GetBasket)
		r.Post("/items", h.AddItem)
		r.Delete("/items", h.DecreaseItem)
		r.Post("/checkout", h.Checkout)
		r.Post("/clear", h.Clear)
	})
	r.Get("/history", h.GetHistory)
	r.Get("/account/balance", h.GetBalance)

	return r
}
