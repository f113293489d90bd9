package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ferreirogomes/nftmarket/middleware/ratelimit"
	"github.com/ferreirogomes/nftmarket/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Logger *slog.Logger
	// Limiter limita os clientes quando definido.
	Limiter *ratelimit.Store
	// TrustXFF usa o X-Forwarded-For como chave do limiter; só vale atrás de um proxy confiável.
	TrustXFF bool
}

// NewRouter monta todos os endpoints do marketplace.
func NewRouter(svc *services.MarketplaceService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	assets := NewAssetHandler(svc)
	sales := NewSaleHandler(svc)
	market := NewMarketHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if opts.Limiter != nil {
		r.Use(ratelimit.Middleware(opts.Limiter, opts.TrustXFF))
	}

	r.Route("/assets", func(r chi.Router) {
		r.Post("/", assets.CreateAsset)
		r.Get("/", assets.ListAssets)
		r.Get("/{assetId}", assets.GetAssetByID)
	})
	r.Post("/tokenize/{assetId}", assets.Tokenize)
	r.Post("/buy/{assetId}", assets.Buy)

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", sales.ListSales)
		r.Get("/buyer/{address}", sales.SalesByBuyer)
	})

	r.Get("/search", market.Search)
	r.Get("/health", market.Health)
	r.Post("/deploy-contract", market.DeployContract)
	r.Get("/gas-price", market.GasPrice)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Route not found", Tip: "See GET /health for the endpoint list"})
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("requisição",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
