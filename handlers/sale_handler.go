package handlers

import (
	"net/http"
	"strconv"

	"github.com/ferreirogomes/nftmarket/models"
	"github.com/ferreirogomes/nftmarket/services"

	"github.com/go-chi/chi/v5"
)

// SaleHandler atende o registro de vendas.
type SaleHandler struct {
	Service *services.MarketplaceService
}

func NewSaleHandler(s *services.MarketplaceService) *SaleHandler {
	return &SaleHandler{Service: s}
}

// ListSales retorna as vendas recentes, mais novas primeiro.
// GET /sales?buyer=&limit=
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := services.DefaultSalesLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, models.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	list := h.Service.ListSales(q.Get("buyer"), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"sales":        list.Sales,
		"totalSales":   list.TotalSales,
		"totalRevenue": revenueString(list.TotalRevenue, h.Service.Currency()),
	})
}

// SalesByBuyer retorna todas as compras feitas por um endereço.
// GET /sales/buyer/{address}
func (h *SaleHandler) SalesByBuyer(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	res := h.Service.SalesByBuyer(address)

	writeJSON(w, http.StatusOK, map[string]any{
		"buyer":      address,
		"sales":      res.Sales,
		"buyerStats": res.Stats,
	})
}
