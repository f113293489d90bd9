package handlers

import (
	"net/http"
	"strings"

	"github.com/ferreirogomes/nftmarket/models"
	"github.com/ferreirogomes/nftmarket/services"

	"github.com/shopspring/decimal"
)

// MarketHandler atende busca, health e operações do contrato.
type MarketHandler struct {
	Service *services.MarketplaceService
}

func NewMarketHandler(s *services.MarketplaceService) *MarketHandler {
	return &MarketHandler{Service: s}
}

var endpointIndex = map[string]string{
	"createAsset":    "POST /assets",
	"listAssets":     "GET /assets",
	"getAsset":       "GET /assets/:assetId",
	"tokenize":       "POST /tokenize/:assetId",
	"buy":            "POST /buy/:assetId",
	"sales":          "GET /sales",
	"salesByBuyer":   "GET /sales/buyer/:address",
	"search":         "GET /search",
	"deployContract": "POST /deploy-contract",
	"gasPrice":       "GET /gas-price",
	"health":         "GET /health",
}

// Search encontra ativos por texto, faixa de preço e status.
// GET /search?q=&priceMin=&priceMax=&status=
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	priceMin, err := parsePrice(q.Get("priceMin"), "priceMin")
	if err != nil {
		writeError(w, r, err)
		return
	}
	priceMax, err := parsePrice(q.Get("priceMax"), "priceMax")
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := services.SearchQuery{
		Q:        q.Get("q"),
		PriceMin: priceMin,
		PriceMax: priceMax,
		Status:   q.Get("status"),
	}
	results := h.Service.Search(query)

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
		"query": map[string]any{
			"q":        query.Q,
			"priceMin": priceMin,
			"priceMax": priceMax,
			"status":   query.Status,
		},
	})
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, models.Validation("%s must be a number", field)
	}
	return &d, nil
}

// Health informa o status e os contadores do marketplace.
// GET /health
func (h *MarketHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.Service.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          report.Status,
		"contractAddress": report.ContractAddress,
		"network":         report.Network,
		"currency":        report.Currency,
		"stats":           report.Stats,
		"endpoints":       endpointIndex,
	})
}

// DeployContract implanta a coleção do marketplace.
// POST /deploy-contract
func (h *MarketHandler) DeployContract(w http.ResponseWriter, r *http.Request) {
	dep, err := h.Service.DeployContract(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"contractAddress": dep.Address,
		"deployer":        dep.Deployer,
		"transactionHash": dep.TransactionHash,
		"explorerUrl":     dep.ExplorerURL,
		"message":         "Contract deployed! You can now tokenize assets.",
	})
}

// GasPrice informa as taxas atuais da rede.
// GET /gas-price
func (h *MarketHandler) GasPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := h.Service.FeeQuote(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
