package handlers

import (
	"fmt"
	"net/http"

	"github.com/ferreirogomes/nftmarket/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AssetHandler trata as requisições do ciclo de vida dos ativos.
type AssetHandler struct {
	Service *services.MarketplaceService
}

// NewAssetHandler cria um novo handler de ativos.
func NewAssetHandler(s *services.MarketplaceService) *AssetHandler {
	return &AssetHandler{Service: s}
}

type createAssetRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ImageURL    string           `json:"imageUrl"`
	Price       *decimal.Decimal `json:"price"`
	MaxSupply   *int             `json:"maxSupply"`
	Owner       string           `json:"owner"`
}

// CreateAsset registra um novo ativo.
// POST /assets
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	asset, err := h.Service.CreateAsset(r.Context(), services.CreateAssetInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Owner:       req.Owner,
		Price:       req.Price,
		MaxSupply:   req.MaxSupply,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"asset":   asset,
		"message": fmt.Sprintf("Asset %q created! Ready to tokenize.", asset.Name),
	})
}

// ListAssets lista os ativos com as estatísticas do marketplace.
// GET /assets?status=&sortBy=
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list := h.Service.ListAssets(q.Get("status"), q.Get("sortBy"))

	writeJSON(w, http.StatusOK, map[string]any{
		"assets":          list.Assets,
		"stats":           list.Stats,
		"contractAddress": list.ContractAddress,
		"currency":        h.Service.Currency(),
	})
}

// GetAssetByID retorna um ativo e seu histórico de vendas.
// GET /assets/{assetId}
func (h *AssetHandler) GetAssetByID(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.GetAsset(chi.URLParam(r, "assetId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset":        details.Asset,
		"salesHistory": details.SalesHistory,
		"totalSold":    details.TotalSold,
		"totalRevenue": details.TotalRevenue,
	})
}

type tokenizeRequest struct {
	InitialSupply *int `json:"initialSupply"`
}

// Tokenize cunha o supply inicial do ativo.
// POST /tokenize/{assetId}
func (h *AssetHandler) Tokenize(w http.ResponseWriter, r *http.Request) {
	var req tokenizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Service.Tokenize(r.Context(), chi.URLParam(r, "assetId"), req.InitialSupply)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"tokenId":         res.TokenID,
		"transactionHash": res.TransactionHash,
		"supply":          res.Supply,
		"metadata":        res.Metadata,
		"explorerUrl":     res.ExplorerURL,
		"asset":           res.Asset,
		"message":         fmt.Sprintf("Successfully tokenized %q with %d copies!", res.Asset.Name, res.Supply),
	})
}

type buyRequest struct {
	Buyer         string `json:"buyer"`
	Quantity      *int   `json:"quantity"`
	PaymentMethod string `json:"paymentMethod"`
}

// Buy registra a compra de um ativo tokenizado.
// POST /buy/{assetId}
func (h *AssetHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Service.Buy(r.Context(), chi.URLParam(r, "assetId"), services.BuyInput{
		Buyer:         req.Buyer,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	revenue := revenueString(res.Sale.TotalPrice, h.Service.Currency())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sale":    res.Sale,
		"asset":   res.Asset,
		"revenue": revenue,
		"message": fmt.Sprintf("Successfully purchased %dx %q for %s!", res.Sale.Quantity, res.Asset.Name, revenue),
		"tip":     "No payment was collected; this purchase is recorded for bookkeeping only",
	})
}

func revenueString(d decimal.Decimal, currency string) string {
	return d.String() + " " + currency
}
