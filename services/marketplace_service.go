package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ferreirogomes/nftmarket/events"
	"github.com/ferreirogomes/nftmarket/models"
	"github.com/ferreirogomes/nftmarket/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxSupply  = 100
	DefaultSalesLimit = 50

	CollectionName   = "Hackathon Buyable Assets"
	CollectionSymbol = "HACK"
	CollectionURI    = "https://marketplace.example.com/contract-metadata.json"

	SortCreated = "created"
	SortPrice   = "price"
	SortPopular = "popular"
)

var DefaultPrice = decimal.RequireFromString("0.001")

// TxWatcher acompanha uma transação enviada até a blockchain finalizá-la.
type TxWatcher interface {
	Watch(ref string)
}

// MarketplaceService implementa as operações do marketplace sobre o ledger
// e o gateway da blockchain.
type MarketplaceService struct {
	Store  *storage.Store
	Chain  ChainGateway
	Events events.Publisher

	watcher      TxWatcher
	currency     string
	chainTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*MarketplaceService)

func WithPublisher(p events.Publisher) Option {
	return func(s *MarketplaceService) { s.Events = p }
}

func WithWatcher(w TxWatcher) Option {
	return func(s *MarketplaceService) { s.watcher = w }
}

func WithCurrency(c string) Option {
	return func(s *MarketplaceService) { s.currency = c }
}

func WithChainTimeout(d time.Duration) Option {
	return func(s *MarketplaceService) { s.chainTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *MarketplaceService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *MarketplaceService) { s.now = now }
}

// NewMarketplaceService liga o ledger a um gateway da blockchain.
func NewMarketplaceService(store *storage.Store, chain ChainGateway, opts ...Option) *MarketplaceService {
	s := &MarketplaceService{
		Store:        store,
		Chain:        chain,
		currency:     "SOL",
		chainTimeout: 60 * time.Second,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Events == nil {
		s.Events = events.LogPublisher{Logger: s.logger}
	}
	return s
}

func (s *MarketplaceService) Currency() string { return s.currency }

type CreateAssetInput struct {
	Name        string
	Description string
	ImageURL    string
	Owner       string
	Price       *decimal.Decimal
	MaxSupply   *int
}

// CreateAsset registra um novo ativo no estado created.
func (s *MarketplaceService) CreateAsset(ctx context.Context, in CreateAssetInput) (models.Asset, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if name == "" || description == "" {
		return models.Asset{}, models.Validation("Name and description are required")
	}

	price := DefaultPrice
	if in.Price != nil {
		if in.Price.IsNegative() {
			return models.Asset{}, models.Validation("price must not be negative")
		}
		price = *in.Price
	}

	maxSupply := DefaultMaxSupply
	if in.MaxSupply != nil {
		if *in.MaxSupply <= 0 {
			return models.Asset{}, models.Validation("maxSupply must be greater than zero")
		}
		maxSupply = *in.MaxSupply
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL == "" {
		imageURL = placeholderImage(name)
	}

	owner := strings.TrimSpace(in.Owner)
	if owner == "" {
		owner = s.Chain.Address()
	}

	asset, err := s.Store.CreateAsset(ctx, models.Asset{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        name,
		Description: description,
		ImageURL:    imageURL,
		Price:       price,
		MaxSupply:   maxSupply,
		Owner:       owner,
		Status:      models.StatusCreated,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return models.Asset{}, err
	}

	s.logger.Info("ativo criado", "asset_id", asset.ID, "name", asset.Name, "price", asset.Price.String())
	s.publish(ctx, events.AssetCreated, asset)
	return asset, nil
}

type TokenizeResult struct {
	Asset           models.Asset
	TokenID         string
	TransactionHash string
	Supply          int
	Metadata        NFTMetadata
	ExplorerURL     string
}

// Tokenize cunha initialSupply cópias do ativo (maxSupply quando nil).
// Falhas do gateway não são repetidas e deixam o ativo no estado created.
func (s *MarketplaceService) Tokenize(ctx context.Context, assetID string, initialSupply *int) (TokenizeResult, error) {
	contract := s.Store.ContractAddress()
	if contract == "" {
		return TokenizeResult{}, models.Validation("Deploy contract first!").
			WithTip("Use POST /deploy-contract endpoint")
	}

	asset, err := s.Store.BeginTokenize(assetID)
	if err != nil {
		return TokenizeResult{}, err
	}

	supply := asset.MaxSupply
	if initialSupply != nil {
		supply = *initialSupply
	}
	if supply <= 0 || supply > asset.MaxSupply {
		s.Store.AbortTokenize(assetID)
		return TokenizeResult{}, models.Validation("initialSupply must be between 1 and %d", asset.MaxSupply)
	}

	metadata := s.metadataFor(asset)

	chainCtx, cancel := s.chainContext(ctx)
	defer cancel()

	s.logger.Info("tokenizando ativo", "asset_id", asset.ID, "name", asset.Name, "supply", supply)
	receipt, err := s.Chain.Mint(chainCtx, MintParams{
		Contract: contract,
		AssetID:  asset.ID,
		Supply:   uint64(supply),
		Metadata: metadata,
	})
	if err != nil {
		s.Store.AbortTokenize(assetID)
		s.logger.Error("falha na tokenização", "asset_id", asset.ID, "error", err)
		return TokenizeResult{}, s.transactionError(err, "Transaction failed")
	}

	updated, err := s.Store.CompleteTokenize(ctx, assetID, supply, receipt.TokenID, receipt.TransactionHash)
	if err != nil {
		return TokenizeResult{}, err
	}

	if s.watcher != nil {
		s.watcher.Watch(receipt.TransactionHash)
	}
	s.logger.Info("ativo tokenizado", "asset_id", updated.ID, "token_id", receipt.TokenID, "tx", receipt.TransactionHash)
	s.publish(ctx, events.AssetTokenized, updated)

	return TokenizeResult{
		Asset:           updated,
		TokenID:         receipt.TokenID,
		TransactionHash: receipt.TransactionHash,
		Supply:          supply,
		Metadata:        metadata,
		ExplorerURL:     receipt.ExplorerURL,
	}, nil
}

type BuyInput struct {
	Buyer         string
	Quantity      *int
	PaymentMethod string
}

type AssetSummary struct {
	Name            string `json:"name"`
	RemainingSupply int    `json:"remainingSupply"`
	TotalSold       int    `json:"totalSold"`
}

type BuyResult struct {
	Sale  models.Sale
	Asset AssetSummary
}

// Buy registra uma compra. O estoque é verificado e decrementado de forma
// atômica, então compradores concorrentes nunca vendem além do disponível.
func (s *MarketplaceService) Buy(ctx context.Context, assetID string, in BuyInput) (BuyResult, error) {
	buyer := strings.TrimSpace(in.Buyer)
	if buyer == "" {
		return BuyResult{}, models.Validation("Buyer address is required")
	}

	quantity := 1
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	if quantity <= 0 {
		return BuyResult{}, models.Validation("quantity must be greater than zero")
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = models.DefaultPaymentMethod
	}

	sale, asset, err := s.Store.Reserve(ctx, storage.Purchase{
		AssetID:       assetID,
		Buyer:         buyer,
		Quantity:      quantity,
		PaymentMethod: method,
	})
	if err != nil {
		return BuyResult{}, err
	}

	s.logger.Info("venda concluída",
		"sale_id", sale.ID,
		"asset_id", asset.ID,
		"buyer", buyer,
		"quantity", quantity,
		"total", sale.TotalPrice.String(),
	)
	s.publish(ctx, events.SaleCompleted, sale)

	return BuyResult{
		Sale: sale,
		Asset: AssetSummary{
			Name:            asset.Name,
			RemainingSupply: asset.AvailableSupply,
			TotalSold:       asset.SoldCount,
		},
	}, nil
}

type MarketStats struct {
	Total        int             `json:"total"`
	Created      int             `json:"created"`
	Tokenized    int             `json:"tokenized"`
	TotalSales   int             `json:"totalSales"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

type AssetList struct {
	Assets          []models.Asset
	Stats           MarketStats
	ContractAddress string
}

// ListAssets filtra por status (quando informado) e ordena por preço crescente,
// popularidade (soldCount decrescente) ou, por padrão, mais novos primeiro.
func (s *MarketplaceService) ListAssets(status, sortBy string) AssetList {
	all := s.Store.Assets()
	sales := s.Store.Sales()

	filtered := make([]models.Asset, 0, len(all))
	for _, a := range all {
		if status == "" || string(a.Status) == status {
			filtered = append(filtered, a)
		}
	}
	sortAssets(filtered, sortBy)

	stats := MarketStats{
		Total:        len(all),
		TotalSales:   len(sales),
		TotalRevenue: models.Totals(sales).Revenue,
	}
	for _, a := range all {
		switch a.Status {
		case models.StatusCreated:
			stats.Created++
		case models.StatusTokenized:
			stats.Tokenized++
		}
	}

	return AssetList{
		Assets:          filtered,
		Stats:           stats,
		ContractAddress: s.Store.ContractAddress(),
	}
}

func sortAssets(assets []models.Asset, sortBy string) {
	switch sortBy {
	case SortPrice:
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].Price.LessThan(assets[j].Price)
		})
	case SortPopular:
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].SoldCount > assets[j].SoldCount
		})
	default:
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].CreatedAt.After(assets[j].CreatedAt)
		})
	}
}

type AssetDetails struct {
	Asset        models.Asset
	SalesHistory []models.Sale
	TotalSold    int
	TotalRevenue decimal.Decimal
}

// GetAsset retorna o ativo com seu histórico de vendas.
func (s *MarketplaceService) GetAsset(id string) (AssetDetails, error) {
	asset, ok := s.Store.Asset(id)
	if !ok {
		return AssetDetails{}, models.NotFound("Asset not found")
	}

	history := []models.Sale{}
	for _, sale := range s.Store.Sales() {
		if sale.AssetID == id {
			history = append(history, sale)
		}
	}
	totals := models.Totals(history)

	return AssetDetails{
		Asset:        asset,
		SalesHistory: history,
		TotalSold:    totals.Items,
		TotalRevenue: totals.Revenue,
	}, nil
}

type SalesList struct {
	Sales        []models.Sale
	TotalSales   int
	TotalRevenue decimal.Decimal
}

// ListSales retorna as vendas mais recentes primeiro, opcionalmente de um só
// comprador. Os totais sempre cobrem todas as vendas.
func (s *MarketplaceService) ListSales(buyer string, limit int) SalesList {
	if limit <= 0 {
		limit = DefaultSalesLimit
	}
	all := s.Store.Sales()

	filtered := make([]models.Sale, 0, len(all))
	for _, sale := range all {
		if buyer == "" || sale.BoughtBy(buyer) {
			filtered = append(filtered, sale)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return SalesList{
		Sales:        filtered,
		TotalSales:   len(all),
		TotalRevenue: models.Totals(all).Revenue,
	}
}

type BuyerStats struct {
	TotalPurchases int             `json:"totalPurchases"`
	TotalSpent     decimal.Decimal `json:"totalSpent"`
	TotalItems     int             `json:"totalItems"`
}

type BuyerSales struct {
	Sales []models.Sale
	Stats BuyerStats
}

// SalesByBuyer retorna todas as compras feitas por address.
func (s *MarketplaceService) SalesByBuyer(address string) BuyerSales {
	sales := []models.Sale{}
	for _, sale := range s.Store.Sales() {
		if sale.BoughtBy(address) {
			sales = append(sales, sale)
		}
	}
	totals := models.Totals(sales)
	return BuyerSales{
		Sales: sales,
		Stats: BuyerStats{
			TotalPurchases: totals.Count,
			TotalSpent:     totals.Revenue,
			TotalItems:     totals.Items,
		},
	}
}

type SearchQuery struct {
	Q        string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	Status   string
}

// Search compara q com nome e descrição (sem diferenciar maiúsculas) e aplica
// limites de preço inclusivos e igualdade de status.
func (s *MarketplaceService) Search(q SearchQuery) []models.Asset {
	needle := strings.ToLower(strings.TrimSpace(q.Q))

	results := []models.Asset{}
	for _, a := range s.Store.Assets() {
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.Name), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) {
			continue
		}
		if q.PriceMin != nil && a.Price.LessThan(*q.PriceMin) {
			continue
		}
		if q.PriceMax != nil && a.Price.GreaterThan(*q.PriceMax) {
			continue
		}
		if q.Status != "" && string(a.Status) != q.Status {
			continue
		}
		results = append(results, a)
	}
	return results
}

type HealthStats struct {
	AssetsCreated   int             `json:"assetsCreated"`
	AssetsTokenized int             `json:"assetsTokenized"`
	TotalSales      int             `json:"totalSales"`
	TotalNFTsSold   int             `json:"totalNFTsSold"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	PopularAsset    string          `json:"popularAsset"`
}

type HealthReport struct {
	Status          string      `json:"status"`
	ContractAddress string      `json:"contractAddress"`
	Network         string      `json:"network"`
	Currency        string      `json:"currency"`
	Stats           HealthStats `json:"stats"`
}

// Health tira um retrato dos contadores do marketplace.
func (s *MarketplaceService) Health() HealthReport {
	assets := s.Store.Assets()
	totals := models.Totals(s.Store.Sales())

	stats := HealthStats{
		AssetsCreated: len(assets),
		TotalSales:    totals.Count,
		TotalNFTsSold: totals.Items,
		TotalRevenue:  totals.Revenue,
		PopularAsset:  "None",
	}
	best := 0
	for _, a := range assets {
		if a.IsTokenized() {
			stats.AssetsTokenized++
		}
		if a.SoldCount > best {
			best = a.SoldCount
			stats.PopularAsset = a.Name
		}
	}

	return HealthReport{
		Status:          "Marketplace running",
		ContractAddress: s.Store.ContractAddress(),
		Network:         s.Chain.Network(),
		Currency:        s.currency,
		Stats:           stats,
	}
}

// DeployContract implanta a coleção do marketplace e guarda o endereço.
func (s *MarketplaceService) DeployContract(ctx context.Context) (Deployment, error) {
	chainCtx, cancel := s.chainContext(ctx)
	defer cancel()

	s.logger.Info("implantando coleção", "name", CollectionName, "symbol", CollectionSymbol)
	dep, err := s.Chain.Deploy(chainCtx, DeployParams{
		Name:        CollectionName,
		Symbol:      CollectionSymbol,
		ContractURI: CollectionURI,
	})
	if err != nil {
		s.logger.Error("falha no deploy", "error", err)
		return Deployment{}, s.transactionError(err, "Contract deployment failed")
	}

	s.Store.SetContractAddress(dep.Address)
	s.logger.Info("coleção implantada", "address", dep.Address, "deployer", dep.Deployer)
	s.publish(ctx, events.ContractReady, dep)
	return dep, nil
}

// FeeQuote informa as taxas atuais da rede.
func (s *MarketplaceService) FeeQuote(ctx context.Context) (FeeQuote, error) {
	chainCtx, cancel := s.chainContext(ctx)
	defer cancel()
	q, err := s.Chain.FeeQuote(chainCtx)
	if err != nil {
		return FeeQuote{}, models.Transaction(err, "Could not fetch network fees")
	}
	return q, nil
}

// ConfirmTransaction marca como finalizado o ativo cunhado por ref.
func (s *MarketplaceService) ConfirmTransaction(ctx context.Context, ref string) {
	asset, ok := s.Store.MarkConfirmed(ctx, ref, s.now())
	if !ok {
		s.logger.Warn("transação confirmada não corresponde a nenhum ativo", "tx", ref)
		return
	}
	s.logger.Info("mint finalizado", "asset_id", asset.ID, "tx", ref)
	s.publish(ctx, events.AssetConfirmed, asset)
}

// chainContext limita uma chamada ao gateway; timeout zero deixa ctx sem limite.
func (s *MarketplaceService) chainContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.chainTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.chainTimeout)
}

func (s *MarketplaceService) metadataFor(a models.Asset) NFTMetadata {
	return NFTMetadata{
		Name: a.Name,
		Description: fmt.Sprintf("%s\n\nPrice: %s %s\nMax Supply: %d\nAsset ID: %s",
			a.Description, a.Price.String(), s.currency, a.MaxSupply, a.ID),
		Image: a.ImageURL,
		Attributes: []Attribute{
			{TraitType: "Asset ID", Value: a.ID},
			{TraitType: "Price", Value: a.Price.String() + " " + s.currency},
			{TraitType: "Max Supply", Value: fmt.Sprint(a.MaxSupply)},
			{TraitType: "Created", Value: a.CreatedAt.Format(time.RFC3339)},
			{TraitType: "Category", Value: "Buyable Asset"},
		},
	}
}

func (s *MarketplaceService) transactionError(err error, fallback string) *models.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "insufficient lamports"):
		return models.Transaction(err, "Insufficient funds for fees").
			WithTip(fmt.Sprintf("Ensure the operator wallet %s holds enough %s", s.Chain.Address(), s.currency))
	case strings.Contains(msg, "blockhash"), strings.Contains(msg, "nonce"):
		return models.Transaction(err, "Transaction expired before confirmation").
			WithTip("There may be pending transactions. Please wait and try again.")
	default:
		return models.Transaction(err, fallback).
			WithTip(fmt.Sprintf("Check the operator wallet has enough %s for fees on %s", s.currency, s.Chain.Network()))
	}
}

func (s *MarketplaceService) publish(ctx context.Context, eventType string, data any) {
	if err := s.Events.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn("falha ao publicar evento", "type", eventType, "error", err)
	}
}

func placeholderImage(name string) string {
	return "https://via.placeholder.com/400x400/8b5cf6/ffffff?text=" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
