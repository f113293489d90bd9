package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ferreirogomes/nftmarket/models"

	"github.com/google/uuid"
)

// Store é o ledger do marketplace: as coleções de ativos e vendas de um único
// processo, com toda mutação gravada em um Persister.
type Store struct {
	mu              sync.RWMutex
	assets          []models.Asset
	index           map[string]int
	sales           []models.Sale
	tokenizing      map[string]struct{}
	contractAddress string

	persister Persister
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore cria um ledger vazio apoiado em p.
func NewStore(p Persister, logger *slog.Logger) *Store {
	if p == nil {
		p = MemoryPersister{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		index:      make(map[string]int),
		tokenizing: make(map[string]struct{}),
		persister:  p,
		logger:     logger,
		now:        time.Now,
	}
}

// Load substitui as coleções em memória pelo snapshot persistido.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("falha ao carregar snapshot do ledger: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = make([]models.Asset, 0, len(snap.Assets))
	s.index = make(map[string]int, len(snap.Assets))
	for _, a := range snap.Assets {
		s.index[a.ID] = len(s.assets)
		s.assets = append(s.assets, a)
	}
	s.sales = append([]models.Sale(nil), snap.Sales...)
	s.logger.Info("ledger carregado", "assets", len(s.assets), "sales", len(s.sales))
	return nil
}

// ContractAddress retorna o endereço da coleção implantada, ou "".
func (s *Store) ContractAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contractAddress
}

func (s *Store) SetContractAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contractAddress = addr
}

// CreateAsset adiciona um novo ativo.
func (s *Store) CreateAsset(ctx context.Context, a models.Asset) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[a.ID]; ok {
		return models.Asset{}, models.Conflict("asset %s already exists", a.ID)
	}
	s.index[a.ID] = len(s.assets)
	s.assets = append(s.assets, a.Clone())
	s.flushAssets(ctx)
	return a.Clone(), nil
}

// Asset retorna uma cópia do ativo com o id informado.
func (s *Store) Asset(id string) (models.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Asset{}, false
	}
	return s.assets[i].Clone(), true
}

// Assets retorna uma cópia de todos os ativos na ordem de inserção.
func (s *Store) Assets() []models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Asset, len(s.assets))
	for i, a := range s.assets {
		out[i] = a.Clone()
	}
	return out
}

// Sales retorna uma cópia de todas as vendas na ordem de inserção.
func (s *Store) Sales() []models.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Sale(nil), s.sales...)
}

// BeginTokenize reserva o ativo para o mint. Só uma tokenização pode estar em
// andamento por ativo, e um ativo tokenizado nunca pode ser reservado de novo.
func (s *Store) BeginTokenize(id string) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return models.Asset{}, models.NotFound("Asset not found")
	}
	a := s.assets[i]
	if a.IsTokenized() {
		return models.Asset{}, models.Conflict("Asset already tokenized")
	}
	if _, busy := s.tokenizing[id]; busy {
		return models.Asset{}, models.Conflict("Asset tokenization already in progress")
	}
	s.tokenizing[id] = struct{}{}
	return a.Clone(), nil
}

// AbortTokenize libera a reserva feita por BeginTokenize.
func (s *Store) AbortTokenize(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokenizing, id)
}

// CompleteTokenize registra o mint bem-sucedido de supply cópias.
func (s *Store) CompleteTokenize(ctx context.Context, id string, supply int, tokenID, txHash string) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokenizing, id)
	i, ok := s.index[id]
	if !ok {
		return models.Asset{}, models.NotFound("Asset not found")
	}
	a := &s.assets[i]
	if a.IsTokenized() {
		return models.Asset{}, models.Conflict("Asset already tokenized")
	}
	a.Status = models.StatusTokenized
	a.AvailableSupply = supply
	a.TokenID = &tokenID
	a.TransactionHash = &txHash
	s.flushAssets(ctx)
	return a.Clone(), nil
}

// Purchase descreve um pedido de reserva.
type Purchase struct {
	AssetID       string
	Buyer         string
	Quantity      int
	PaymentMethod string
}

// Reserve verifica o estoque e registra a venda de forma atômica: sob um único
// lock, availableSupply diminui, soldCount aumenta e a venda é adicionada.
func (s *Store) Reserve(ctx context.Context, p Purchase) (models.Sale, models.Asset, error) {
	if p.Quantity <= 0 {
		return models.Sale{}, models.Asset{}, models.Validation("quantity must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[p.AssetID]
	if !ok {
		return models.Sale{}, models.Asset{}, models.NotFound("Asset not found")
	}
	a := &s.assets[i]
	if !a.IsTokenized() {
		return models.Sale{}, models.Asset{}, models.Conflict("Asset not tokenized yet").
			WithTip(fmt.Sprintf("Use POST /tokenize/%s first", a.ID))
	}
	if a.AvailableSupply < p.Quantity {
		return models.Sale{}, models.Asset{}, models.Capacity(
			"Insufficient supply: requested %d, only %d available", p.Quantity, a.AvailableSupply)
	}

	now := s.now().UTC()
	sale := models.Sale{
		ID:            uuid.Must(uuid.NewV7()).String(),
		AssetID:       a.ID,
		Buyer:         p.Buyer,
		Quantity:      p.Quantity,
		PricePerUnit:  a.Price,
		TotalPrice:    a.Price.Mul(decimalFromInt(p.Quantity)),
		PaymentMethod: p.PaymentMethod,
		Timestamp:     now,
		TxHash:        "sim_tx_" + uuid.NewString(),
		Status:        models.SaleStatusCompleted,
	}

	a.AvailableSupply -= p.Quantity
	a.SoldCount += p.Quantity
	s.sales = append(s.sales, sale)

	s.flushSales(ctx)
	s.flushAssets(ctx)
	return sale, a.Clone(), nil
}

// MarkConfirmed marca o ativo cunhado por txHash como finalizado na blockchain.
func (s *Store) MarkConfirmed(ctx context.Context, txHash string, at time.Time) (models.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assets {
		a := &s.assets[i]
		if a.TransactionHash == nil || *a.TransactionHash != txHash {
			continue
		}
		if a.ConfirmedAt == nil {
			t := at.UTC()
			a.ConfirmedAt = &t
			s.flushAssets(ctx)
		}
		return a.Clone(), true
	}
	return models.Asset{}, false
}

// flushAssets e flushSales devem ser chamados com mu travado. Uma gravação que
// falha é registrada no log e ignorada: a memória continua valendo para o processo.
func (s *Store) flushAssets(ctx context.Context) {
	if err := s.persister.SaveAssets(ctx, s.assets); err != nil {
		s.logger.Error("falha ao persistir ativos", "error", models.Persistence(err, "ativos"))
	}
}

func (s *Store) flushSales(ctx context.Context) {
	if err := s.persister.SaveSales(ctx, s.sales); err != nil {
		s.logger.Error("falha ao persistir vendas", "error", models.Persistence(err, "vendas"))
	}
}
