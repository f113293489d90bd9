package storage

import (
	"context"

	"github.com/ferreirogomes/nftmarket/models"

	"github.com/shopspring/decimal"
)

// Snapshot é o estado persistido completo do registro.
type Snapshot struct {
	Assets []models.Asset
	Sales  []models.Sale
}

// Persister salva e restaura coleções inteiras. Cada gravação reescreve a
// coleção por completo.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	SaveAssets(ctx context.Context, assets []models.Asset) error
	SaveSales(ctx context.Context, sales []models.Sale) error
}

// MemoryPersister não guarda nada.
type MemoryPersister struct{}

func (MemoryPersister) Load(context.Context) (Snapshot, error) { return Snapshot{}, nil }

func (MemoryPersister) SaveAssets(context.Context, []models.Asset) error { return nil }

func (MemoryPersister) SaveSales(context.Context, []models.Sale) error { return nil }

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
