package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ferreirogomes/nftmarket/models"
)

const (
	AssetsFile = "assets.json"
	SalesFile  = "sales.json"
)

// JSONFilePersister guarda cada coleção como um array JSON indentado.
type JSONFilePersister struct {
	Dir string
}

func NewJSONFilePersister(dir string) (*JSONFilePersister, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de dados %s: %w", dir, err)
	}
	return &JSONFilePersister{Dir: dir}, nil
}

// Load lê os dois documentos. Um documento ausente vira uma coleção vazia.
func (p *JSONFilePersister) Load(_ context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := p.read(AssetsFile, &snap.Assets); err != nil {
		return Snapshot{}, err
	}
	if err := p.read(SalesFile, &snap.Sales); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (p *JSONFilePersister) SaveAssets(_ context.Context, assets []models.Asset) error {
	if assets == nil {
		assets = []models.Asset{}
	}
	return p.write(AssetsFile, assets)
}

func (p *JSONFilePersister) SaveSales(_ context.Context, sales []models.Sale) error {
	if sales == nil {
		sales = []models.Sale{}
	}
	return p.write(SalesFile, sales)
}

func (p *JSONFilePersister) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(p.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("falha ao ler %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("falha ao interpretar %s: %w", name, err)
	}
	return nil
}

// write substitui o documento via arquivo temporário e rename; uma queda nunca
// deixa um arquivo truncado.
func (p *JSONFilePersister) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("falha ao codificar %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(p.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("falha ao criar arquivo temporário para %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("falha ao escrever %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("falha ao fechar %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(p.Dir, name)); err != nil {
		return fmt.Errorf("falha ao substituir %s: %w", name, err)
	}
	return nil
}
