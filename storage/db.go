package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/ferreirogomes/nftmarket/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB é o persister PostgreSQL do ledger.
type DB struct {
	*sqlx.DB
}

// NewDB conecta ao PostgreSQL e aplica as migrations pendentes.
func NewDB(dataSourceName string) (*DB, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao pingar o banco de dados: %w", err)
	}
	slog.Info("conectado ao PostgreSQL")

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao executar migrations: %w", err)
	}

	return &DB{db}, nil
}

func runMigrations(db *sql.DB) error {
	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("erro ao aplicar migrations: %w", err)
	}
	if n > 0 {
		slog.Info("migrations aplicadas", "count", n)
	} else {
		slog.Info("nenhuma migration nova para aplicar")
	}
	return nil
}

const (
	selectAssets = `SELECT id, name, description, image_url, price, max_supply, sold_count,
		available_supply, owner, status, created_at, token_id, transaction_hash, confirmed_at
		FROM assets ORDER BY created_at, id`

	selectSales = `SELECT id, asset_id, buyer, quantity, price_per_unit, total_price,
		payment_method, sold_at, tx_hash, status
		FROM sales ORDER BY sold_at, id`

	upsertAsset = `INSERT INTO assets (id, name, description, image_url, price, max_supply, sold_count,
		available_supply, owner, status, created_at, token_id, transaction_hash, confirmed_at)
		VALUES (:id, :name, :description, :image_url, :price, :max_supply, :sold_count,
		:available_supply, :owner, :status, :created_at, :token_id, :transaction_hash, :confirmed_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			price = EXCLUDED.price,
			max_supply = EXCLUDED.max_supply,
			sold_count = EXCLUDED.sold_count,
			available_supply = EXCLUDED.available_supply,
			owner = EXCLUDED.owner,
			status = EXCLUDED.status,
			token_id = EXCLUDED.token_id,
			transaction_hash = EXCLUDED.transaction_hash,
			confirmed_at = EXCLUDED.confirmed_at`

	insertSale = `INSERT INTO sales (id, asset_id, buyer, quantity, price_per_unit, total_price,
		payment_method, sold_at, tx_hash, status)
		VALUES (:id, :asset_id, :buyer, :quantity, :price_per_unit, :total_price,
		:payment_method, :sold_at, :tx_hash, :status)
		ON CONFLICT (id) DO NOTHING`
)

// Load lê as duas tabelas.
func (d *DB) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := d.SelectContext(ctx, &snap.Assets, selectAssets); err != nil {
		return Snapshot{}, fmt.Errorf("falha ao carregar ativos: %w", err)
	}
	if err := d.SelectContext(ctx, &snap.Sales, selectSales); err != nil {
		return Snapshot{}, fmt.Errorf("falha ao carregar vendas: %w", err)
	}
	return snap, nil
}

// SaveAssets grava todos os ativos em uma única transação.
func (d *DB) SaveAssets(ctx context.Context, assets []models.Asset) error {
	return d.saveAll(ctx, upsertAsset, len(assets), func(i int) any { return assets[i] })
}

// SaveSales grava todas as vendas em uma única transação. Vendas são imutáveis,
// então linhas já gravadas não são alteradas.
func (d *DB) SaveSales(ctx context.Context, sales []models.Sale) error {
	return d.saveAll(ctx, insertSale, len(sales), func(i int) any { return sales[i] })
}

func (d *DB) saveAll(ctx context.Context, query string, n int, row func(int) any) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("falha ao preparar statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)); err != nil {
			return fmt.Errorf("falha ao gravar linha %d: %w", i, err)
		}
	}
	return tx.Commit()
}
