package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetStatus é o estado do ciclo de vida de um ativo.
type AssetStatus string

const (
	StatusCreated   AssetStatus = "created"
	StatusTokenized AssetStatus = "tokenized"
)

// Valid informa se s é um dos estados conhecidos do ciclo de vida.
func (s AssetStatus) Valid() bool {
	return s == StatusCreated || s == StatusTokenized
}

// Asset representa um item à venda, antes ou depois de ser cunhado na blockchain.
type Asset struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Description     string          `json:"description" db:"description"`
	ImageURL        string          `json:"imageUrl" db:"image_url"`
	Price           decimal.Decimal `json:"price" db:"price"`
	MaxSupply       int             `json:"maxSupply" db:"max_supply"`
	SoldCount       int             `json:"soldCount" db:"sold_count"`
	AvailableSupply int             `json:"availableSupply" db:"available_supply"`
	Owner           string          `json:"owner" db:"owner"`
	Status          AssetStatus     `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	TokenID         *string         `json:"tokenId,omitempty" db:"token_id"`
	TransactionHash *string         `json:"transactionHash,omitempty" db:"transaction_hash"`
	ConfirmedAt     *time.Time      `json:"confirmedAt,omitempty" db:"confirmed_at"`
}

// Clone retorna uma cópia profunda; quem chama nunca compartilha os registros do ledger.
func (a Asset) Clone() Asset {
	c := a
	if a.TokenID != nil {
		v := *a.TokenID
		c.TokenID = &v
	}
	if a.TransactionHash != nil {
		v := *a.TransactionHash
		c.TransactionHash = &v
	}
	if a.ConfirmedAt != nil {
		v := *a.ConfirmedAt
		c.ConfirmedAt = &v
	}
	return c
}

// IsTokenized informa se o ativo já foi cunhado.
func (a Asset) IsTokenized() bool {
	return a.Status == StatusTokenized
}
