package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SaleStatusCompleted  = "completed"
	DefaultPaymentMethod = "crypto"
)

// Sale representa uma compra de cópias de um ativo tokenizado.
// Nenhum pagamento é cobrado: a venda é apenas um registro contábil.
type Sale struct {
	ID            string          `json:"id" db:"id"`
	AssetID       string          `json:"assetId" db:"asset_id"`
	Buyer         string          `json:"buyer" db:"buyer"`
	Quantity      int             `json:"quantity" db:"quantity"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit" db:"price_per_unit"`
	TotalPrice    decimal.Decimal `json:"totalPrice" db:"total_price"`
	PaymentMethod string          `json:"paymentMethod" db:"payment_method"`
	Timestamp     time.Time       `json:"timestamp" db:"sold_at"`
	TxHash        string          `json:"txHash" db:"tx_hash"`
	Status        string          `json:"status" db:"status"`
}

// BoughtBy compara compradores sem diferenciar maiúsculas de minúsculas.
func (s Sale) BoughtBy(buyer string) bool {
	return strings.EqualFold(s.Buyer, buyer)
}

// SalesTotals agrega um conjunto de vendas.
type SalesTotals struct {
	Count   int
	Items   int
	Revenue decimal.Decimal
}

// Totals soma quantidade e receita das vendas.
func Totals(sales []Sale) SalesTotals {
	t := SalesTotals{Revenue: decimal.Zero}
	for _, s := range sales {
		t.Count++
		t.Items += s.Quantity
		t.Revenue = t.Revenue.Add(s.TotalPrice)
	}
	return t
}
