package services

import "context"

// ChainGateway é o mínimo que o marketplace precisa da blockchain: implantar a
// coleção uma vez, cunhar ativos nela e consultar transações enviadas.
type ChainGateway interface {
	// Address é a conta do operador, que paga as taxas e recebe os tokens cunhados.
	Address() string
	// Network é o nome legível da rede.
	Network() string
	Deploy(ctx context.Context, params DeployParams) (Deployment, error)
	Mint(ctx context.Context, params MintParams) (MintReceipt, error)
	FeeQuote(ctx context.Context) (FeeQuote, error)
	TransactionStatus(ctx context.Context, ref string) (TxStatus, error)
}

type DeployParams struct {
	Name        string
	Symbol      string
	ContractURI string
}

type Deployment struct {
	Address         string
	Deployer        string
	TransactionHash string
	ExplorerURL     string
}

// NFTMetadata segue o formato usual de metadados off-chain de tokens.
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type MintParams struct {
	Contract string
	AssetID  string
	Supply   uint64
	Metadata NFTMetadata
}

type MintReceipt struct {
	TokenID         string
	TransactionHash string
	ExplorerURL     string
}

type FeeQuote struct {
	Network        string  `json:"network"`
	Unit           string  `json:"unit"`
	BaseFee        uint64  `json:"baseFee"`
	PriorityFee    uint64  `json:"priorityFee"`
	Suggested      uint64  `json:"suggested"`
	NativeCost     float64 `json:"nativeCost"`
	Recommendation string  `json:"recommendation"`
}

// TxStatus é a visão da blockchain sobre uma transação enviada.
type TxStatus string

const (
	TxUnknown   TxStatus = "unknown"
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFinalized TxStatus = "finalized"
	TxFailed    TxStatus = "failed"
)
