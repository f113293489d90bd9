package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// SimulatedGateway é um ChainGateway em processo para execuções locais e demos.
// Gera endereços e assinaturas Solana válidos e reporta como finalizada toda
// transação que emitiu.
type SimulatedGateway struct {
	operator solana.PublicKey

	mu       sync.Mutex
	issued   map[string]struct{}
	failNext error
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		operator: solana.NewWallet().PublicKey(),
		issued:   make(map[string]struct{}),
	}
}

// FailNext faz a próxima chamada a Deploy ou Mint retornar err.
func (g *SimulatedGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

func (g *SimulatedGateway) takeFailure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.failNext
	g.failNext = nil
	return err
}

func (g *SimulatedGateway) Address() string { return g.operator.String() }

func (g *SimulatedGateway) Network() string { return "Simulated network" }

func (g *SimulatedGateway) Deploy(ctx context.Context, params DeployParams) (Deployment, error) {
	if err := ctx.Err(); err != nil {
		return Deployment{}, err
	}
	if err := g.takeFailure(); err != nil {
		return Deployment{}, err
	}
	sig, err := g.signature()
	if err != nil {
		return Deployment{}, err
	}
	return Deployment{
		Address:         solana.NewWallet().PublicKey().String(),
		Deployer:        g.Address(),
		TransactionHash: sig,
	}, nil
}

func (g *SimulatedGateway) Mint(ctx context.Context, params MintParams) (MintReceipt, error) {
	if err := ctx.Err(); err != nil {
		return MintReceipt{}, err
	}
	if params.Supply == 0 {
		return MintReceipt{}, fmt.Errorf("o supply do mint deve ser maior que zero")
	}
	if err := g.takeFailure(); err != nil {
		return MintReceipt{}, err
	}
	sig, err := g.signature()
	if err != nil {
		return MintReceipt{}, err
	}
	return MintReceipt{
		TokenID:         solana.NewWallet().PublicKey().String(),
		TransactionHash: sig,
	}, nil
}

func (g *SimulatedGateway) FeeQuote(context.Context) (FeeQuote, error) {
	return FeeQuote{
		Network:        g.Network(),
		Unit:           "lamports",
		BaseFee:        lamportsPerSignature,
		Suggested:      lamportsPerSignature,
		NativeCost:     float64(lamportsPerSignature) / lamportsPerSOL,
		Recommendation: "Good time to transact",
	}, nil
}

func (g *SimulatedGateway) TransactionStatus(_ context.Context, ref string) (TxStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.issued[ref]; ok {
		return TxFinalized, nil
	}
	return TxUnknown, nil
}

func (g *SimulatedGateway) signature() (string, error) {
	var b [64]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("falha ao gerar assinatura: %w", err)
	}
	sig := solana.SignatureFromBytes(b[:]).String()

	g.mu.Lock()
	g.issued[sig] = struct{}{}
	g.mu.Unlock()
	return sig, nil
}
