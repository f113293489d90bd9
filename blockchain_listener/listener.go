package blockchain_listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ferreirogomes/nftmarket/services"
)

// StatusSource informa o status de uma transação enviada à blockchain.
type StatusSource interface {
	TransactionStatus(ctx context.Context, ref string) (services.TxStatus, error)
}

// ConfirmFunc é chamada uma vez para cada transação que chega a finalized.
type ConfirmFunc func(ctx context.Context, ref string)

// BlockchainListener consulta a blockchain pelas transações que deve
// acompanhar e avisa quais foram finalizadas.
type BlockchainListener struct {
	Source      StatusSource
	OnConfirmed ConfirmFunc
	Interval    time.Duration
	MaxAttempts int

	mu      sync.Mutex
	pending map[string]int
	logger  *slog.Logger
}

// NewBlockchainListener cria um listener. interval <= 0 vira 5s e
// maxAttempts <= 0 vira 60 consultas por transação.
func NewBlockchainListener(source StatusSource, onConfirmed ConfirmFunc, interval time.Duration, maxAttempts int) *BlockchainListener {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &BlockchainListener{
		Source:      source,
		OnConfirmed: onConfirmed,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		pending:     make(map[string]int),
		logger:      slog.Default().With("component", "blockchain_listener"),
	}
}

// Watch adiciona ref ao conjunto pendente.
func (l *BlockchainListener) Watch(ref string) {
	if ref == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[ref]; !ok {
		l.pending[ref] = 0
	}
}

// Pending retorna quantas transações ainda estão sendo acompanhadas.
func (l *BlockchainListener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// StartListening consulta até ctx ser cancelado.
func (l *BlockchainListener) StartListening(ctx context.Context) {
	l.logger.Info("listener iniciado", "interval", l.Interval)
	t := time.NewTicker(l.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("listener parado", "pending", l.Pending())
			return
		case <-t.C:
			l.Poll(ctx)
		}
	}
}

// Poll verifica cada transação pendente uma vez.
func (l *BlockchainListener) Poll(ctx context.Context) {
	l.mu.Lock()
	refs := make([]string, 0, len(l.pending))
	for ref := range l.pending {
		refs = append(refs, ref)
	}
	l.mu.Unlock()

	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		l.check(ctx, ref)
	}
}

func (l *BlockchainListener) check(ctx context.Context, ref string) {
	status, err := l.Source.TransactionStatus(ctx, ref)
	if err != nil {
		l.logger.Warn("falha ao buscar status da transação", "tx", ref, "error", err)
	}

	switch status {
	case services.TxFinalized:
		l.forget(ref)
		l.logger.Info("transação finalizada", "tx", ref)
		if l.OnConfirmed != nil {
			l.OnConfirmed(ctx, ref)
		}
	case services.TxFailed:
		l.forget(ref)
		l.logger.Error("transação falhou na blockchain", "tx", ref)
	default:
		l.mu.Lock()
		l.pending[ref]++
		attempts := l.pending[ref]
		if attempts >= l.MaxAttempts {
			delete(l.pending, ref)
		}
		l.mu.Unlock()
		if attempts >= l.MaxAttempts {
			l.logger.Warn("desistindo da transação", "tx", ref, "attempts", attempts, "last_status", status)
		}
	}
}

func (l *BlockchainListener) forget(ref string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, ref)
}
