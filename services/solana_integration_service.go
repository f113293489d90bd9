package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	// mintAccountSize é o tamanho em bytes de uma conta de mint SPL.
	mintAccountSize = 82
	// lamportsPerSignature é a taxa base da rede por assinatura.
	lamportsPerSignature = 5000
	lamportsPerSOL       = 1_000_000_000
)

// solanaRPC é o subconjunto de *rpc.Client usado pelo gateway.
type solanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetRecentPrioritizationFees(ctx context.Context, accounts solana.PublicKeySlice) ([]rpc.PriorizationFeeResult, error)
}

// SolanaIntegrationService implementa ChainGateway na Solana. A coleção
// ("contrato") é um mint SPL; cada ativo tokenizado ganha seu próprio mint SPL
// com zero casas decimais, cujo supply é cunhado na token account do FeePayer.
type SolanaIntegrationService struct {
	RPCClient solanaRPC
	FeePayer  solana.PrivateKey
	Cluster   string
}

// NewSolanaIntegrationService conecta em rpcEndpoint com a chave do FeePayer.
func NewSolanaIntegrationService(rpcEndpoint, feePayerKeyBase58, cluster string) (*SolanaIntegrationService, error) {
	feePayer, err := solana.PrivateKeyFromBase58(feePayerKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("chave privada do FeePayer inválida: %w", err)
	}
	return &SolanaIntegrationService{
		RPCClient: rpc.New(rpcEndpoint),
		FeePayer:  feePayer,
		Cluster:   cluster,
	}, nil
}

func (s *SolanaIntegrationService) Address() string {
	return s.FeePayer.PublicKey().String()
}

func (s *SolanaIntegrationService) Network() string {
	return "Solana " + s.Cluster
}

// Deploy cria o mint da coleção. O endereço dele é o endereço do contrato.
func (s *SolanaIntegrationService) Deploy(ctx context.Context, params DeployParams) (Deployment, error) {
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Deployment{}, fmt.Errorf("falha ao gerar chave do mint da coleção: %w", err)
	}

	instructions, err := s.createMintInstructions(ctx, mint.PublicKey())
	if err != nil {
		return Deployment{}, err
	}

	sig, err := s.send(ctx, instructions, mint)
	if err != nil {
		return Deployment{}, fmt.Errorf("falha ao implantar coleção %s: %w", params.Symbol, err)
	}
	slog.Info("mint da coleção criado", "name", params.Name, "mint", mint.PublicKey().String(), "signature", sig.String())

	return Deployment{
		Address:         mint.PublicKey().String(),
		Deployer:        s.Address(),
		TransactionHash: sig.String(),
		ExplorerURL:     s.explorerURL("address", mint.PublicKey().String()),
	}, nil
}

// Mint cria o mint do ativo e a ATA do FeePayer e cunha params.Supply
// unidades, tudo em uma única transação.
func (s *SolanaIntegrationService) Mint(ctx context.Context, params MintParams) (MintReceipt, error) {
	if params.Supply == 0 {
		return MintReceipt{}, errors.New("o supply do mint deve ser maior que zero")
	}
	if _, err := solana.PublicKeyFromBase58(params.Contract); err != nil {
		return MintReceipt{}, fmt.Errorf("endereço de contrato %q inválido: %w", params.Contract, err)
	}

	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		return MintReceipt{}, fmt.Errorf("falha ao gerar chave do mint do ativo: %w", err)
	}
	payer := s.FeePayer.PublicKey()

	instructions, err := s.createMintInstructions(ctx, mint.PublicKey())
	if err != nil {
		return MintReceipt{}, err
	}

	ata, _, err := solana.FindAssociatedTokenAddress(payer, mint.PublicKey())
	if err != nil {
		return MintReceipt{}, fmt.Errorf("falha ao derivar token account: %w", err)
	}

	instructions = append(instructions,
		associatedtokenaccount.NewCreateInstruction(payer, payer, mint.PublicKey()).Build(),
		token.NewMintToInstruction(params.Supply, mint.PublicKey(), ata, payer, nil).Build(),
	)

	sig, err := s.send(ctx, instructions, mint)
	if err != nil {
		return MintReceipt{}, fmt.Errorf("falha ao cunhar ativo %s: %w", params.AssetID, err)
	}
	slog.Info("ativo cunhado",
		"asset_id", params.AssetID,
		"mint", mint.PublicKey().String(),
		"token_account", ata.String(),
		"supply", params.Supply,
		"signature", sig.String(),
	)

	return MintReceipt{
		TokenID:         mint.PublicKey().String(),
		TransactionHash: sig.String(),
		ExplorerURL:     s.explorerURL("tx", sig.String()),
	}, nil
}

// FeeQuote soma a taxa base por assinatura à mediana das taxas de prioridade
// recentes (micro-lamports por unidade de computação).
func (s *SolanaIntegrationService) FeeQuote(ctx context.Context) (FeeQuote, error) {
	fees, err := s.RPCClient.GetRecentPrioritizationFees(ctx, nil)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("falha ao buscar taxas de prioridade: %w", err)
	}

	values := make([]uint64, 0, len(fees))
	for _, f := range fees {
		values = append(values, f.PrioritizationFee)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	var priority uint64
	if len(values) > 0 {
		priority = values[len(values)/2]
	}

	recommendation := "Good time to transact"
	if priority > 100_000 {
		recommendation = "Network is busy, consider waiting for lower fees"
	}

	return FeeQuote{
		Network:        s.Network(),
		Unit:           "lamports",
		BaseFee:        lamportsPerSignature,
		PriorityFee:    priority,
		Suggested:      lamportsPerSignature + priority/1_000_000,
		NativeCost:     float64(lamportsPerSignature) / lamportsPerSOL,
		Recommendation: recommendation,
	}, nil
}

// TransactionStatus converte getSignatureStatuses em TxStatus.
func (s *SolanaIntegrationService) TransactionStatus(ctx context.Context, ref string) (TxStatus, error) {
	sig, err := solana.SignatureFromBase58(ref)
	if err != nil {
		return TxUnknown, fmt.Errorf("assinatura %q inválida: %w", ref, err)
	}

	resp, err := s.RPCClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return TxUnknown, fmt.Errorf("falha ao obter status de %s: %w", ref, err)
	}
	if resp == nil || len(resp.Value) == 0 || resp.Value[0] == nil {
		return TxUnknown, nil
	}

	st := resp.Value[0]
	if st.Err != nil {
		return TxFailed, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return TxFinalized, nil
	case rpc.ConfirmationStatusConfirmed:
		return TxConfirmed, nil
	default:
		return TxPending, nil
	}
}

func (s *SolanaIntegrationService) createMintInstructions(ctx context.Context, mint solana.PublicKey) ([]solana.Instruction, error) {
	lamports, err := s.RPCClient.GetMinimumBalanceForRentExemption(ctx, mintAccountSize, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("falha ao obter isenção de aluguel: %w", err)
	}
	payer := s.FeePayer.PublicKey()

	return []solana.Instruction{
		system.NewCreateAccountInstruction(lamports, mintAccountSize, token.ProgramID, payer, mint).Build(),
		token.NewInitializeMintInstruction(0, payer, payer, mint, solana.SysVarRentPubkey).Build(),
	}, nil
}

// send assina as instruções com o FeePayer e os signatários extras e envia
// a transação.
func (s *SolanaIntegrationService) send(ctx context.Context, instructions []solana.Instruction, signers ...solana.PrivateKey) (solana.Signature, error) {
	resp, err := s.RPCClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao obter blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		resp.Value.Blockhash,
		solana.TransactionPayer(s.FeePayer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao criar transação: %w", err)
	}

	keys := append([]solana.PrivateKey{s.FeePayer}, signers...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if key.Equals(keys[i].PublicKey()) {
				return &keys[i]
			}
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao assinar transação: %w", err)
	}

	sig, err := s.RPCClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("falha ao enviar transação: %w", err)
	}
	return sig, nil
}

func (s *SolanaIntegrationService) explorerURL(kind, id string) string {
	url := fmt.Sprintf("https://explorer.solana.com/%s/%s", kind, id)
	if s.Cluster != "" && s.Cluster != "mainnet-beta" {
		url += "?cluster=" + s.Cluster
	}
	return url
}
