package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC responde às chamadas RPC do gateway a partir da memória.
type fakeRPC struct {
	sent     []*solana.Transaction
	sendErr  error
	statuses map[solana.Signature]*rpc.SignatureStatusesResult
	fees     []rpc.PriorizationFeeResult
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: solana.HashFromBytes(make([]byte, 32))},
	}, nil
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(context.Context, uint64, rpc.CommitmentType) (uint64, error) {
	return 1_461_600, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range sigs {
		out.Value = append(out.Value, f.statuses[sig])
	}
	return out, nil
}

func (f *fakeRPC) GetRecentPrioritizationFees(context.Context, solana.PublicKeySlice) ([]rpc.PriorizationFeeResult, error) {
	return f.fees, nil
}

func newTestSolana(t *testing.T, cluster string) (*SolanaIntegrationService, *fakeRPC) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	fake := &fakeRPC{statuses: map[solana.Signature]*rpc.SignatureStatusesResult{}}
	return &SolanaIntegrationService{RPCClient: fake, FeePayer: key, Cluster: cluster}, fake
}

func TestSolanaDeployCreatesCollectionMint(t *testing.T) {
	s, fake := newTestSolana(t, "devnet")

	dep, err := s.Deploy(context.Background(), DeployParams{Name: CollectionName, Symbol: CollectionSymbol})

	require.NoError(t, err)
	require.Len(t, fake.sent, 1)
	tx := fake.sent[0]
	assert.Len(t, tx.Message.Instructions, 2)
	assert.Len(t, tx.Signatures, 2)
	assert.Equal(t, tx.Signatures[0].String(), dep.TransactionHash)
	assert.Equal(t, s.Address(), dep.Deployer)
	assert.Equal(t, "https://explorer.solana.com/address/"+dep.Address+"?cluster=devnet", dep.ExplorerURL)

	_, err = solana.PublicKeyFromBase58(dep.Address)
	assert.NoError(t, err)
}

func TestSolanaMint(t *testing.T) {
	s, fake := newTestSolana(t, "mainnet-beta")
	contract := solana.NewWallet().PublicKey().String()

	receipt, err := s.Mint(context.Background(), MintParams{Contract: contract, AssetID: "a1", Supply: 15})

	require.NoError(t, err)
	require.Len(t, fake.sent, 1)
	tx := fake.sent[0]
	assert.Len(t, tx.Message.Instructions, 4)
	assert.Equal(t, "https://explorer.solana.com/tx/"+receipt.TransactionHash, receipt.ExplorerURL)

	mint, err := solana.PublicKeyFromBase58(receipt.TokenID)
	require.NoError(t, err)
	assert.Contains(t, tx.Message.AccountKeys, mint)
}

func TestSolanaMintRejectsBadInput(t *testing.T) {
	s, fake := newTestSolana(t, "devnet")

	_, err := s.Mint(context.Background(), MintParams{Contract: solana.NewWallet().PublicKey().String(), Supply: 0})
	assert.Error(t, err)

	_, err = s.Mint(context.Background(), MintParams{Contract: "not-an-address", Supply: 1})
	assert.Error(t, err)
	assert.Empty(t, fake.sent)
}

func TestSolanaSendFailureIsWrapped(t *testing.T) {
	s, fake := newTestSolana(t, "devnet")
	fake.sendErr = errors.New("insufficient lamports")

	_, err := s.Deploy(context.Background(), DeployParams{Symbol: "HACK"})

	require.Error(t, err)
	assert.ErrorIs(t, err, fake.sendErr)
}

func TestSolanaTransactionStatus(t *testing.T) {
	s, fake := newTestSolana(t, "devnet")

	finalized := solana.SignatureFromBytes(bytesOf(1))
	confirmed := solana.SignatureFromBytes(bytesOf(2))
	failed := solana.SignatureFromBytes(bytesOf(3))
	unknown := solana.SignatureFromBytes(bytesOf(4))
	fake.statuses[finalized] = &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}
	fake.statuses[confirmed] = &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
	fake.statuses[failed] = &rpc.SignatureStatusesResult{Err: map[string]any{"InstructionError": []any{0, "Custom"}}}

	cases := map[solana.Signature]TxStatus{
		finalized: TxFinalized,
		confirmed: TxConfirmed,
		failed:    TxFailed,
		unknown:   TxUnknown,
	}
	for sig, want := range cases {
		got, err := s.TransactionStatus(context.Background(), sig.String())
		require.NoError(t, err)
		assert.Equal(t, want, got, sig.String())
	}

	_, err := s.TransactionStatus(context.Background(), "sim_tx_not_base58!")
	assert.Error(t, err)
}

func TestSolanaFeeQuoteUsesMedianPriorityFee(t *testing.T) {
	s, fake := newTestSolana(t, "devnet")
	fake.fees = []rpc.PriorizationFeeResult{
		{PrioritizationFee: 300_000},
		{PrioritizationFee: 10},
		{PrioritizationFee: 50},
	}

	q, err := s.FeeQuote(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Solana devnet", q.Network)
	assert.Equal(t, uint64(50), q.PriorityFee)
	assert.Equal(t, uint64(lamportsPerSignature), q.Suggested)
	assert.Equal(t, "Good time to transact", q.Recommendation)
}

func bytesOf(b byte) []byte {
	out := make([]byte, 64)
	for i := range out {
		out[i] = b
	}
	return out
}
