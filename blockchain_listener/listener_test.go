package blockchain_listener_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ferreirogomes/nftmarket/blockchain_listener"
	"github.com/ferreirogomes/nftmarket/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	statuses map[string]services.TxStatus
	err      error
	calls    int
}

func (f *fakeSource) TransactionStatus(_ context.Context, ref string) (services.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return services.TxUnknown, f.err
	}
	return f.statuses[ref], nil
}

func (f *fakeSource) set(ref string, st services.TxStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[ref] = st
}

type confirmations struct {
	mu   sync.Mutex
	refs []string
}

func (c *confirmations) record(_ context.Context, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
}

func (c *confirmations) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.refs...)
}

func TestPollConfirmsFinalizedOnce(t *testing.T) {
	src := &fakeSource{statuses: map[string]services.TxStatus{"tx1": services.TxPending}}
	got := &confirmations{}
	l := blockchain_listener.NewBlockchainListener(src, got.record, time.Hour, 10)

	l.Watch("tx1")
	l.Watch("tx1")
	l.Watch("")
	assert.Equal(t, 1, l.Pending())

	l.Poll(context.Background())
	assert.Empty(t, got.list())
	assert.Equal(t, 1, l.Pending())

	src.set("tx1", services.TxFinalized)
	l.Poll(context.Background())
	l.Poll(context.Background())

	assert.Equal(t, []string{"tx1"}, got.list())
	assert.Equal(t, 0, l.Pending())
}

func TestPollDropsFailedTransactions(t *testing.T) {
	src := &fakeSource{statuses: map[string]services.TxStatus{"bad": services.TxFailed}}
	got := &confirmations{}
	l := blockchain_listener.NewBlockchainListener(src, got.record, time.Hour, 10)

	l.Watch("bad")
	l.Poll(context.Background())

	assert.Equal(t, 0, l.Pending())
	assert.Empty(t, got.list())
}

func TestPollGivesUpAfterMaxAttempts(t *testing.T) {
	src := &fakeSource{statuses: map[string]services.TxStatus{}, err: errors.New("rpc down")}
	l := blockchain_listener.NewBlockchainListener(src, nil, time.Hour, 3)

	l.Watch("tx")
	for i := 0; i < 3; i++ {
		l.Poll(context.Background())
	}

	assert.Equal(t, 0, l.Pending())
	assert.Equal(t, 3, src.calls)
}

func TestStartListeningPollsUntilCancelled(t *testing.T) {
	src := &fakeSource{statuses: map[string]services.TxStatus{"tx": services.TxFinalized}}
	got := &confirmations{}
	l := blockchain_listener.NewBlockchainListener(src, got.record, 5*time.Millisecond, 10)
	l.Watch("tx")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.StartListening(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(got.list()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
