package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/ferreirogomes/nftmarket/events"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	ev := events.New(events.SaleCompleted, map[string]int{"quantity": 3})

	b, err := events.Encode(ev)
	require.NoError(t, err)

	var decoded struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, events.SaleCompleted, decoded.Type)
	assert.Equal(t, 3, decoded.Data["quantity"])
}

func TestEncodeRejectsUnencodableData(t *testing.T) {
	_, err := events.Encode(events.New(events.AssetCreated, make(chan int)))
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := events.LogPublisher{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	require.NoError(t, p.Publish(context.Background(), events.New(events.AssetTokenized, nil)))
	assert.Contains(t, buf.String(), `"type":"asset.tokenized"`)
}

func TestRedisPublisherChannel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	assert.Equal(t, "marketplace.events", events.NewRedisPublisher(client).Channel())
	assert.Equal(t, "custom", events.NewRedisPublisher(client, events.WithChannel("custom")).Channel())
	assert.Equal(t, "marketplace.events", events.NewRedisPublisher(client, events.WithChannel("")).Channel())
}

func TestRedisPublisherDeliversEvents(t *testing.T) {
	addr := redisAddr(t)
	ctx := context.Background()

	client, err := events.Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	sub := client.Subscribe(ctx, "test.events")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	p := events.NewRedisPublisher(client, events.WithChannel("test.events"))
	require.NoError(t, p.Publish(ctx, events.New(events.ContractReady, "addr")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"contract.deployed"`)
}

func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	return addr
}
