// Package events distribui a atividade do marketplace para os consumidores interessados.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AssetCreated   = "asset.created"
	AssetTokenized = "asset.tokenized"
	AssetConfirmed = "asset.confirmed"
	SaleCompleted  = "sale.completed"
	ContractReady  = "contract.deployed"
)

// Event é uma ocorrência do marketplace.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// New carimba o evento com o horário atual.
func New(eventType string, data any) Event {
	return Event{Type: eventType, At: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher escreve os eventos no log estruturado.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("evento do marketplace", "type", ev.Type, "at", ev.At)
	return nil
}

// RedisPublisher publica eventos em JSON em um canal pub/sub do Redis.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

type RedisOption func(*RedisPublisher)

func WithChannel(channel string) RedisOption {
	return func(p *RedisPublisher) {
		if channel != "" {
			p.channel = channel
		}
	}
}

func NewRedisPublisher(client redis.UniversalClient, opts ...RedisOption) *RedisPublisher {
	p := &RedisPublisher{client: client, channel: "marketplace.events"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisPublisher) Channel() string { return p.channel }

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("falha ao publicar %s em %s: %w", ev.Type, p.channel, err)
	}
	return nil
}

// Encode gera a forma serializada de um evento.
func Encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("falha ao codificar evento %s: %w", ev.Type, err)
	}
	return b, nil
}

// Connect conecta ao Redis e verifica a conexão.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("falha ao pingar redis %s: %w", addr, err)
	}
	return rdb, nil
}
