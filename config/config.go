// Package config carrega as configurações do .env, de um arquivo YAML opcional
// e do ambiente do processo, nessa ordem crescente de precedência.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageJSON     = "json"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	ChainSimulated = "simulated"
	ChainSolana    = "solana"
)

type Config struct {
	Port          string `yaml:"port"`
	StorageDriver string `yaml:"storage_driver"`
	DataDir       string `yaml:"data_dir"`
	DatabaseURL   string `yaml:"database_url"`

	ChainDriver        string        `yaml:"chain_driver"`
	SolanaRPCURL       string        `yaml:"solana_rpc_url"`
	SolanaCluster      string        `yaml:"solana_cluster"`
	SolanaFeePayerKey  string        `yaml:"solana_fee_payer_private_key"`
	ContractAddress    string        `yaml:"contract_address"`
	Currency           string        `yaml:"currency"`
	ChainTimeout       time.Duration `yaml:"chain_timeout"`
	ConfirmInterval    time.Duration `yaml:"confirm_interval"`
	ConfirmMaxAttempts int           `yaml:"confirm_max_attempts"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	EventsChannel string `yaml:"events_channel"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	TrustXFF       bool    `yaml:"trust_xff"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Defaults retorna a configuração usada quando nada é definido.
func Defaults() Config {
	return Config{
		Port:               "3000",
		StorageDriver:      StorageJSON,
		DataDir:            ".",
		ChainDriver:        ChainSimulated,
		SolanaRPCURL:       "https://api.devnet.solana.com",
		SolanaCluster:      "devnet",
		Currency:           "SOL",
		ChainTimeout:       60 * time.Second,
		ConfirmInterval:    5 * time.Second,
		ConfirmMaxAttempts: 60,
		EventsChannel:      "marketplace.events",
		RateLimitBurst:     20,
		ShutdownTimeout:    15 * time.Second,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load lê o .env (se existir), depois CONFIG_FILE (se definido) e por fim o
// ambiente.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("arquivo .env não encontrado, usando variáveis de ambiente")
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse aplica os dados YAML sobre cfg.
func (c *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("falha ao interpretar YAML de configuração: %w", err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("falha ao ler arquivo de configuração %s: %w", path, err)
	}
	return c.Parse(data)
}

func (c *Config) mergeEnv() error {
	str(&c.Port, "PORT")
	str(&c.StorageDriver, "STORAGE_DRIVER")
	str(&c.DataDir, "DATA_DIR")
	str(&c.DatabaseURL, "DATABASE_URL")
	str(&c.ChainDriver, "CHAIN_DRIVER")
	str(&c.SolanaRPCURL, "SOLANA_RPC_URL")
	str(&c.SolanaCluster, "SOLANA_CLUSTER")
	str(&c.SolanaFeePayerKey, "SOLANA_FEE_PAYER_PRIVATE_KEY")
	str(&c.ContractAddress, "CONTRACT_ADDRESS")
	str(&c.Currency, "CURRENCY")
	str(&c.RedisAddr, "REDIS_ADDR")
	str(&c.RedisPassword, "REDIS_PASSWORD")
	str(&c.EventsChannel, "EVENTS_CHANNEL")
	str(&c.LogLevel, "LOG_LEVEL")
	str(&c.LogFormat, "LOG_FORMAT")

	return errors.Join(
		dur(&c.ChainTimeout, "CHAIN_TIMEOUT"),
		dur(&c.ConfirmInterval, "CONFIRM_INTERVAL"),
		dur(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
		num(&c.ConfirmMaxAttempts, "CONFIRM_MAX_ATTEMPTS"),
		num(&c.RedisDB, "REDIS_DB"),
		num(&c.RateLimitBurst, "RATE_LIMIT_BURST"),
		float(&c.RateLimitRPS, "RATE_LIMIT_RPS"),
		boolean(&c.TrustXFF, "TRUST_XFF"),
	)
}

// Validate recusa combinações com as quais o servidor não consegue subir.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageJSON, StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL é obrigatório quando STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q desconhecido", c.StorageDriver)
	}

	switch c.ChainDriver {
	case ChainSimulated:
	case ChainSolana:
		if c.SolanaFeePayerKey == "" {
			return errors.New("SOLANA_FEE_PAYER_PRIVATE_KEY é obrigatório quando CHAIN_DRIVER=solana")
		}
	default:
		return fmt.Errorf("CHAIN_DRIVER %q desconhecido", c.ChainDriver)
	}

	if c.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS não pode ser negativo")
	}
	return nil
}

// Addr é o endereço de escuta.
func (c Config) Addr() string {
	return ":" + c.Port
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func dur(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s inválido: %w", key, err)
	}
	*dst = d
	return nil
}

func num(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s inválido: %w", key, err)
	}
	*dst = n
	return nil
}

func boolean(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s inválido: %w", key, err)
	}
	*dst = b
	return nil
}

func float(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s inválido: %w", key, err)
	}
	*dst = f
	return nil
}
