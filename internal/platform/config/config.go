// Package config builds runtime configuration from MINTGATE_* environment
// variables so main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mintgate/internal/domain"
)

// Config is the full gateway configuration.
type Config struct {
	Addr              string
	OperatorJWTSecret string
	KafkaBrokers      []string
	IssuanceTopic     string
	ConsumerGroup     string
	RedisURL          string
	DatabaseURL       string
	RelayURL          string // empty means direct-only dispatch
	RelayTimeout      time.Duration
	RelayMaxRetries   int
	RelayBackoffBase  time.Duration
	TreasuryBalance   domain.Amount // genesis funding of the payout pool
	PayoutAmount      domain.Amount
	LowBalanceWarn    domain.Amount
	BackfillWindow    int
	BackfillInterval  time.Duration
	GatewayURL        string // sync worker only: where /chain/events lives
}

// FromEnv reads configuration from the environment, applying development
// defaults for everything but secrets.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:              envOr("MINTGATE_ADDR", ":8080"),
		OperatorJWTSecret: os.Getenv("MINTGATE_OPERATOR_JWT_SECRET"),
		IssuanceTopic:     envOr("MINTGATE_ISSUANCE_TOPIC", "mintgate.issuance"),
		ConsumerGroup:     envOr("MINTGATE_CONSUMER_GROUP", "mintgate-registry-sync"),
		RedisURL:          os.Getenv("MINTGATE_REDIS_URL"),
		DatabaseURL:       os.Getenv("MINTGATE_DATABASE_URL"),
		RelayURL:          os.Getenv("MINTGATE_RELAY_URL"),
		GatewayURL:        envOr("MINTGATE_GATEWAY_URL", "http://localhost:8080"),
	}
	if cfg.OperatorJWTSecret == "" {
		cfg.OperatorJWTSecret = "dev-secret-change-in-production"
	}
	if brokers := os.Getenv("MINTGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.RelayTimeout, err = durationOr("MINTGATE_RELAY_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RelayBackoffBase, err = durationOr("MINTGATE_RELAY_BACKOFF_BASE", 200*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.BackfillInterval, err = durationOr("MINTGATE_BACKFILL_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RelayMaxRetries, err = intOr("MINTGATE_RELAY_MAX_RETRIES", 3); err != nil {
		return Config{}, err
	}
	if cfg.BackfillWindow, err = intOr("MINTGATE_BACKFILL_WINDOW", 1000); err != nil {
		return Config{}, err
	}
	if cfg.TreasuryBalance, err = amountOr("MINTGATE_TREASURY_BALANCE", "0.3"); err != nil {
		return Config{}, err
	}
	if cfg.PayoutAmount, err = amountOr("MINTGATE_PAYOUT_AMOUNT", "0.03"); err != nil {
		return Config{}, err
	}
	if cfg.LowBalanceWarn, err = amountOr("MINTGATE_LOW_BALANCE_THRESHOLD", "0.1"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func amountOr(key, def string) (domain.Amount, error) {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	amount, err := domain.ParseAmount(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return amount, nil
}
