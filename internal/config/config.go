package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultStoreTimeout     = 5 * time.Second
	DefaultMaxMessageLength = 1000
	DefaultMessageRate      = 5.0
	DefaultMessageBurst     = 10
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	// StoreTimeout bounds every record store call made on behalf of a request.
	StoreTimeout     time.Duration
	MaxMessageLength int
	// MessageRate and MessageBurst throttle send_message events per connection.
	MessageRate  float64
	MessageBurst int
}

// Option overrides one of the defaults applied by NewConfig.
type Option func(*Config)

func WithStoreTimeout(d time.Duration) Option {
	return func(c *Config) { c.StoreTimeout = d }
}

func WithMaxMessageLength(n int) Option {
	return func(c *Config) { c.MaxMessageLength = n }
}

func WithMessageRate(rate float64, burst int) Option {
	return func(c *Config) {
		c.MessageRate = rate
		c.MessageBurst = burst
	}
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}

	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, opts ...Option) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:      databaseDSN,
		ServerAddr:       serverAddr,
		SigningKey:       signingKey,
		AllowedOrigins:   allowedOrigins,
		StoreTimeout:     DefaultStoreTimeout,
		MaxMessageLength: DefaultMaxMessageLength,
		MessageRate:      DefaultMessageRate,
		MessageBurst:     DefaultMessageBurst,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("store timeout must be positive")
	}
	if cfg.MaxMessageLength <= 0 {
		return nil, fmt.Errorf("max message length must be positive")
	}
	if cfg.MessageRate <= 0 || cfg.MessageBurst <= 0 {
		return nil, fmt.Errorf("message rate and burst must be positive")
	}

	return cfg, nil
}
