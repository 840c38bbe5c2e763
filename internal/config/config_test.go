package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name string
		addr string
		dsn  string
		key  string
		orig []string
		opts []Option
		err  bool
	}{
		{
			name: "valid config",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
			err:  false,
		},
		{
			name: "empty address",
			addr: "",
			dsn:  dsn,
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty DSN",
			addr: addr,
			dsn:  "",
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty signing key",
			addr: addr,
			dsn:  dsn,
			key:  "",
			orig: orig,
			err:  true,
		},
		{
			name: "invalid signing key",
			addr: addr,
			dsn:  dsn,
			key:  "not_base64!",
			orig: orig,
			err:  true,
		},
		{
			name: "zero store timeout",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
			opts: []Option{WithStoreTimeout(0)},
			err:  true,
		},
		{
			name: "negative max message length",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
			opts: []Option{WithMaxMessageLength(-1)},
			err:  true,
		},
		{
			name: "zero message burst",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
			opts: []Option{WithMessageRate(1, 0)},
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.dsn, tc.key, tc.orig, tc.opts...)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
			assert.Equal(t, DefaultStoreTimeout, config.StoreTimeout, "expected default store timeout")
			assert.Equal(t, DefaultMaxMessageLength, config.MaxMessageLength, "expected default max message length")
			assert.Equal(t, DefaultMessageRate, config.MessageRate, "expected default message rate")
			assert.Equal(t, DefaultMessageBurst, config.MessageBurst, "expected default message burst")
		})
	}
}

func TestNewConfig_Options(t *testing.T) {
	cfg, err := NewConfig("localhost:8080", "dsn", "c29tZV9zZWNyZXQ=", nil,
		WithStoreTimeout(2*time.Second),
		WithMaxMessageLength(500),
		WithMessageRate(2.5, 4),
	)

	assert.NoError(t, err, "expected no error with valid options")
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout, "expected store timeout override")
	assert.Equal(t, 500, cfg.MaxMessageLength, "expected max message length override")
	assert.Equal(t, 2.5, cfg.MessageRate, "expected message rate override")
	assert.Equal(t, 4, cfg.MessageBurst, "expected message burst override")
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
		{
			name:         "empty base64 secret",
			base64Secret: "",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
