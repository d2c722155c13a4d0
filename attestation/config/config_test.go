package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg := New(Config{})

	assert.Equal(t, DefaultRPC, cfg.RPC)
	assert.Equal(t, DefaultRegistryAddress, cfg.RegistryAddress)
	assert.Equal(t, DefaultCredentialType, cfg.CredentialType)
	assert.Equal(t, DefaultIssuerCacheTTL, cfg.IssuerCacheTTL)
	assert.Zero(t, cfg.ResolveConcurrency)
}

func TestNewKeepsProvidedValues(t *testing.T) {
	cfg := New(Config{
		RPC:                "https://rpc.example.org",
		RegistryAddress:    "0x75e7b09a24bce5a921babe27b62ec7bfe2230d6a",
		CredentialType:     "pila.attestation.Custom",
		IssuerCacheTTL:     time.Minute,
		ResolveConcurrency: 4,
	})

	assert.Equal(t, "https://rpc.example.org", cfg.RPC)
	assert.Equal(t, "0x75e7b09a24bce5a921babe27b62ec7bfe2230d6a", cfg.RegistryAddress)
	assert.Equal(t, "pila.attestation.Custom", cfg.CredentialType)
	assert.Equal(t, time.Minute, cfg.IssuerCacheTTL)
	assert.Equal(t, 4, cfg.ResolveConcurrency)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ATTESTATION_RPC_URL", "https://rpc.example.org")
	t.Setenv("ATTESTATION_REGISTRY_ADDRESS", "0x75e7b09a24bce5a921babe27b62ec7bfe2230d6a")
	t.Setenv("ATTESTATION_ISSUER_CACHE_TTL", "90s")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.org", cfg.RPC)
	assert.Equal(t, "0x75e7b09a24bce5a921babe27b62ec7bfe2230d6a", cfg.RegistryAddress)
	assert.Equal(t, 90*time.Second, cfg.IssuerCacheTTL)
	// Unset values fall back to defaults.
	assert.Equal(t, DefaultCredentialType, cfg.CredentialType)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:   "Defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name: "Malformed registry address",
			mutate: func(cfg *Config) {
				cfg.RegistryAddress = "not-an-address"
			},
			expectError: true,
		},
		{
			name: "Malformed RPC URL",
			mutate: func(cfg *Config) {
				cfg.RPC = "::not a url::"
			},
			expectError: true,
		},
		{
			name: "Missing credential type",
			mutate: func(cfg *Config) {
				cfg.CredentialType = ""
			},
			expectError: true,
		},
		{
			name: "Negative concurrency",
			mutate: func(cfg *Config) {
				cfg.ResolveConcurrency = -1
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New(Config{})
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
