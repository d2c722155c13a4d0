// Package config holds configuration for attestation verification.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Default values
const (
	DefaultRPC             = "https://rpc-testnet.pila.vn"
	DefaultRegistryAddress = "0x0000000000000000000000000000000000019999"
	DefaultCredentialType  = "pila.attestation.CredentialAttestation"
	DefaultIssuerCacheTTL  = 5 * time.Minute
)

// Config holds the configuration for the verification service.
type Config struct {
	RPC                string        `env:"ATTESTATION_RPC_URL" validate:"required,url"`
	RegistryAddress    string        `env:"ATTESTATION_REGISTRY_ADDRESS" validate:"required,eth_addr"`
	CredentialType     string        `env:"ATTESTATION_CREDENTIAL_TYPE" validate:"required"`
	IssuerCacheTTL     time.Duration `env:"ATTESTATION_ISSUER_CACHE_TTL"`
	ResolveConcurrency int           `env:"ATTESTATION_RESOLVE_CONCURRENCY" validate:"gte=0"`
}

// New creates a new Config instance with the provided values.
// If a value is empty/zero, it will use the default value.
// Pass an empty Config{} to use all defaults.
func New(cfg Config) *Config {
	result := &Config{
		RPC:             DefaultRPC,
		RegistryAddress: DefaultRegistryAddress,
		CredentialType:  DefaultCredentialType,
		IssuerCacheTTL:  DefaultIssuerCacheTTL,
	}

	if cfg.RPC != "" {
		result.RPC = cfg.RPC
	}
	if cfg.RegistryAddress != "" {
		result.RegistryAddress = cfg.RegistryAddress
	}
	if cfg.CredentialType != "" {
		result.CredentialType = cfg.CredentialType
	}
	if cfg.IssuerCacheTTL != 0 {
		result.IssuerCacheTTL = cfg.IssuerCacheTTL
	}
	if cfg.ResolveConcurrency != 0 {
		result.ResolveConcurrency = cfg.ResolveConcurrency
	}

	return result
}

// FromEnv builds a Config from the environment, applying defaults for unset
// values and validating the result.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	result := New(cfg)
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
