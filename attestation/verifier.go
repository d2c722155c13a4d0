// Package attestation is the entry point external collaborators call to
// verify credential attestations. The Verifier wraps the reconciler, maps
// every failure into the outcome taxonomy and always returns a well-formed
// result — no error crosses this boundary.
package attestation

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/pilacorp/go-attestation-verifier/attestation/config"
	"github.com/pilacorp/go-attestation-verifier/attestation/issuercache"
	"github.com/pilacorp/go-attestation-verifier/attestation/ledger"
	"github.com/pilacorp/go-attestation-verifier/attestation/reconciler"
)

// Re-exported core types, so callers only import this package.
type (
	Outcome         = reconciler.Outcome
	Result          = reconciler.Result
	AttestationView = reconciler.AttestationView
)

const (
	OutcomeError       = reconciler.OutcomeError
	OutcomeNotVerified = reconciler.OutcomeNotVerified
	OutcomeInvalid     = reconciler.OutcomeInvalid
	OutcomeRevoked     = reconciler.OutcomeRevoked
	OutcomeExpired     = reconciler.OutcomeExpired
	OutcomeVerified    = reconciler.OutcomeVerified
)

// Verifier is the verification service facade.
type Verifier struct {
	rec    *reconciler.Reconciler
	logger *zap.Logger
}

// VerifierOpt configures a Verifier.
type VerifierOpt func(*verifierOptions)

type verifierOptions struct {
	credentialType string
	logger         *zap.Logger
	issuerSource   ledger.IssuerSource
	cacheTTL       time.Duration
	concurrency    int
	claimsSchema   []byte
}

// WithCredentialType overrides the credential record type to verify.
func WithCredentialType(credentialType string) VerifierOpt {
	return func(o *verifierOptions) {
		if credentialType != "" {
			o.credentialType = credentialType
		}
	}
}

// WithLogger installs a logger. The default discards everything.
func WithLogger(logger *zap.Logger) VerifierOpt {
	return func(o *verifierOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIssuerSource enables the issuer authorization cache over the given
// source. Without it, issuer authorization is not checked and the
// ledger-computed status stands alone.
func WithIssuerSource(source ledger.IssuerSource) VerifierOpt {
	return func(o *verifierOptions) {
		o.issuerSource = source
	}
}

// WithIssuerCacheTTL overrides the issuer cache freshness window.
func WithIssuerCacheTTL(ttl time.Duration) VerifierOpt {
	return func(o *verifierOptions) {
		o.cacheTTL = ttl
	}
}

// WithResolveConcurrency allows up to n per-candidate status queries in
// flight at once.
func WithResolveConcurrency(n int) VerifierOpt {
	return func(o *verifierOptions) {
		o.concurrency = n
	}
}

// WithClaimsSchema validates each record's claims document against the given
// JSON schema before the record may act as a candidate.
func WithClaimsSchema(schemaJSON []byte) VerifierOpt {
	return func(o *verifierOptions) {
		o.claimsSchema = schemaJSON
	}
}

// NewVerifier creates a Verifier over the given ledger client.
func NewVerifier(client ledger.Client, opts ...VerifierOpt) (*Verifier, error) {
	options := &verifierOptions{
		credentialType: config.DefaultCredentialType,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	recOpts := []reconciler.Option{
		reconciler.WithLogger(options.logger),
		reconciler.WithResolveConcurrency(options.concurrency),
	}

	if options.issuerSource != nil {
		cacheOpts := []issuercache.Option{issuercache.WithLogger(options.logger)}
		if options.cacheTTL > 0 {
			cacheOpts = append(cacheOpts, issuercache.WithTTL(options.cacheTTL))
		}
		recOpts = append(recOpts, reconciler.WithIssuerAuthorizer(issuercache.New(options.issuerSource, cacheOpts...)))
	}

	if len(options.claimsSchema) > 0 {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(options.claimsSchema))
		if err != nil {
			return nil, fmt.Errorf("failed to compile claims schema: %w", err)
		}
		recOpts = append(recOpts, reconciler.WithClaimsSchema(schema))
	}

	return &Verifier{
		rec:    reconciler.New(client, options.credentialType, recOpts...),
		logger: options.logger,
	}, nil
}

// NewVerifierFromConfig dials the configured ledger RPC endpoint and wires a
// Verifier over the registry contract, issuer cache included.
func NewVerifierFromConfig(ctx context.Context, cfg *config.Config, opts ...VerifierOpt) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := ledger.Dial(ctx, ledger.ClientConfig{
		RPCURL:          cfg.RPC,
		RegistryAddress: cfg.RegistryAddress,
	})
	if err != nil {
		return nil, err
	}

	base := []VerifierOpt{
		WithCredentialType(cfg.CredentialType),
		WithIssuerSource(client),
		WithIssuerCacheTTL(cfg.IssuerCacheTTL),
		WithResolveConcurrency(cfg.ResolveConcurrency),
	}

	return NewVerifier(client, append(base, opts...)...)
}

// Verify checks whether the subject holds a valid, binding, non-expired,
// non-revoked credential attestation. A malformed subject identifier yields
// an Error result without contacting the ledger. Verify always returns a
// result; it never returns an error or panics across the boundary.
func (v *Verifier) Verify(ctx context.Context, subject string) *Result {
	logger := v.logger.With(
		zap.String("verificationId", uuid.NewString()),
		zap.String("subject", subject),
	)

	if !common.IsHexAddress(subject) {
		logger.Info("rejected malformed subject identifier")
		return &Result{
			Status:  OutcomeError,
			Details: fmt.Sprintf("invalid subject identifier %q: not a ledger address", subject),
		}
	}

	result := v.rec.Reconcile(ctx, common.HexToAddress(subject))
	logger.Info("verification completed", zap.Stringer("status", result.Status))

	return result
}
