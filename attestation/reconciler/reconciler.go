// Package reconciler decides, for one claimed subject, whether a valid,
// binding, non-expired, non-revoked credential attestation exists on the
// ledger. A subject may hold zero, one or many candidate records, each
// independently issued, expirable, revocable and transferable; the
// reconciler combines all of them into a single verdict with deterministic
// precedence, tolerating per-candidate failures.
package reconciler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-attestation-verifier/attestation/ledger"
)

// IssuerAuthorizer yields the set of identities currently authorized to
// issue attestations. The issuer cache implements it.
type IssuerAuthorizer interface {
	Get(ctx context.Context, forceRefresh bool) (map[common.Address]struct{}, error)
}

// Reconciler evaluates all candidate attestations for a subject and merges
// them into one Result. It keeps no state across calls.
type Reconciler struct {
	client      ledger.Client
	extractor   *Extractor
	issuers     IssuerAuthorizer
	logger      *zap.Logger
	concurrency int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithIssuerAuthorizer installs the trusted-issuer source consulted before a
// live status may read as Verified.
func WithIssuerAuthorizer(a IssuerAuthorizer) Option {
	return func(r *Reconciler) {
		r.issuers = a
	}
}

// WithLogger installs a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolveConcurrency allows up to n status queries in flight at once.
// Values below two keep resolution sequential. Outstanding queries are
// cancelled once a Verified candidate lands; the merge stays deterministic
// regardless of completion order.
func WithResolveConcurrency(n int) Option {
	return func(r *Reconciler) {
		r.concurrency = n
	}
}

// WithClaimsSchema makes the extractor validate each record's claims
// document against the schema.
func WithClaimsSchema(schema *gojsonschema.Schema) Option {
	return func(r *Reconciler) {
		r.extractor = NewExtractor(r.extractor.CredentialType(), schema)
	}
}

// New creates a Reconciler over the given ledger client for one credential
// type.
func New(client ledger.Client, credentialType string, opts ...Option) *Reconciler {
	r := &Reconciler{
		client:    client,
		extractor: NewExtractor(credentialType, nil),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile evaluates every candidate attestation the ledger associates with
// the subject and returns the merged verdict. The only fatal path is the
// enumeration call itself; every failure inside the per-candidate loop is
// absorbed into the merge.
func (r *Reconciler) Reconcile(ctx context.Context, subject common.Address) *Result {
	records, err := r.client.ListCredentialRecords(ctx, subject, r.extractor.CredentialType())
	if err != nil {
		return &Result{
			Status:  OutcomeError,
			Details: fmt.Sprintf("failed to enumerate credential records for %s: %v", subject.Hex(), err),
		}
	}

	if len(records) == 0 {
		return &Result{Status: OutcomeNotVerified, Details: "no candidates found"}
	}

	candidates := r.extractAll(records)
	if len(candidates) == 0 {
		return &Result{Status: OutcomeNotVerified, Details: "no valid attestation found from an authorized issuer"}
	}

	authorized := r.authorizedIssuers(ctx)

	var results []*Result
	if r.concurrency > 1 && len(candidates) > 1 {
		results = r.resolveConcurrent(ctx, candidates, authorized)
	} else {
		results = r.resolveSequential(ctx, candidates, authorized)
	}

	return r.merge(results)
}

// extractAll projects raw records into candidates, skipping structural
// mismatches. Enumeration order is preserved.
func (r *Reconciler) extractAll(records []ledger.RawRecord) []*Candidate {
	candidates := make([]*Candidate, 0, len(records))
	for _, rec := range records {
		cand, err := r.extractor.Extract(rec)
		if err != nil {
			r.logger.Debug("skipping record",
				zap.String("objectId", ObjectIDHex(rec.ObjectID)),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

// resolveSequential evaluates candidates in enumeration order, stopping at
// the first Verified result.
func (r *Reconciler) resolveSequential(ctx context.Context, candidates []*Candidate, authorized map[common.Address]struct{}) []*Result {
	results := make([]*Result, 0, len(candidates))
	for _, cand := range candidates {
		res := r.evaluate(ctx, cand, authorized)
		results = append(results, res)
		if res.Status == OutcomeVerified {
			break
		}
	}
	return results
}

// resolveConcurrent evaluates candidates with bounded parallelism. Results
// land in a slice indexed by enumeration position so completion order never
// leaks into the merge; remaining queries are cancelled once a Verified
// candidate is found.
func (r *Reconciler) resolveConcurrent(ctx context.Context, candidates []*Candidate, authorized map[common.Address]struct{}) []*Result {
	results := make([]*Result, len(candidates))

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var verified atomic.Bool
	g, gctx := errgroup.WithContext(gctx)
	g.SetLimit(r.concurrency)

	for i, cand := range candidates {
		if verified.Load() {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := r.evaluate(gctx, cand, authorized)
			results[i] = res
			if res.Status == OutcomeVerified {
				verified.Store(true)
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]*Result, 0, len(results))
	for _, res := range results {
		if res != nil {
			merged = append(merged, res)
		}
	}
	return merged
}

// evaluate runs one candidate through ownership binding, status resolution
// and outcome mapping.
func (r *Reconciler) evaluate(ctx context.Context, cand *Candidate, authorized map[common.Address]struct{}) *Result {
	objectID := ObjectIDHex(cand.ObjectID)

	// A record moved away from its intended holder is structurally invalid
	// no matter what its raw status says.
	if cand.CurrentOwner != cand.Recipient {
		return &Result{
			Status:      OutcomeInvalid,
			Details:     fmt.Sprintf("attestation %s is held by %s, not its recipient %s", objectID, cand.CurrentOwner.Hex(), cand.Recipient.Hex()),
			Attestation: cand.View(),
		}
	}

	env, err := r.client.EvaluateEffectiveStatus(ctx, cand.ObjectID)
	if err != nil {
		r.logger.Debug("status evaluation failed", zap.String("objectId", objectID), zap.Error(err))
		return &Result{
			Status:      OutcomeError,
			Details:     fmt.Sprintf("could not resolve status of attestation %s: %v", objectID, err),
			Attestation: cand.View(),
		}
	}

	status, err := DecodeEffectiveStatus(env.DeclaredType, env.Payload)
	if err != nil {
		r.logger.Debug("status decode failed", zap.String("objectId", objectID), zap.Error(err))
		return &Result{
			Status:      OutcomeError,
			Details:     fmt.Sprintf("could not resolve status of attestation %s: %v", objectID, err),
			Attestation: cand.View(),
		}
	}

	r.logger.Debug("candidate status resolved",
		zap.String("objectId", objectID),
		zap.Stringer("effectiveStatus", status))

	switch status {
	case StatusExpired:
		return &Result{
			Status:      OutcomeExpired,
			Details:     fmt.Sprintf("attestation %s has expired", objectID),
			Attestation: cand.View(),
		}
	case StatusRevoked:
		return &Result{
			Status:      OutcomeRevoked,
			Details:     fmt.Sprintf("attestation %s was revoked by its issuer", objectID),
			Attestation: cand.View(),
		}
	}

	// Live status. The ledger is authoritative, but a live attestation from
	// an issuer no longer in the authorized set must not read as Verified.
	if authorized != nil {
		if _, ok := authorized[cand.Issuer]; !ok {
			return &Result{
				Status:      OutcomeInvalid,
				Details:     fmt.Sprintf("attestation %s was issued by %s, which is not an authorized issuer", objectID, cand.Issuer.Hex()),
				Attestation: cand.View(),
			}
		}
	}

	return &Result{
		Status:      OutcomeVerified,
		Details:     fmt.Sprintf("attestation %s is active and held by its recipient", objectID),
		Attestation: cand.View(),
	}
}

// merge folds per-candidate results into one verdict using the strict
// priority order. A Verified result wins outright; otherwise the
// highest-priority result found earliest in enumeration order is returned.
func (r *Reconciler) merge(results []*Result) *Result {
	best := &Result{
		Status:  OutcomeNotVerified,
		Details: "no valid attestation found from an authorized issuer",
	}

	for _, res := range results {
		if res.Status == OutcomeVerified {
			return res
		}
		if res.Status.Outranks(best.Status) {
			best = res
		}
	}
	return best
}

// authorizedIssuers fetches the trusted-issuer set, or nil when no source is
// configured or the set is unavailable. With a nil set the issuer check is
// skipped and the ledger-computed status stands alone.
func (r *Reconciler) authorizedIssuers(ctx context.Context) map[common.Address]struct{} {
	if r.issuers == nil {
		return nil
	}

	set, err := r.issuers.Get(ctx, false)
	if err != nil {
		r.logger.Warn("issuer authorization set unavailable; relying on ledger status alone", zap.Error(err))
		return nil
	}
	return set
}
