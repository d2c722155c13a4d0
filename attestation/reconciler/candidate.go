package reconciler

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xeipuuv/gojsonschema"

	"github.com/pilacorp/go-attestation-verifier/attestation/ledger"
)

// RecordStatus is the record's own lifecycle flag, stored on the ledger
// alongside the record. It is independent of time-based expiry and of the
// ledger-computed effective status.
type RecordStatus uint8

const (
	RecordActive RecordStatus = iota
	RecordRevoked
)

func (s RecordStatus) String() string {
	switch s {
	case RecordActive:
		return "Active"
	case RecordRevoked:
		return "Revoked"
	default:
		return "unknown"
	}
}

// Candidate is one ledger record projected into the shape the reconciler
// evaluates. ExpiresAt is nil when the record never expires.
type Candidate struct {
	ObjectID     [32]byte
	Issuer       common.Address
	Recipient    common.Address
	CurrentOwner common.Address
	IssuedAt     time.Time
	ExpiresAt    *time.Time
	RawStatus    RecordStatus
	Claims       []byte
}

// ErrNotCandidate marks a record that cannot represent a personal credential
// attestation. Such records are skipped; they never abort the batch and
// never surface to the caller.
var ErrNotCandidate = errors.New("record is not a candidate attestation")

// Extractor validates raw ledger records and projects them into candidates.
type Extractor struct {
	credentialType string
	claimsSchema   *gojsonschema.Schema
}

// NewExtractor creates an extractor for the given credential type. A non-nil
// schema additionally validates each record's claims document; a violation
// is a structural mismatch, same as a shape mismatch.
func NewExtractor(credentialType string, claimsSchema *gojsonschema.Schema) *Extractor {
	return &Extractor{
		credentialType: credentialType,
		claimsSchema:   claimsSchema,
	}
}

// CredentialType returns the record type this extractor accepts.
func (x *Extractor) CredentialType() string {
	return x.credentialType
}

// Extract projects a raw record into a Candidate. Records that cannot
// represent a personal credential return an error wrapping ErrNotCandidate.
func (x *Extractor) Extract(rec ledger.RawRecord) (*Candidate, error) {
	if rec.RecordType != x.credentialType {
		return nil, fmt.Errorf("%w: record type %q, want %q", ErrNotCandidate, rec.RecordType, x.credentialType)
	}

	// Shared or contract-held records have no single address holder and so
	// cannot bind to a recipient.
	if rec.OwnerKind != ledger.OwnerAddress {
		return nil, fmt.Errorf("%w: held by %s owner, not a single address", ErrNotCandidate, rec.OwnerKind)
	}

	var rawStatus RecordStatus
	switch rec.StatusFlag {
	case 0:
		rawStatus = RecordActive
	case 1:
		rawStatus = RecordRevoked
	default:
		return nil, fmt.Errorf("%w: unknown record status flag %d", ErrNotCandidate, rec.StatusFlag)
	}

	if x.claimsSchema != nil {
		if err := x.validateClaims(rec.Claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotCandidate, err)
		}
	}

	// A stored expiry of zero is the "never expires" sentinel.
	var expiresAt *time.Time
	if rec.ExpiresAt != 0 {
		t := time.Unix(int64(rec.ExpiresAt), 0).UTC()
		expiresAt = &t
	}

	return &Candidate{
		ObjectID:     rec.ObjectID,
		Issuer:       rec.Issuer,
		Recipient:    rec.Recipient,
		CurrentOwner: rec.Owner,
		IssuedAt:     time.Unix(int64(rec.IssuedAt), 0).UTC(),
		ExpiresAt:    expiresAt,
		RawStatus:    rawStatus,
		Claims:       rec.Claims,
	}, nil
}

func (x *Extractor) validateClaims(claims []byte) error {
	if len(claims) == 0 {
		return errors.New("claims document is missing")
	}

	res, err := x.claimsSchema.Validate(gojsonschema.NewBytesLoader(claims))
	if err != nil {
		return fmt.Errorf("claims document is not valid JSON: %v", err)
	}
	if !res.Valid() {
		return fmt.Errorf("claims document violates schema: %s", res.Errors()[0])
	}
	return nil
}
