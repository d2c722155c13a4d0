package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OwnerKind describes how a ledger record is currently held.
type OwnerKind uint8

const (
	// OwnerAddress marks a record held directly by an account address.
	OwnerAddress OwnerKind = 0
	// OwnerShared marks a record held as a shared object with no single holder.
	OwnerShared OwnerKind = 1
	// OwnerContract marks a record held by another on-ledger construct,
	// e.g. an escrow or wrapper contract.
	OwnerContract OwnerKind = 2
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerAddress:
		return "address"
	case OwnerShared:
		return "shared"
	case OwnerContract:
		return "contract"
	default:
		return "unknown"
	}
}

// RawRecord is one credential record exactly as the ledger enumeration
// returns it. No validation has been applied; the extractor decides whether
// a record can act as a candidate attestation.
type RawRecord struct {
	ObjectID   [32]byte
	RecordType string
	OwnerKind  OwnerKind
	// Owner is meaningful only when OwnerKind is OwnerAddress.
	Owner     common.Address
	Issuer    common.Address
	Recipient common.Address
	// IssuedAt and ExpiresAt are unix seconds. ExpiresAt of zero means the
	// record never expires.
	IssuedAt  uint64
	ExpiresAt uint64
	// StatusFlag is the record's own lifecycle flag (0 active, 1 revoked),
	// independent of the ledger-computed effective status.
	StatusFlag uint8
	// Claims is the record's claims document as raw JSON, possibly empty.
	Claims []byte
}

// StatusEnvelope carries the raw, undecoded result of an effective-status
// evaluation: the enumerator payload as the ledger returned it together with
// the type the ledger declared for it.
type StatusEnvelope struct {
	DeclaredType string
	Payload      []byte
}

// Client is the read-only view of the ledger the reconciler consumes. Both
// operations are side-effect free; no implementation may submit transactions.
type Client interface {
	// ListCredentialRecords enumerates all records of the given credential
	// type currently associated with the subject.
	ListCredentialRecords(ctx context.Context, subject common.Address, credentialType string) ([]RawRecord, error)

	// EvaluateEffectiveStatus asks the ledger to compute the authoritative,
	// time- and revocation-aware status of one record.
	EvaluateEffectiveStatus(ctx context.Context, objectID [32]byte) (StatusEnvelope, error)
}

// IssuerSource lists the identities currently authorized to issue
// attestations. It backs the issuer authorization cache.
type IssuerSource interface {
	ListAuthorizedIssuers(ctx context.Context) ([]common.Address, error)
}

// TransportError reports that the ledger could not be reached or returned a
// malformed response for the named operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EvaluationError reports that the ledger was reachable but refused or
// failed to evaluate the status of a record.
type EvaluationError struct {
	ObjectID string
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("status evaluation failed for %s: %v", e.ObjectID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
