package reconciler

import "fmt"

// EffectiveStatus is the ledger-computed, time- and revocation-aware validity
// state of an attestation. It is distinct from the record's own two-valued
// lifecycle flag (RecordStatus), which never drives the verdict.
type EffectiveStatus uint8

const (
	StatusActive EffectiveStatus = iota
	StatusExpired
	StatusRevoked
)

func (s EffectiveStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusExpired:
		return "Expired"
	case StatusRevoked:
		return "Revoked"
	default:
		return "unknown"
	}
}

// StatusEnumType is the type the registry declares for its status enumerator.
const StatusEnumType = "uint8"

// DecodeError reports an effective-status payload that could not be
// translated into a known status.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "failed to decode effective status: " + e.Reason
}

// DecodeEffectiveStatus translates a raw enumerator payload into an
// EffectiveStatus. It performs no I/O. Decoding is strict: a type mismatch,
// an empty payload, or a tag outside the known range is a hard error — an
// unknown ledger state must never silently read as Active.
//
// Enumerator payloads arrive as left-padded big-endian words; the tag is the
// final byte and every preceding byte must be zero.
func DecodeEffectiveStatus(declaredType string, payload []byte) (EffectiveStatus, error) {
	if declaredType != StatusEnumType {
		return 0, &DecodeError{Reason: fmt.Sprintf("declared type %q, want %q", declaredType, StatusEnumType)}
	}
	if len(payload) == 0 {
		return 0, &DecodeError{Reason: "empty payload"}
	}
	for _, b := range payload[:len(payload)-1] {
		if b != 0 {
			return 0, &DecodeError{Reason: "enumerator value overflows a single tag byte"}
		}
	}

	switch tag := payload[len(payload)-1]; tag {
	case 0:
		return StatusActive, nil
	case 1:
		return StatusExpired, nil
	case 2:
		return StatusRevoked, nil
	default:
		return 0, &DecodeError{Reason: fmt.Sprintf("unknown status tag %d", tag)}
	}
}
