package reconciler

import (
	"encoding/json"
	"fmt"
)

// Outcome is the closed set of verification outcomes. The declaration order
// is the merge order: a resolved negative (Expired, Revoked) outranks an
// ambiguous one (Invalid), which outranks absence of evidence (NotVerified),
// which outranks inability to evaluate (Error).
type Outcome uint8

const (
	OutcomeError Outcome = iota
	OutcomeNotVerified
	OutcomeInvalid
	OutcomeRevoked
	OutcomeExpired
	OutcomeVerified
)

// Outranks reports whether o takes precedence over other when merging
// per-candidate outcomes. The comparison is strict, so on equal rank the
// earlier-found outcome is kept.
func (o Outcome) Outranks(other Outcome) bool {
	return o > other
}

func (o Outcome) String() string {
	switch o {
	case OutcomeError:
		return "Error"
	case OutcomeNotVerified:
		return "NotVerified"
	case OutcomeInvalid:
		return "Invalid"
	case OutcomeRevoked:
		return "Revoked"
	case OutcomeExpired:
		return "Expired"
	case OutcomeVerified:
		return "Verified"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the outcome as its string tag.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o > OutcomeVerified {
		return nil, fmt.Errorf("cannot marshal unknown outcome %d", uint8(o))
	}
	return json.Marshal(o.String())
}
