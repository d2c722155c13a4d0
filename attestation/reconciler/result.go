package reconciler

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Result is the merged verdict for one subject. It is constructed fresh per
// reconciliation and never mutated after being returned.
type Result struct {
	Status      Outcome          `json:"status"`
	Details     string           `json:"details"`
	Attestation *AttestationView `json:"attestation,omitempty"`
}

// AttestationView is the serializable projection of the candidate that
// produced a result. ExpiresAt is nil for records that never expire.
type AttestationView struct {
	ObjectID     string     `json:"objectId"`
	Issuer       string     `json:"issuer"`
	Recipient    string     `json:"recipient"`
	CurrentOwner string     `json:"currentOwner"`
	IssuedAt     time.Time  `json:"issuedAt"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	StatusRaw    string     `json:"statusRaw"`
}

// View projects the candidate into its serializable form.
func (c *Candidate) View() *AttestationView {
	var expiresAt *time.Time
	if c.ExpiresAt != nil {
		t := c.ExpiresAt.UTC()
		expiresAt = &t
	}

	return &AttestationView{
		ObjectID:     ObjectIDHex(c.ObjectID),
		Issuer:       c.Issuer.Hex(),
		Recipient:    c.Recipient.Hex(),
		CurrentOwner: c.CurrentOwner.Hex(),
		IssuedAt:     c.IssuedAt.UTC(),
		ExpiresAt:    expiresAt,
		StatusRaw:    c.RawStatus.String(),
	}
}

// ObjectIDHex renders a record id the way views and log fields expect it.
func ObjectIDHex(objectID [32]byte) string {
	return common.Hash(objectID).Hex()
}
