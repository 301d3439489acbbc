package models

import (
	"time"

	"github.com/google/uuid"
)

// EhrStatus is the versioned status record of an EHR. Exactly one row is
// current per EHR; superseded rows move to status_history and are never
// deleted. Party maps 1:1 to at most one EHR, enforced by a unique index.
type EhrStatus struct {
	ID           uuid.UUID `db:"id"`
	EhrID        uuid.UUID `db:"ehr_id"`
	Party        uuid.UUID `db:"party"`
	IsQueryable  bool      `db:"is_queryable"`
	IsModifiable bool      `db:"is_modifiable"`
	// OtherDetails is an opaque document payload, marshaled by the caller's codec
	OtherDetails   NullString `db:"other_details"`
	InContribution uuid.UUID  `db:"in_contribution"`
	SysTransaction time.Time  `db:"sys_transaction"`
}

// Equals reports whether the mutable fields of two status rows match.
// Transaction time and contribution are versioning metadata and not compared.
func (s EhrStatus) Equals(o EhrStatus) bool {
	return s.Party == o.Party &&
		s.IsQueryable == o.IsQueryable &&
		s.IsModifiable == o.IsModifiable &&
		s.OtherDetails.Valid == o.OtherDetails.Valid &&
		s.OtherDetails.String == o.OtherDetails.String
}
