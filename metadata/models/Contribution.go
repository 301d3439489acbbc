package models

import (
	"github.com/google/uuid"
)

// ContributionDataType identifies the kind of clinical data a contribution
// groups changes for.
type ContributionDataType string

// Supported contribution data types
const (
	DataTypeEhr         ContributionDataType = "ehr"
	DataTypeFolder      ContributionDataType = "folder"
	DataTypeComposition ContributionDataType = "composition"
	DataTypeAuditTrail  ContributionDataType = "audit_trail"
	DataTypeOther       ContributionDataType = "other"
)

// ContributionState is the workflow state of a contribution.
type ContributionState string

// Contribution workflow states
const (
	StateIncomplete ContributionState = "incomplete"
	StateComplete   ContributionState = "complete"
	StateDeleted    ContributionState = "deleted"
)

// ContributionChangeType describes the kind of change a contribution records.
type ContributionChangeType string

// Contribution change types
const (
	ChangeCreation     ContributionChangeType = "creation"
	ChangeModification ContributionChangeType = "modification"
	ChangeDeletion     ContributionChangeType = "deletion"
	ChangeSynthesis    ContributionChangeType = "synthesis"
	ChangeUnknown      ContributionChangeType = "unknown"
)

// Contribution is a single audit unit. Exactly one contribution row exists
// per logical write, and a row never changes once its state is complete.
type Contribution struct {
	// ID is the unique identifier referenced by every versioned row the
	// contribution covers
	ID uuid.UUID `db:"id"`
	// EhrID is the owning EHR, when known at open time
	EhrID uuid.NullUUID `db:"ehr_id"`
	// DataType is the kind of entity changed
	DataType ContributionDataType `db:"data_type"`
	// State is the workflow state
	State ContributionState `db:"state"`
	// ChangeType records what happened
	ChangeType ContributionChangeType `db:"change_type"`
	// CommitterID identifies the committing party, if supplied
	CommitterID uuid.NullUUID `db:"committer_id"`
	// SystemID identifies the committing system, if supplied
	SystemID uuid.NullUUID `db:"system_id"`
	// Description is free text supplied by the committer
	Description NullString `db:"description"`
	// TimeCommitted is set when the contribution is finalized
	TimeCommitted NullTime `db:"time_committed"`
}
