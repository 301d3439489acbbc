package models

import (
	"time"

	"github.com/google/uuid"
)

// Ehr is the identity row for an electronic health record. Identity is
// immutable once created; only the directory reference moves as folder
// trees are created and deleted.
type Ehr struct {
	ID          uuid.UUID     `db:"id"`
	SystemID    uuid.NullUUID `db:"system_id"`
	DirectoryID uuid.NullUUID `db:"directory_id"`
	AccessID    uuid.NullUUID `db:"access_id"`
	DateCreated time.Time     `db:"date_created"`
}
