package models

import (
	"github.com/google/uuid"
)

// PartyRef is an external subject reference as supplied by callers.
type PartyRef struct {
	// ID is the stable identifier within the issuing namespace
	ID string
	// Namespace is the issuing namespace, e.g. a demographics service
	Namespace string
	// Name is an optional display name
	Name string
}

// PartyIdentified is the stored resolution of an external subject reference.
// (ExternalRefID, ExternalRefNamespace) is unique.
type PartyIdentified struct {
	ID                   uuid.UUID  `db:"id"`
	Name                 NullString `db:"name"`
	ExternalRefID        string     `db:"external_ref_id"`
	ExternalRefNamespace string     `db:"external_ref_namespace"`
}
