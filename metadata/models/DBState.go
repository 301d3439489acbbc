package models

import "time"

// DBState describes the schema identity of the connected database.
type DBState struct {
	// Date the schema was created
	CreatedDate time.Time `db:"created_date"`
	// Code should be using the same schema version as us
	SchemaVersion string `db:"schema_version"`
	// A unique id for this database instance
	Identifier string `db:"identifier"`
}
