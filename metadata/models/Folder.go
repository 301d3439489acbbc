package models

import (
	"time"

	"github.com/google/uuid"
)

// Folder is one versioned node of an EHR directory tree. Rows are append
// only: an update archives the current row to folder_history and installs a
// replacement inside the same transaction.
type Folder struct {
	ID              uuid.UUID  `db:"id"`
	InContribution  uuid.UUID  `db:"in_contribution"`
	Name            string     `db:"name"`
	ArchetypeNodeID string     `db:"archetype_node_id"`
	Active          bool       `db:"active"`
	Details         NullString `db:"details"`
	SysTransaction  time.Time  `db:"sys_transaction"`
	// SysPeriodLower is the start of the row's validity period
	SysPeriodLower time.Time `db:"sys_period_lower"`
	// SysPeriodUpper is null while the row is current and closed at archive time
	SysPeriodUpper NullTime `db:"sys_period_upper"`
}

// FolderHierarchy is a directed parent to child edge. The live edge set at
// any instant forms a forest: each child has at most one parent.
type FolderHierarchy struct {
	ParentFolder   uuid.UUID `db:"parent_folder"`
	ChildFolder    uuid.UUID `db:"child_folder"`
	InContribution uuid.UUID `db:"in_contribution"`
	SysTransaction time.Time `db:"sys_transaction"`
}

// ObjectRef points at a clinical object stored elsewhere, scoped to the
// contribution that attached it to a folder.
type ObjectRef struct {
	ID             uuid.UUID `db:"id"`
	IDNamespace    string    `db:"id_namespace"`
	RefType        string    `db:"ref_type"`
	InContribution uuid.UUID `db:"in_contribution"`
	SysTransaction time.Time `db:"sys_transaction"`
}

// FolderItem joins a folder to one of its object references.
type FolderItem struct {
	FolderID       uuid.UUID `db:"folder_id"`
	ObjectRefID    uuid.UUID `db:"object_ref_id"`
	InContribution uuid.UUID `db:"in_contribution"`
	SysTransaction time.Time `db:"sys_transaction"`
}

// FolderNode is the in-memory form of a folder subtree, both as build input
// and as retrieval output. On build, zero IDs are assigned fresh ones.
type FolderNode struct {
	Folder
	Items      []ObjectRef
	Subfolders []*FolderNode
}

// CountNodes returns the number of folders in the subtree rooted at n.
func (n *FolderNode) CountNodes() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, sub := range n.Subfolders {
		total += sub.CountNodes()
	}
	return total
}

// FindSubfolder returns the direct child with the given name, or nil.
func (n *FolderNode) FindSubfolder(name string) *FolderNode {
	for _, sub := range n.Subfolders {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}
