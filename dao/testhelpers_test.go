package dao

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/config"
	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/schema"
)

// newTestDAO migrates a throwaway sqlite database and connects a
// DataAccessLayer to it. The database file lives in the test's temp dir.
func newTestDAO(t *testing.T) *DataAccessLayer {
	t.Helper()
	conf := config.DatabaseConfiguration{
		Driver: "sqlite3",
		Schema: filepath.Join(t.TempDir(), "records.db"),
	}

	db, err := conf.GetDatabaseHandle()
	require.NoError(t, err)
	require.NoError(t, schema.MigrateUp(db.DB, "sqlite3"))
	require.NoError(t, db.Close())

	d, _, err := NewDataAccessLayer(conf, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { d.RecordDB.Close() })
	return d
}

// createTestEhr creates an EHR for the given subject with a default status.
func createTestEhr(t *testing.T, d *DataAccessLayer, subjectID string) models.Ehr {
	t.Helper()
	var ehr models.Ehr
	status := models.EhrStatus{IsQueryable: true, IsModifiable: true}
	subject := models.PartyRef{ID: subjectID, Namespace: "urn:test:subjects", Name: "subject " + subjectID}
	created, err := d.CreateEhr(&ehr, &status, subject, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.NoError(t, err)
	return created
}

// folderNode builds an in-memory tree node with the given number of fresh
// object references attached.
func folderNode(name string, itemCount int, subfolders ...*models.FolderNode) *models.FolderNode {
	node := &models.FolderNode{Subfolders: subfolders}
	node.Name = name
	node.Active = true
	for i := 0; i < itemCount; i++ {
		node.Items = append(node.Items, models.ObjectRef{
			ID:          uuid.New(),
			IDNamespace: "urn:test:objects",
			RefType:     "COMPOSITION",
		})
	}
	return node
}

// treeNames flattens a tree into the set of folder names it contains.
func treeNames(n *models.FolderNode) map[string]bool {
	names := map[string]bool{}
	var walk func(*models.FolderNode)
	walk = func(node *models.FolderNode) {
		if node == nil {
			return
		}
		names[node.Name] = true
		for _, sub := range node.Subfolders {
			walk(sub)
		}
	}
	walk(n)
	return names
}
