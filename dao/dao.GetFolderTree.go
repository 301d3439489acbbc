package dao

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/util"
)

// GetFolderTree reconstructs the current folder tree rooted at the given id,
// including the object references of every node.
func (dao *DataAccessLayer) GetFolderTree(rootID uuid.UUID) (*models.FolderNode, error) {
	defer util.Time("GetFolderTree")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return nil, err
	}
	tree, err := getFolderTreeInTransaction(tx, rootID)
	if err != nil {
		dao.GetLogger().Error("error in GetFolderTree", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return tree, err
}

func getFolderTreeInTransaction(tx *sqlx.Tx, rootID uuid.UUID) (*models.FolderNode, error) {
	if rootID == uuid.Nil {
		return nil, ErrMissingID
	}

	edges, err := folderClosureInTransaction(tx, rootID)
	if err != nil {
		return nil, err
	}

	ids := []uuid.UUID{rootID}
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range edges {
		ids = append(ids, e.ChildFolder)
		children[e.ParentFolder] = append(children[e.ParentFolder], e.ChildFolder)
	}
	rows, err := loadFolderRowsInTransaction(tx, ids)
	if err != nil {
		return nil, err
	}
	if _, ok := rows[rootID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", rootID, ErrNotFound)
	}

	return assembleFolderNodeInTransaction(tx, rootID, rows, children)
}

// assembleFolderNodeInTransaction builds the node for id and recurses into
// its children. An edge pointing at a folder with no row means the storage
// invariant that edges reference live folders is broken.
func assembleFolderNodeInTransaction(tx *sqlx.Tx, id uuid.UUID, rows map[uuid.UUID]models.Folder, children map[uuid.UUID][]uuid.UUID) (*models.FolderNode, error) {
	row, ok := rows[id]
	if !ok {
		return nil, fmt.Errorf("hierarchy references folder %s with no row: %w", id, ErrInconsistent)
	}
	node := &models.FolderNode{Folder: row}

	items, err := loadFolderItemsInTransaction(tx, id, row.InContribution)
	if err != nil {
		return nil, err
	}
	node.Items = items

	for _, childID := range children[id] {
		child, err := assembleFolderNodeInTransaction(tx, childID, rows, children)
		if err != nil {
			return nil, err
		}
		node.Subfolders = append(node.Subfolders, child)
	}
	return node, nil
}
