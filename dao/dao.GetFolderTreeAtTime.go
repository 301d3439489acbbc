package dao

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/util"
)

// GetFolderTreeAtTime reconstructs the folder tree rooted at folderID as it
// was at the given instant, merging the live and the history relations. A
// folder that did not exist yet fails with ErrNoVersionAtTime. Deletion is
// not visible to as-of reads: history rows carry no end marker, so an
// instant after a delete resolves to the tree's last recorded state.
func (dao *DataAccessLayer) GetFolderTreeAtTime(folderID uuid.UUID, at time.Time) (*models.FolderNode, error) {
	defer util.Time("GetFolderTreeAtTime")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return nil, err
	}
	tree, err := getFolderTreeAtTimeInTransaction(tx, folderID, normalizeTS(at))
	if err != nil {
		dao.GetLogger().Error("error in GetFolderTreeAtTime", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return tree, err
}

func getFolderTreeAtTimeInTransaction(tx *sqlx.Tx, folderID uuid.UUID, at time.Time) (*models.FolderNode, error) {
	if folderID == uuid.Nil {
		return nil, ErrMissingID
	}

	// existence check shares the version arithmetic so the same instants
	// are accepted here and there
	if _, err := getFolderVersionAtTimeInTransaction(tx, folderID, at); err != nil {
		return nil, err
	}

	edges, err := historicalEdgesInTransaction(tx, at)
	if err != nil {
		return nil, err
	}
	visited := map[uuid.UUID]bool{folderID: true}
	return assembleFolderNodeAtTimeInTransaction(tx, folderID, at, edges, visited)
}

// assembleFolderNodeAtTimeInTransaction resolves the row for id effective at
// the instant and recurses into the children the reduced edge set names. The
// visited set guards the walk against cycles in damaged history data.
func assembleFolderNodeAtTimeInTransaction(tx *sqlx.Tx, id uuid.UUID, at time.Time, edges map[uuid.UUID][]models.FolderHierarchy, visited map[uuid.UUID]bool) (*models.FolderNode, error) {
	row, ok, err := resolveFolderRowAtInTransaction(tx, id, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("hierarchy references folder %s with no row at %s: %w", id, at, ErrInconsistent)
	}
	node := &models.FolderNode{Folder: row}

	items, err := historicalItemsInTransaction(tx, id, row.InContribution)
	if err != nil {
		return nil, err
	}
	node.Items = items

	for _, e := range edges[id] {
		if visited[e.ChildFolder] {
			return nil, fmt.Errorf("folder %s reached twice reconstructing hierarchy: %w", e.ChildFolder, ErrCorruptHierarchy)
		}
		visited[e.ChildFolder] = true
		child, err := assembleFolderNodeAtTimeInTransaction(tx, e.ChildFolder, at, edges, visited)
		if err != nil {
			return nil, err
		}
		node.Subfolders = append(node.Subfolders, child)
	}
	return node, nil
}
