package dao

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/util"
)

// UpdateFolderTree replaces the subtree rooted at folderID with the supplied
// tree at the given transaction time. The old subtree is archived into the
// history relations before removal, so any prior instant remains
// reconstructable. The root keeps its id and stays addressable; descendants
// are written as fresh rows. Returns whether a write occurred.
func (dao *DataAccessLayer) UpdateFolderTree(folderID uuid.UUID, tree *models.FolderNode, at time.Time) (bool, error) {
	defer util.Time("UpdateFolderTree")()
	logger := dao.GetLogger()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		logger.Error("could not begin transaction", zap.Error(err))
		return false, err
	}

	deadlockRetryCounter := dao.DeadlockRetryCounter
	deadlockRetryDelay := dao.DeadlockRetryDelay
	changed, err := updateFolderTreeInTransaction(tx, folderID, tree, normalizeTS(at))
	for deadlockRetryCounter > 0 && isDeadlock(err) {
		logger.Info("deadlock in UpdateFolderTree, restarting transaction", zap.Int64("deadlockRetryCounter", deadlockRetryCounter))
		time.Sleep(time.Duration(deadlockRetryDelay) * time.Millisecond)
		tx.Rollback()
		tx, err = dao.RecordDB.Beginx()
		if err != nil {
			logger.Error("could not begin transaction", zap.Error(err))
			return false, err
		}
		deadlockRetryCounter--
		changed, err = updateFolderTreeInTransaction(tx, folderID, tree, normalizeTS(at))
	}
	if err != nil {
		logger.Error("error in UpdateFolderTree", zap.Error(err))
		tx.Rollback()
		return false, err
	}
	tx.Commit()
	return changed, nil
}

func updateFolderTreeInTransaction(tx *sqlx.Tx, folderID uuid.UUID, tree *models.FolderNode, ts time.Time) (bool, error) {
	if folderID == uuid.Nil {
		return false, ErrMissingID
	}
	if tree == nil {
		return false, fmt.Errorf("%w: folder tree is required", ErrInvalidArgument)
	}

	var oldRoot models.Folder
	err := tx.Get(&oldRoot, `
    select id, in_contribution, name, archetype_node_id, active, details,
           sys_transaction, sys_period_lower, sys_period_upper
    from folder where id = ?`, folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("selecting folder: %w", err)
	}

	prior, err := getContributionInTransaction(tx, oldRoot.InContribution)
	if err != nil {
		return false, err
	}

	// the edge from the parent, when this is not a top level directory,
	// must survive the rebuild
	var parentEdges []models.FolderHierarchy
	err = tx.Select(&parentEdges, `
    select parent_folder, child_folder, in_contribution, sys_transaction
    from folder_hierarchy where child_folder = ?`, folderID)
	if err != nil {
		return false, fmt.Errorf("selecting parent edge: %w", err)
	}

	contributionID := uuid.New()
	if err := openContributionInTransaction(tx, contributionID, prior.EhrID); err != nil {
		return false, err
	}
	err = commitContributionInTransaction(tx, contributionID, ts, uuid.NullUUID{}, uuid.NullUUID{},
		models.DataTypeFolder, models.StateComplete, models.ChangeModification, models.NullString{})
	if err != nil {
		return false, err
	}

	if err := archiveFolderSubtreeInTransaction(tx, folderID, ts); err != nil {
		return false, err
	}
	if _, err := removeFolderSubtreeInTransaction(tx, folderID); err != nil {
		return false, err
	}

	// rebuild under the same root id so the directory stays addressable
	tree.ID = folderID
	if _, err := buildFolderSubtreeInTransaction(tx, tree, contributionID, ts); err != nil {
		return false, err
	}
	// restored verbatim: the parent's own child set did not change, so its
	// edges must keep their recorded transaction time
	for _, e := range parentEdges {
		_, err = tx.Exec(`
    insert into folder_hierarchy (parent_folder, child_folder, in_contribution, sys_transaction)
    values (?, ?, ?, ?)`, e.ParentFolder, e.ChildFolder, e.InContribution, e.SysTransaction)
		if err != nil {
			return false, fmt.Errorf("restoring parent edge %s -> %s: %w", e.ParentFolder, folderID, err)
		}
	}
	return true, nil
}

// archiveFolderSubtreeInTransaction copies every row of the subtree rooted
// at rootID into the history relations, closing each folder's system period
// at ts. The copies happen before the live rows are touched.
func archiveFolderSubtreeInTransaction(tx *sqlx.Tx, rootID uuid.UUID, ts time.Time) error {
	edges, err := folderClosureInTransaction(tx, rootID)
	if err != nil {
		return err
	}
	ids := []uuid.UUID{rootID}
	for _, e := range edges {
		ids = append(ids, e.ChildFolder)
	}
	rows, err := loadFolderRowsInTransaction(tx, ids)
	if err != nil {
		return err
	}

	for _, id := range ids {
		row, ok := rows[id]
		if !ok {
			return fmt.Errorf("hierarchy references folder %s with no row: %w", id, ErrInconsistent)
		}
		_, err = tx.Exec(`
    insert into folder_history (id, in_contribution, name, archetype_node_id, active,
                                details, sys_transaction, sys_period_lower, sys_period_upper)
    values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.InContribution, row.Name, row.ArchetypeNodeID, row.Active,
			row.Details, row.SysTransaction, row.SysPeriodLower, models.ToNullTime(ts))
		if err != nil {
			return fmt.Errorf("archiving folder %s: %w", row.ID, err)
		}
		_, err = tx.Exec(`
    insert into folder_items_history (folder_id, object_ref_id, in_contribution, sys_transaction)
    select folder_id, object_ref_id, in_contribution, sys_transaction
    from folder_items where folder_id = ?`, row.ID)
		if err != nil {
			return fmt.Errorf("archiving folder items of %s: %w", row.ID, err)
		}
		_, err = tx.Exec(`
    insert into object_ref_history (id, id_namespace, ref_type, in_contribution, sys_transaction)
    select o.id, o.id_namespace, o.ref_type, o.in_contribution, o.sys_transaction
    from object_ref o
        inner join folder_items fi
            on fi.object_ref_id = o.id and fi.in_contribution = o.in_contribution
    where fi.folder_id = ?`, row.ID)
		if err != nil {
			return fmt.Errorf("archiving object refs of %s: %w", row.ID, err)
		}
	}

	for _, e := range edges {
		_, err = tx.Exec(`
    insert into folder_hierarchy_history (parent_folder, child_folder, in_contribution, sys_transaction)
    values (?, ?, ?, ?)`, e.ParentFolder, e.ChildFolder, e.InContribution, e.SysTransaction)
		if err != nil {
			return fmt.Errorf("archiving hierarchy edge %s -> %s: %w", e.ParentFolder, e.ChildFolder, err)
		}
	}
	return nil
}

// removeFolderSubtreeInTransaction deletes the live rows of the subtree
// rooted at rootID, items and refs included, and returns the folder count.
func removeFolderSubtreeInTransaction(tx *sqlx.Tx, rootID uuid.UUID) (int, error) {
	edges, err := folderClosureInTransaction(tx, rootID)
	if err != nil {
		return 0, err
	}
	ids := []uuid.UUID{rootID}
	for _, e := range edges {
		ids = append(ids, e.ChildFolder)
	}

	for _, id := range ids {
		_, err = tx.Exec(`
    delete from object_ref where (id, in_contribution) in (
        select object_ref_id, in_contribution from folder_items where folder_id = ?)`, id)
		if err != nil {
			return 0, fmt.Errorf("deleting object refs of %s: %w", id, err)
		}
		if _, err = tx.Exec(`delete from folder_items where folder_id = ?`, id); err != nil {
			return 0, fmt.Errorf("deleting folder items of %s: %w", id, err)
		}
	}
	query, args, err := sqlx.In(`delete from folder_hierarchy where parent_folder in (?) or child_folder in (?)`, ids, ids)
	if err != nil {
		return 0, fmt.Errorf("building edge delete query: %w", err)
	}
	if _, err = tx.Exec(query, args...); err != nil {
		return 0, fmt.Errorf("deleting hierarchy edges: %w", err)
	}
	query, args, err = sqlx.In(`delete from folder where id in (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("building folder delete query: %w", err)
	}
	if _, err = tx.Exec(query, args...); err != nil {
		return 0, fmt.Errorf("deleting folders: %w", err)
	}
	return len(ids), nil
}
