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

// DeleteFolderTree removes the subtree rooted at folderID from the live
// relations under a deletion contribution. Every row is archived first, so
// point in time reconstruction keeps working after the delete. Returns the
// number of folders removed.
func (dao *DataAccessLayer) DeleteFolderTree(folderID uuid.UUID) (int, error) {
	defer util.Time("DeleteFolderTree")()
	logger := dao.GetLogger()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		logger.Error("could not begin transaction", zap.Error(err))
		return 0, err
	}

	deadlockRetryCounter := dao.DeadlockRetryCounter
	deadlockRetryDelay := dao.DeadlockRetryDelay
	count, err := deleteFolderTreeInTransaction(tx, folderID)
	for deadlockRetryCounter > 0 && isDeadlock(err) {
		logger.Info("deadlock in DeleteFolderTree, restarting transaction", zap.Int64("deadlockRetryCounter", deadlockRetryCounter))
		time.Sleep(time.Duration(deadlockRetryDelay) * time.Millisecond)
		tx.Rollback()
		tx, err = dao.RecordDB.Beginx()
		if err != nil {
			logger.Error("could not begin transaction", zap.Error(err))
			return 0, err
		}
		deadlockRetryCounter--
		count, err = deleteFolderTreeInTransaction(tx, folderID)
	}
	if err != nil {
		logger.Error("error in DeleteFolderTree", zap.Error(err))
		tx.Rollback()
		return 0, err
	}
	tx.Commit()
	return count, nil
}

func deleteFolderTreeInTransaction(tx *sqlx.Tx, folderID uuid.UUID) (int, error) {
	if folderID == uuid.Nil {
		return 0, fmt.Errorf("%w: folder id is required", ErrInvalidArgument)
	}

	var root models.Folder
	err := tx.Get(&root, `
    select id, in_contribution, name, archetype_node_id, active, details,
           sys_transaction, sys_period_lower, sys_period_upper
    from folder where id = ?`, folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("selecting folder: %w", err)
	}

	prior, err := getContributionInTransaction(tx, root.InContribution)
	if err != nil {
		return 0, err
	}

	ts := nowUTC()
	contributionID := uuid.New()
	if err := openContributionInTransaction(tx, contributionID, prior.EhrID); err != nil {
		return 0, err
	}
	err = commitContributionInTransaction(tx, contributionID, ts, uuid.NullUUID{}, uuid.NullUUID{},
		models.DataTypeFolder, models.StateComplete, models.ChangeDeletion, models.NullString{})
	if err != nil {
		return 0, err
	}

	if err := archiveFolderSubtreeInTransaction(tx, folderID, ts); err != nil {
		return 0, err
	}
	// the edge from a parent folder, when one exists, goes to history too so
	// the parent's earlier state stays reconstructable
	_, err = tx.Exec(`
    insert into folder_hierarchy_history (parent_folder, child_folder, in_contribution, sys_transaction)
    select parent_folder, child_folder, in_contribution, sys_transaction
    from folder_hierarchy where child_folder = ?`, folderID)
	if err != nil {
		return 0, fmt.Errorf("archiving parent edge of %s: %w", folderID, err)
	}
	count, err := removeFolderSubtreeInTransaction(tx, folderID)
	if err != nil {
		return 0, err
	}

	// detach when this subtree was an EHR directory
	if _, err := tx.Exec(`update ehr set directory_id = null where directory_id = ?`, folderID); err != nil {
		return 0, fmt.Errorf("detaching directory from ehr: %w", err)
	}
	return count, nil
}
