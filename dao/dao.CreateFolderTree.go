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

// CreateFolderTree materializes a caller supplied folder tree as the
// directory of an EHR. Every node, edge and item is written under one
// creation contribution inside one transaction: a failure anywhere in the
// recursion leaves no rows behind. Returns the root folder id.
func (dao *DataAccessLayer) CreateFolderTree(ehrID uuid.UUID, tree *models.FolderNode) (uuid.UUID, error) {
	defer util.Time("CreateFolderTree")()
	logger := dao.GetLogger()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		logger.Error("could not begin transaction", zap.Error(err))
		return uuid.Nil, err
	}

	deadlockRetryCounter := dao.DeadlockRetryCounter
	deadlockRetryDelay := dao.DeadlockRetryDelay
	rootID, err := createFolderTreeInTransaction(tx, ehrID, tree)
	for deadlockRetryCounter > 0 && isDeadlock(err) {
		logger.Info("deadlock in CreateFolderTree, restarting transaction", zap.Int64("deadlockRetryCounter", deadlockRetryCounter))
		time.Sleep(time.Duration(deadlockRetryDelay) * time.Millisecond)
		tx.Rollback()
		tx, err = dao.RecordDB.Beginx()
		if err != nil {
			logger.Error("could not begin transaction", zap.Error(err))
			return uuid.Nil, err
		}
		deadlockRetryCounter--
		rootID, err = createFolderTreeInTransaction(tx, ehrID, tree)
	}
	if err != nil {
		logger.Error("error in CreateFolderTree", zap.Error(err))
		tx.Rollback()
		return uuid.Nil, err
	}
	tx.Commit()
	return rootID, nil
}

func createFolderTreeInTransaction(tx *sqlx.Tx, ehrID uuid.UUID, tree *models.FolderNode) (uuid.UUID, error) {
	if tree == nil {
		return uuid.Nil, fmt.Errorf("%w: folder tree is required", ErrInvalidArgument)
	}
	if ehrID == uuid.Nil {
		return uuid.Nil, ErrMissingID
	}

	// an ehr holds at most one directory; replacing goes through
	// UpdateFolderTree, removal through DeleteFolderTree
	var owner models.Ehr
	err := tx.Get(&owner, `select id, system_id, directory_id, access_id, date_created from ehr where id = ?`, ehrID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("ehr %s: %w", ehrID, ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("selecting ehr: %w", err)
	}
	if owner.DirectoryID.Valid {
		return uuid.Nil, fmt.Errorf("ehr %s already has directory %s: %w", ehrID, owner.DirectoryID.UUID, ErrInvalidState)
	}
	ts := nowUTC()

	contributionID := uuid.New()
	if err := openContributionInTransaction(tx, contributionID, uuid.NullUUID{UUID: ehrID, Valid: true}); err != nil {
		return uuid.Nil, err
	}

	rootID, err := buildFolderSubtreeInTransaction(tx, tree, contributionID, ts)
	if err != nil {
		return uuid.Nil, err
	}

	result, err := tx.Exec(`update ehr set directory_id = ? where id = ?`, rootID, ehrID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("attaching directory to ehr: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return uuid.Nil, fmt.Errorf("checking ehr directory update: %w", err)
	}
	if rowsAffected <= 0 {
		return uuid.Nil, fmt.Errorf("ehr %s: %w", ehrID, ErrNotFound)
	}

	err = commitContributionInTransaction(tx, contributionID, ts, uuid.NullUUID{}, uuid.NullUUID{},
		models.DataTypeFolder, models.StateComplete, models.ChangeCreation, models.NullString{})
	if err != nil {
		return uuid.Nil, err
	}
	return rootID, nil
}

// buildFolderSubtreeInTransaction inserts the folder row for node, its item
// references, and then recurses into subfolders, attaching each through a
// hierarchy edge. Recursion is parent before children so that edges always
// reference existing rows.
func buildFolderSubtreeInTransaction(tx *sqlx.Tx, node *models.FolderNode, contributionID uuid.UUID, ts time.Time) (uuid.UUID, error) {
	if node == nil {
		return uuid.Nil, fmt.Errorf("%w: folder node is required", ErrInvalidArgument)
	}
	if node.Name == "" {
		return uuid.Nil, fmt.Errorf("%w: folder name is missing", ErrInvalidArgument)
	}
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	node.InContribution = contributionID
	node.SysTransaction = ts
	node.SysPeriodLower = ts
	node.SysPeriodUpper = models.NullTime{}

	_, err := tx.Exec(`
    insert into folder (id, in_contribution, name, archetype_node_id, active,
                        details, sys_transaction, sys_period_lower, sys_period_upper)
    values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.InContribution, node.Name, node.ArchetypeNodeID, node.Active,
		node.Details, node.SysTransaction, node.SysPeriodLower, node.SysPeriodUpper)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting folder %q: %w", node.Name, err)
	}

	if err := saveFolderItemsInTransaction(tx, node.ID, node.Items, contributionID, ts); err != nil {
		return uuid.Nil, err
	}

	for _, sub := range node.Subfolders {
		childID, err := buildFolderSubtreeInTransaction(tx, sub, contributionID, ts)
		if err != nil {
			return uuid.Nil, err
		}
		_, err = tx.Exec(`
    insert into folder_hierarchy (parent_folder, child_folder, in_contribution, sys_transaction)
    values (?, ?, ?, ?)`, node.ID, childID, contributionID, ts)
		if err != nil {
			return uuid.Nil, fmt.Errorf("inserting hierarchy edge %s -> %s: %w", node.ID, childID, err)
		}
	}
	return node.ID, nil
}

// saveFolderItemsInTransaction records the object references of one folder
// as object_ref plus folder_items rows scoped to the contribution.
func saveFolderItemsInTransaction(tx *sqlx.Tx, folderID uuid.UUID, items []models.ObjectRef, contributionID uuid.UUID, ts time.Time) error {
	for i := range items {
		item := &items[i]
		if item.ID == uuid.Nil {
			return fmt.Errorf("%w: object ref id is missing", ErrInvalidArgument)
		}
		item.InContribution = contributionID
		item.SysTransaction = ts
		_, err := tx.Exec(`
    insert into object_ref (id, id_namespace, ref_type, in_contribution, sys_transaction)
    values (?, ?, ?, ?, ?)`,
			item.ID, item.IDNamespace, item.RefType, item.InContribution, item.SysTransaction)
		if err != nil {
			return fmt.Errorf("inserting object ref %s: %w", item.ID, err)
		}
		_, err = tx.Exec(`
    insert into folder_items (folder_id, object_ref_id, in_contribution, sys_transaction)
    values (?, ?, ?, ?)`, folderID, item.ID, contributionID, ts)
		if err != nil {
			return fmt.Errorf("inserting folder item %s: %w", item.ID, err)
		}
	}
	return nil
}
