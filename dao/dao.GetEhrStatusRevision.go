package dao

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/util"
)

// GetEhrStatusRevision retrieves a status row by ordinal version number.
// Version 1 is the oldest; the latest version is served from the current
// relation, every prior one from history.
func (dao *DataAccessLayer) GetEhrStatusRevision(statusID uuid.UUID, version int) (models.EhrStatus, error) {
	defer util.Time("GetEhrStatusRevision")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.EhrStatus{}, err
	}
	status, err := getEhrStatusRevisionInTransaction(tx, statusID, version)
	if err != nil {
		dao.GetLogger().Error("error in GetEhrStatusRevision", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return status, err
}

func getEhrStatusRevisionInTransaction(tx *sqlx.Tx, statusID uuid.UUID, version int) (models.EhrStatus, error) {
	if version <= 0 {
		return models.EhrStatus{}, fmt.Errorf("%w: version must be positive", ErrInvalidArgument)
	}

	latest, err := currentStatusVersionInTransaction(tx, statusID)
	if err != nil {
		return models.EhrStatus{}, err
	}
	if version > latest {
		return models.EhrStatus{}, fmt.Errorf("status %s has no version %d: %w", statusID, version, ErrNotFound)
	}
	if version == latest {
		return getEhrStatusByIDInTransaction(tx, statusID)
	}

	var status models.EhrStatus
	query := `
    select id, ehr_id, party, is_queryable, is_modifiable, other_details,
           in_contribution, sys_transaction
    from status_history
    where id = ?
    order by sys_transaction asc
    limit 1 offset ?`
	err = tx.Get(&status, query, statusID, version-1)
	if errors.Is(err, sql.ErrNoRows) {
		return status, fmt.Errorf("status %s has no version %d: %w", statusID, version, ErrNotFound)
	}
	if err != nil {
		return status, fmt.Errorf("selecting status revision: %w", err)
	}
	return status, nil
}

// currentStatusVersionInTransaction returns the ordinal of the live status
// row: the count of archived versions plus one.
func currentStatusVersionInTransaction(tx *sqlx.Tx, statusID uuid.UUID) (int, error) {
	var exists int
	if err := tx.Get(&exists, `select count(*) from status where id = ?`, statusID); err != nil {
		return 0, fmt.Errorf("checking status existence: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("status %s: %w", statusID, ErrNotFound)
	}
	var histCount int
	if err := tx.Get(&histCount, `select count(*) from status_history where id = ?`, statusID); err != nil {
		return 0, fmt.Errorf("counting status history: %w", err)
	}
	return histCount + 1, nil
}
