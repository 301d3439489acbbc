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

// GetEhrStatus retrieves the current status row of an EHR. A status whose
// owning contribution is missing indicates a broken storage invariant and
// is reported as ErrInconsistent rather than returned.
func (dao *DataAccessLayer) GetEhrStatus(ehrID uuid.UUID) (models.EhrStatus, error) {
	defer util.Time("GetEhrStatus")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.EhrStatus{}, err
	}
	status, err := getEhrStatusInTransaction(tx, ehrID)
	if err != nil {
		dao.GetLogger().Error("error in GetEhrStatus", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return status, err
}

func getEhrStatusInTransaction(tx *sqlx.Tx, ehrID uuid.UUID) (models.EhrStatus, error) {
	var status models.EhrStatus
	query := `
    select id, ehr_id, party, is_queryable, is_modifiable, other_details,
           in_contribution, sys_transaction
    from status where ehr_id = ?`
	err := tx.Get(&status, query, ehrID)
	if errors.Is(err, sql.ErrNoRows) {
		return status, fmt.Errorf("status for ehr %s: %w", ehrID, ErrNotFound)
	}
	if err != nil {
		return status, fmt.Errorf("selecting status: %w", err)
	}

	ok, err := contributionExistsInTransaction(tx, status.InContribution)
	if err != nil {
		return status, fmt.Errorf("checking status contribution: %w", err)
	}
	if !ok {
		return status, fmt.Errorf("status %s references missing contribution %s: %w", status.ID, status.InContribution, ErrInconsistent)
	}
	return status, nil
}

func getEhrStatusByIDInTransaction(tx *sqlx.Tx, statusID uuid.UUID) (models.EhrStatus, error) {
	var status models.EhrStatus
	query := `
    select id, ehr_id, party, is_queryable, is_modifiable, other_details,
           in_contribution, sys_transaction
    from status where id = ?`
	err := tx.Get(&status, query, statusID)
	if errors.Is(err, sql.ErrNoRows) {
		return status, fmt.Errorf("status %s: %w", statusID, ErrNotFound)
	}
	if err != nil {
		return status, fmt.Errorf("selecting status: %w", err)
	}
	return status, nil
}
