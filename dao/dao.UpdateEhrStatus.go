package dao

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/util"
)

// UpdateEhrStatus installs a new version of an EHR status: the current row
// is archived into status_history and replaced with the supplied state
// under a fresh modification contribution, as one transaction. Returns
// whether a write occurred - without force, an update that changes nothing
// is a no-op.
func (dao *DataAccessLayer) UpdateEhrStatus(status *models.EhrStatus, force bool, committerID uuid.NullUUID, systemID uuid.NullUUID, description models.NullString) (bool, error) {
	defer util.Time("UpdateEhrStatus")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return false, err
	}
	changed, err := updateEhrStatusInTransaction(tx, status, force, committerID, systemID, description)
	if err != nil {
		dao.GetLogger().Error("error in UpdateEhrStatus", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return changed, err
}

func updateEhrStatusInTransaction(tx *sqlx.Tx, status *models.EhrStatus, force bool, committerID uuid.NullUUID, systemID uuid.NullUUID, description models.NullString) (bool, error) {
	if status == nil || status.ID == uuid.Nil {
		return false, ErrMissingID
	}

	current, err := getEhrStatusByIDInTransaction(tx, status.ID)
	if err != nil {
		return false, err
	}

	// carry identity fields the caller may leave zeroed
	status.EhrID = current.EhrID
	if status.Party == uuid.Nil {
		status.Party = current.Party
	}

	if !force && current.Equals(*status) {
		return false, nil
	}

	ts := nowUTC()
	contributionID := uuid.New()
	if err := openContributionInTransaction(tx, contributionID, uuid.NullUUID{UUID: current.EhrID, Valid: true}); err != nil {
		return false, err
	}
	err = commitContributionInTransaction(tx, contributionID, ts, committerID, systemID,
		models.DataTypeEhr, models.StateComplete, models.ChangeModification, description)
	if err != nil {
		return false, err
	}

	// archive current, then replace in place
	_, err = tx.Exec(`
    insert into status_history (id, ehr_id, party, is_queryable, is_modifiable,
                                other_details, in_contribution, sys_transaction)
    select id, ehr_id, party, is_queryable, is_modifiable,
           other_details, in_contribution, sys_transaction
    from status where id = ?`, status.ID)
	if err != nil {
		return false, fmt.Errorf("archiving status: %w", err)
	}

	result, err := tx.Exec(`
    update status set
        party = ?
        ,is_queryable = ?
        ,is_modifiable = ?
        ,other_details = ?
        ,in_contribution = ?
        ,sys_transaction = ?
    where id = ?`,
		status.Party, status.IsQueryable, status.IsModifiable, status.OtherDetails,
		contributionID, ts, status.ID)
	if err != nil {
		return false, fmt.Errorf("updating status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking status update result: %w", err)
	}
	if rowsAffected <= 0 {
		return false, fmt.Errorf("status updated but no rows affected")
	}

	status.InContribution = contributionID
	status.SysTransaction = ts
	return true, nil
}
