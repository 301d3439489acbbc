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

// CommitContribution finalizes a draft contribution. The row becomes visible
// to readers as a complete audit unit atomically with the commit. Committing
// an already committed contribution fails with ErrInvalidState.
func (dao *DataAccessLayer) CommitContribution(id uuid.UUID, ts time.Time, committerID uuid.NullUUID, systemID uuid.NullUUID, dataType models.ContributionDataType, state models.ContributionState, changeType models.ContributionChangeType, description models.NullString) error {
	defer util.Time("CommitContribution")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return err
	}
	err = commitContributionInTransaction(tx, id, normalizeTS(ts), committerID, systemID, dataType, state, changeType, description)
	if err != nil {
		dao.GetLogger().Error("error in CommitContribution", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return err
}

func commitContributionInTransaction(tx *sqlx.Tx, id uuid.UUID, ts time.Time, committerID uuid.NullUUID, systemID uuid.NullUUID, dataType models.ContributionDataType, state models.ContributionState, changeType models.ContributionChangeType, description models.NullString) error {
	var current models.ContributionState
	err := tx.Get(&current, `select state from contribution where id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("contribution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("selecting contribution state: %w", err)
	}
	if current == models.StateComplete {
		return fmt.Errorf("contribution %s already committed: %w", id, ErrInvalidState)
	}

	_, err = tx.Exec(`
    update contribution set
        committer_id = ?
        ,system_id = ?
        ,data_type = ?
        ,state = ?
        ,change_type = ?
        ,description = ?
        ,time_committed = ?
    where id = ?`,
		committerID, systemID, dataType, state, changeType, description, ts, id)
	if err != nil {
		return fmt.Errorf("committing contribution: %w", err)
	}
	return nil
}
