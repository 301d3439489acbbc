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

// GetContribution retrieves a single contribution audit row.
func (dao *DataAccessLayer) GetContribution(id uuid.UUID) (models.Contribution, error) {
	defer util.Time("GetContribution")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.Contribution{}, err
	}
	contribution, err := getContributionInTransaction(tx, id)
	if err != nil {
		dao.GetLogger().Error("error in GetContribution", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return contribution, err
}

// GetContributionEhrID resolves the owning EHR of a contribution. Folder
// updates use this to discover the EHR through the subtree's prior
// contribution when the caller does not supply it.
func (dao *DataAccessLayer) GetContributionEhrID(id uuid.UUID) (uuid.NullUUID, error) {
	defer util.Time("GetContributionEhrID")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return uuid.NullUUID{}, err
	}
	contribution, err := getContributionInTransaction(tx, id)
	if err != nil {
		dao.GetLogger().Error("error in GetContributionEhrID", zap.Error(err))
		tx.Rollback()
		return uuid.NullUUID{}, err
	}
	tx.Commit()
	return contribution.EhrID, nil
}

func getContributionInTransaction(tx *sqlx.Tx, id uuid.UUID) (models.Contribution, error) {
	var contribution models.Contribution
	query := `
    select id, ehr_id, data_type, state, change_type, committer_id,
           system_id, description, time_committed
    from contribution where id = ?`
	err := tx.Get(&contribution, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return contribution, fmt.Errorf("contribution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return contribution, fmt.Errorf("selecting contribution: %w", err)
	}
	return contribution, nil
}
