package dao

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/util"
)

// OpenContribution creates a draft contribution row in the incomplete state
// and returns its identifier. Every versioned write references exactly one
// contribution, opened either by the caller or by the write operation itself.
func (dao *DataAccessLayer) OpenContribution(ehrID uuid.NullUUID) (uuid.UUID, error) {
	defer util.Time("OpenContribution")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return uuid.Nil, err
	}
	id := uuid.New()
	err = openContributionInTransaction(tx, id, ehrID)
	if err != nil {
		dao.GetLogger().Error("error in OpenContribution", zap.Error(err))
		tx.Rollback()
		return uuid.Nil, err
	}
	tx.Commit()
	return id, nil
}

func openContributionInTransaction(tx *sqlx.Tx, id uuid.UUID, ehrID uuid.NullUUID) error {
	_, err := tx.Exec(`
    insert into contribution (id, ehr_id, data_type, state, change_type)
    values (?, ?, ?, ?, ?)`,
		id, ehrID, models.DataTypeEhr, models.StateIncomplete, models.ChangeUnknown)
	if err != nil {
		return fmt.Errorf("inserting contribution: %w", err)
	}
	return nil
}
