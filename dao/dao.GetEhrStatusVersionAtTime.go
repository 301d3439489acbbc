package dao

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/util"
)

// GetEhrStatusVersionAtTime computes the ordinal version of a status row
// that was effective at the given instant: the count of archived versions
// recorded at or before it, plus one when the instant is at or after the
// current row's transaction time. Fails with ErrNoVersionAtTime when no
// version existed yet.
func (dao *DataAccessLayer) GetEhrStatusVersionAtTime(statusID uuid.UUID, at time.Time) (int, error) {
	defer util.Time("GetEhrStatusVersionAtTime")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return 0, err
	}
	version, err := getEhrStatusVersionAtTimeInTransaction(tx, statusID, normalizeTS(at))
	if err != nil {
		dao.GetLogger().Error("error in GetEhrStatusVersionAtTime", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return version, err
}

func getEhrStatusVersionAtTimeInTransaction(tx *sqlx.Tx, statusID uuid.UUID, at time.Time) (int, error) {
	if statusID == uuid.Nil {
		return 0, ErrMissingID
	}

	var histCount int
	err := tx.Get(&histCount, `
    select count(*) from status_history
    where id = ? and sys_transaction <= ?`, statusID, at)
	if err != nil {
		return 0, fmt.Errorf("counting status history at time: %w", err)
	}

	var currentTS *time.Time
	var ts time.Time
	err = tx.Get(&ts, `select sys_transaction from status where id = ?`, statusID)
	if err == nil {
		currentTS = &ts
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("selecting current status time: %w", err)
	}

	if currentTS == nil && histCount == 0 {
		return 0, fmt.Errorf("status %s: %w", statusID, ErrNotFound)
	}
	version, err := computeVersionAt(histCount, currentTS, at)
	if err != nil {
		return 0, fmt.Errorf("status %s at %s: %w", statusID, at, err)
	}
	return version, nil
}
