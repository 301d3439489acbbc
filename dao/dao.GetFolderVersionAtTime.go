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

// GetFolderVersionAtTime computes the ordinal version of a folder that was
// effective at the given instant, across both the live and the history
// relation. Fails with ErrNoVersionAtTime when the folder did not exist yet.
func (dao *DataAccessLayer) GetFolderVersionAtTime(folderID uuid.UUID, at time.Time) (int, error) {
	defer util.Time("GetFolderVersionAtTime")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return 0, err
	}
	version, err := getFolderVersionAtTimeInTransaction(tx, folderID, normalizeTS(at))
	if err != nil {
		dao.GetLogger().Error("error in GetFolderVersionAtTime", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return version, err
}

func getFolderVersionAtTimeInTransaction(tx *sqlx.Tx, folderID uuid.UUID, at time.Time) (int, error) {
	if folderID == uuid.Nil {
		return 0, ErrMissingID
	}

	var histCount int
	err := tx.Get(&histCount, `
    select count(distinct sys_transaction) from folder_history
    where id = ? and sys_transaction <= ?`, folderID, at)
	if err != nil {
		return 0, fmt.Errorf("counting folder history at time: %w", err)
	}

	var currentTS *time.Time
	var ts time.Time
	err = tx.Get(&ts, `select sys_transaction from folder where id = ?`, folderID)
	if err == nil {
		currentTS = &ts
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("selecting current folder time: %w", err)
	}

	var histTotal int
	if currentTS == nil {
		if err := tx.Get(&histTotal, `select count(*) from folder_history where id = ?`, folderID); err != nil {
			return 0, fmt.Errorf("counting folder history: %w", err)
		}
		if histTotal == 0 {
			return 0, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
		}
	}

	version, err := computeVersionAt(histCount, currentTS, at)
	if err != nil {
		return 0, fmt.Errorf("folder %s at %s: %w", folderID, at, err)
	}
	return version, nil
}
