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

// GetDBState returns the identity row of the database. A freshly migrated
// database has no row yet; the first read seeds one with a generated
// identifier and the schema version the code was built against.
func (dao *DataAccessLayer) GetDBState() (models.DBState, error) {
	defer util.Time("GetDBState")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.DBState{}, err
	}
	state, err := getDBStateInTransaction(tx)
	if err != nil {
		dao.GetLogger().Error("error in GetDBState", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return state, err
}

func getDBStateInTransaction(tx *sqlx.Tx) (models.DBState, error) {
	var state models.DBState
	err := tx.Get(&state, `select created_date, schema_version, identifier from db_state`)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return state, fmt.Errorf("selecting db state: %w", err)
	}

	state = models.DBState{
		CreatedDate:   nowUTC(),
		SchemaVersion: SchemaVersion,
		Identifier:    uuid.New().String(),
	}
	_, err = tx.Exec(`
    insert into db_state (created_date, schema_version, identifier)
    values (?, ?, ?)`, state.CreatedDate, state.SchemaVersion, state.Identifier)
	if err != nil {
		return state, fmt.Errorf("seeding db state: %w", err)
	}
	return state, nil
}
