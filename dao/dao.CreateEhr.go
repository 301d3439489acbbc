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

// CreateEhr creates a new EHR identity with its initial status row under a
// single creation contribution. The subject reference is resolved to a
// party id first; a subject already bound to an EHR fails with
// ErrDuplicateSubject. The read-check is advisory only - the authoritative
// guard is the unique index on status.party, so two near-simultaneous
// creates for the same subject cannot both commit.
func (dao *DataAccessLayer) CreateEhr(ehr *models.Ehr, status *models.EhrStatus, subject models.PartyRef, committerID uuid.NullUUID, systemID uuid.NullUUID, description models.NullString) (models.Ehr, error) {
	defer util.Time("CreateEhr")()
	logger := dao.GetLogger()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		logger.Error("could not begin transaction", zap.Error(err))
		return models.Ehr{}, err
	}
	dbEhr, err := createEhrInTransaction(tx, ehr, status, subject, committerID, systemID, description)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("subject %s/%s: %w", subject.Namespace, subject.ID, ErrDuplicateSubject)
		}
		logger.Error("error in CreateEhr", zap.Error(err))
		tx.Rollback()
		return models.Ehr{}, err
	}
	tx.Commit()
	return dbEhr, nil
}

func createEhrInTransaction(tx *sqlx.Tx, ehr *models.Ehr, status *models.EhrStatus, subject models.PartyRef, committerID uuid.NullUUID, systemID uuid.NullUUID, description models.NullString) (models.Ehr, error) {
	if ehr == nil || status == nil {
		return models.Ehr{}, fmt.Errorf("%w: ehr and status are required", ErrInvalidArgument)
	}
	ts := nowUTC()

	partyID, err := getOrCreatePartyInTransaction(tx, subject)
	if err != nil {
		return models.Ehr{}, err
	}

	// Advisory duplicate check before the insert; the unique index on
	// status.party catches the race.
	var existing int
	if err := tx.Get(&existing, `select count(*) from status where party = ?`, partyID); err != nil {
		return models.Ehr{}, fmt.Errorf("checking subject uniqueness: %w", err)
	}
	if existing > 0 {
		return models.Ehr{}, fmt.Errorf("subject %s/%s: %w", subject.Namespace, subject.ID, ErrDuplicateSubject)
	}

	if ehr.ID == uuid.Nil {
		ehr.ID = uuid.New()
	}
	ehr.DateCreated = ts

	contributionID := uuid.New()
	if err := openContributionInTransaction(tx, contributionID, uuid.NullUUID{UUID: ehr.ID, Valid: true}); err != nil {
		return models.Ehr{}, err
	}

	_, err = tx.Exec(`
    insert into ehr (id, system_id, directory_id, access_id, date_created)
    values (?, ?, ?, ?, ?)`,
		ehr.ID, ehr.SystemID, ehr.DirectoryID, ehr.AccessID, ehr.DateCreated)
	if err != nil {
		return models.Ehr{}, fmt.Errorf("inserting ehr: %w", err)
	}

	if status.ID == uuid.Nil {
		status.ID = uuid.New()
	}
	status.EhrID = ehr.ID
	status.Party = partyID
	status.InContribution = contributionID
	status.SysTransaction = ts
	_, err = tx.Exec(`
    insert into status (id, ehr_id, party, is_queryable, is_modifiable,
                        other_details, in_contribution, sys_transaction)
    values (?, ?, ?, ?, ?, ?, ?, ?)`,
		status.ID, status.EhrID, status.Party, status.IsQueryable, status.IsModifiable,
		status.OtherDetails, status.InContribution, status.SysTransaction)
	if err != nil {
		return models.Ehr{}, fmt.Errorf("inserting status: %w", err)
	}

	err = commitContributionInTransaction(tx, contributionID, ts, committerID, systemID,
		models.DataTypeEhr, models.StateComplete, models.ChangeCreation, description)
	if err != nil {
		return models.Ehr{}, err
	}

	var dbEhr models.Ehr
	err = tx.Get(&dbEhr, `select id, system_id, directory_id, access_id, date_created from ehr where id = ?`, ehr.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ehr{}, fmt.Errorf("ehr %s after insert: %w", ehr.ID, ErrNotFound)
	}
	if err != nil {
		return models.Ehr{}, fmt.Errorf("retrieving created ehr: %w", err)
	}
	return dbEhr, nil
}
