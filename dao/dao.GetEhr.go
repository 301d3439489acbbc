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

// GetEhr retrieves an EHR identity row by id.
func (dao *DataAccessLayer) GetEhr(id uuid.UUID) (models.Ehr, error) {
	defer util.Time("GetEhr")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.Ehr{}, err
	}
	ehr, err := getEhrInTransaction(tx, id)
	if err != nil {
		dao.GetLogger().Error("error in GetEhr", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return ehr, err
}

// GetEhrBySubject retrieves the EHR bound to an external subject reference,
// walking subject -> party -> status -> ehr.
func (dao *DataAccessLayer) GetEhrBySubject(subject models.PartyRef) (models.Ehr, error) {
	defer util.Time("GetEhrBySubject")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.Ehr{}, err
	}
	ehr, err := getEhrBySubjectInTransaction(tx, subject)
	if err != nil {
		dao.GetLogger().Error("error in GetEhrBySubject", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return ehr, err
}

func getEhrInTransaction(tx *sqlx.Tx, id uuid.UUID) (models.Ehr, error) {
	var ehr models.Ehr
	err := tx.Get(&ehr, `select id, system_id, directory_id, access_id, date_created from ehr where id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ehr, fmt.Errorf("ehr %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ehr, fmt.Errorf("selecting ehr: %w", err)
	}
	return ehr, nil
}

func getEhrBySubjectInTransaction(tx *sqlx.Tx, subject models.PartyRef) (models.Ehr, error) {
	var ehr models.Ehr
	query := `
    select e.id, e.system_id, e.directory_id, e.access_id, e.date_created
    from ehr e
        inner join status s on s.ehr_id = e.id
        inner join party_identified p on p.id = s.party
    where p.external_ref_id = ? and p.external_ref_namespace = ?`
	err := tx.Get(&ehr, query, subject.ID, subject.Namespace)
	if errors.Is(err, sql.ErrNoRows) {
		return ehr, fmt.Errorf("ehr for subject %s/%s: %w", subject.Namespace, subject.ID, ErrNotFound)
	}
	if err != nil {
		return ehr, fmt.Errorf("selecting ehr by subject: %w", err)
	}
	return ehr, nil
}
