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

// GetOrCreateParty resolves an external subject reference to its stable
// party id, creating the row on first sight. Resolutions are cached: party
// rows are immutable once written, so a cached id never goes stale.
func (dao *DataAccessLayer) GetOrCreateParty(ref models.PartyRef) (uuid.UUID, error) {
	defer util.Time("GetOrCreateParty")()

	cacheKey := ref.Namespace + "|" + ref.ID
	if item := dao.partyCache.Get(cacheKey); item != nil && !item.Expired() {
		return item.Value().(uuid.UUID), nil
	}

	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return uuid.Nil, err
	}
	id, err := getOrCreatePartyInTransaction(tx, ref)
	if err != nil {
		dao.GetLogger().Error("error in GetOrCreateParty", zap.Error(err))
		tx.Rollback()
		return uuid.Nil, err
	}
	tx.Commit()

	dao.partyCache.Set(cacheKey, id, time.Hour)
	return id, nil
}

// GetParty retrieves a party row by its internal id.
func (dao *DataAccessLayer) GetParty(id uuid.UUID) (models.PartyIdentified, error) {
	defer util.Time("GetParty")()
	tx, err := dao.RecordDB.Beginx()
	if err != nil {
		dao.GetLogger().Error("could not begin transaction", zap.Error(err))
		return models.PartyIdentified{}, err
	}
	party, err := getPartyInTransaction(tx, id)
	if err != nil {
		dao.GetLogger().Error("error in GetParty", zap.Error(err))
		tx.Rollback()
	} else {
		tx.Commit()
	}
	return party, err
}

func getPartyInTransaction(tx *sqlx.Tx, id uuid.UUID) (models.PartyIdentified, error) {
	var party models.PartyIdentified
	query := `
    select id, name, external_ref_id, external_ref_namespace
    from party_identified where id = ?`
	err := tx.Get(&party, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return party, fmt.Errorf("party %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return party, fmt.Errorf("selecting party: %w", err)
	}
	return party, nil
}
