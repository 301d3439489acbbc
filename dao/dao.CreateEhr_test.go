package dao

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinvault/recordstore/metadata/models"
)

func TestCreateEhr(t *testing.T) {
	d := newTestDAO(t)

	var ehr models.Ehr
	status := models.EhrStatus{IsQueryable: true, IsModifiable: true}
	subject := models.PartyRef{ID: "patient-100", Namespace: "urn:test:subjects", Name: "patient one hundred"}
	created, err := d.CreateEhr(&ehr, &status, subject, uuid.NullUUID{}, uuid.NullUUID{}, models.ToNullString("initial registration"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	require.False(t, created.DateCreated.IsZero())

	fetched, err := d.GetEhr(created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)

	dbStatus, err := d.GetEhrStatus(created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, dbStatus.EhrID)
	require.True(t, dbStatus.IsQueryable)
	require.NotEqual(t, uuid.Nil, dbStatus.Party)

	// the creating contribution is committed and attributed to the ehr
	contribution, err := d.GetContribution(dbStatus.InContribution)
	require.NoError(t, err)
	require.Equal(t, models.StateComplete, contribution.State)
	require.Equal(t, models.ChangeCreation, contribution.ChangeType)
	require.True(t, contribution.EhrID.Valid)
	require.Equal(t, created.ID, contribution.EhrID.UUID)
	require.Equal(t, "initial registration", contribution.Description.String)

	party, err := d.GetParty(dbStatus.Party)
	require.NoError(t, err)
	require.Equal(t, "patient-100", party.ExternalRefID)
	require.Equal(t, "urn:test:subjects", party.ExternalRefNamespace)
}

func TestGetEhrBySubject(t *testing.T) {
	d := newTestDAO(t)
	created := createTestEhr(t, d, "patient-200")

	found, err := d.GetEhrBySubject(models.PartyRef{ID: "patient-200", Namespace: "urn:test:subjects"})
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = d.GetEhrBySubject(models.PartyRef{ID: "nobody", Namespace: "urn:test:subjects"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEhrDuplicateSubject(t *testing.T) {
	d := newTestDAO(t)
	createTestEhr(t, d, "patient-300")

	var ehr models.Ehr
	status := models.EhrStatus{IsQueryable: true, IsModifiable: true}
	subject := models.PartyRef{ID: "patient-300", Namespace: "urn:test:subjects"}
	_, err := d.CreateEhr(&ehr, &status, subject, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.ErrorIs(t, err, ErrDuplicateSubject)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// the failed attempt left nothing behind
	_, err = d.GetEhr(ehr.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetEhrStatusMissingContribution(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "patient-350")

	// sever the status from its owning contribution behind the dao's back
	_, err := d.RecordDB.Exec(`update status set in_contribution = ? where ehr_id = ?`,
		uuid.New(), ehr.ID)
	require.NoError(t, err)

	_, err = d.GetEhrStatus(ehr.ID)
	require.ErrorIs(t, err, ErrInconsistent)
}

func TestGetEhrNotFound(t *testing.T) {
	d := newTestDAO(t)

	_, err := d.GetEhr(uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreatePartyIsStable(t *testing.T) {
	d := newTestDAO(t)

	ref := models.PartyRef{ID: "patient-400", Namespace: "urn:test:subjects", Name: "patient four hundred"}
	first, err := d.GetOrCreateParty(ref)
	require.NoError(t, err)
	second, err := d.GetOrCreateParty(ref)
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := d.GetOrCreateParty(models.PartyRef{ID: "patient-400", Namespace: "urn:other"})
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}
