package dao

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinvault/recordstore/metadata/models"
)

func TestUpdateEhrStatusNoop(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "status-subject-1")

	status, err := d.GetEhrStatus(ehr.ID)
	require.NoError(t, err)

	same := status
	changed, err := d.UpdateEhrStatus(&same, false, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.NoError(t, err)
	require.False(t, changed)

	_, err = d.GetEhrStatusRevision(status.ID, 1)
	require.NoError(t, err)
	_, err = d.GetEhrStatusRevision(status.ID, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEhrStatusForce(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "status-subject-2")

	status, err := d.GetEhrStatus(ehr.ID)
	require.NoError(t, err)

	same := status
	changed, err := d.UpdateEhrStatus(&same, true, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.NoError(t, err)
	require.True(t, changed)

	// forced write archived a version even though nothing changed
	v2, err := d.GetEhrStatusRevision(status.ID, 2)
	require.NoError(t, err)
	require.True(t, status.Equals(v2))
}

func TestUpdateEhrStatusVersions(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "status-subject-3")

	status, err := d.GetEhrStatus(ehr.ID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	update := status
	update.OtherDetails = models.ToNullString(`{"severity":"moderate"}`)
	changed, err := d.UpdateEhrStatus(&update, false, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.NoError(t, err)
	require.True(t, changed)

	time.Sleep(10 * time.Millisecond)
	update2 := update
	update2.IsQueryable = false
	changed, err = d.UpdateEhrStatus(&update2, false, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.NoError(t, err)
	require.True(t, changed)

	v1, err := d.GetEhrStatusRevision(status.ID, 1)
	require.NoError(t, err)
	require.False(t, v1.OtherDetails.Valid)
	require.True(t, v1.IsQueryable)

	v2, err := d.GetEhrStatusRevision(status.ID, 2)
	require.NoError(t, err)
	require.Equal(t, `{"severity":"moderate"}`, v2.OtherDetails.String)
	require.True(t, v2.IsQueryable)

	v3, err := d.GetEhrStatusRevision(status.ID, 3)
	require.NoError(t, err)
	require.False(t, v3.IsQueryable)

	// each version carries its own contribution
	require.NotEqual(t, v1.InContribution, v2.InContribution)
	require.NotEqual(t, v2.InContribution, v3.InContribution)

	_, err = d.GetEhrStatusRevision(status.ID, 4)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = d.GetEhrStatusRevision(status.ID, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetEhrStatusVersionAtTime(t *testing.T) {
	d := newTestDAO(t)

	beforeCreate := time.Now()
	time.Sleep(10 * time.Millisecond)
	ehr := createTestEhr(t, d, "status-subject-4")
	status, err := d.GetEhrStatus(ehr.ID)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	betweenVersions := time.Now()
	time.Sleep(10 * time.Millisecond)

	update := status
	update.IsModifiable = false
	_, err = d.UpdateEhrStatus(&update, false, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = d.GetEhrStatusVersionAtTime(status.ID, beforeCreate)
	require.ErrorIs(t, err, ErrNoVersionAtTime)
	require.ErrorIs(t, err, ErrInvalidArgument)

	version, err := d.GetEhrStatusVersionAtTime(status.ID, betweenVersions)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	version, err = d.GetEhrStatusVersionAtTime(status.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, version)
}

func TestDisabledLegacyEntryPoints(t *testing.T) {
	d := newTestDAO(t)

	_, err := d.CommitEhrStatus()
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = d.UpdateEhrStatusNow(true)
	require.ErrorIs(t, err, ErrUnsupported)

	ehr := createTestEhr(t, d, "status-subject-5")
	_, err = d.DeleteEhr(ehr.ID)
	require.ErrorIs(t, err, ErrUnsupported)

	// and the refusal left the ehr untouched
	_, err = d.GetEhr(ehr.ID)
	require.NoError(t, err)
}

func TestUpdateEhrStatusMissingID(t *testing.T) {
	d := newTestDAO(t)

	_, err := d.UpdateEhrStatus(&models.EhrStatus{}, false, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = d.UpdateEhrStatus(nil, false, uuid.NullUUID{}, uuid.NullUUID{}, models.NullString{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}
