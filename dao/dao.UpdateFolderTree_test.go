package dao

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinvault/recordstore/metadata/models"
)

func TestUpdateFolderTreeReplacesSubtree(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "update-subject-1")

	rootID, err := d.CreateFolderTree(ehr.ID, folderNode("root", 1,
		folderNode("labs", 1),
		folderNode("imaging", 0)))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	betweenVersions := time.Now()
	time.Sleep(10 * time.Millisecond)

	changed, err := d.UpdateFolderTree(rootID, folderNode("root", 2,
		folderNode("medications", 1)), time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	// current tree holds only the replacement, under the same root id
	current, err := d.GetFolderTree(rootID)
	require.NoError(t, err)
	require.Equal(t, rootID, current.ID)
	require.Len(t, current.Items, 2)
	names := treeNames(current)
	require.True(t, names["medications"])
	require.False(t, names["labs"])
	require.False(t, names["imaging"])

	// the root stays the ehr directory
	dbEhr, err := d.GetEhr(ehr.ID)
	require.NoError(t, err)
	require.Equal(t, rootID, dbEhr.DirectoryID.UUID)

	// the replaced subtree is fully reconstructable at its own instant
	old, err := d.GetFolderTreeAtTime(rootID, betweenVersions)
	require.NoError(t, err)
	require.Equal(t, rootID, old.ID)
	require.Len(t, old.Items, 1)
	oldNames := treeNames(old)
	require.True(t, oldNames["labs"])
	require.True(t, oldNames["imaging"])
	require.False(t, oldNames["medications"])
	require.Len(t, old.FindSubfolder("labs").Items, 1)

	// reconstructing at a current instant matches the live walk
	nowTree, err := d.GetFolderTreeAtTime(rootID, time.Now())
	require.NoError(t, err)
	nowNames := treeNames(nowTree)
	require.True(t, nowNames["medications"])
	require.False(t, nowNames["labs"])
	require.Len(t, nowTree.Items, 2)
}

func TestUpdateFolderTreeVersionArithmetic(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "update-subject-2")

	beforeCreate := time.Now()
	time.Sleep(10 * time.Millisecond)
	rootID, err := d.CreateFolderTree(ehr.ID, folderNode("root", 0))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	betweenVersions := time.Now()
	time.Sleep(10 * time.Millisecond)

	changed, err := d.UpdateFolderTree(rootID, folderNode("root", 1), time.Now())
	require.NoError(t, err)
	require.True(t, changed)
	time.Sleep(10 * time.Millisecond)

	_, err = d.GetFolderVersionAtTime(rootID, beforeCreate)
	require.ErrorIs(t, err, ErrNoVersionAtTime)

	version, err := d.GetFolderVersionAtTime(rootID, betweenVersions)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	version, err = d.GetFolderVersionAtTime(rootID, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, version)

	_, err = d.GetFolderTreeAtTime(rootID, beforeCreate)
	require.ErrorIs(t, err, ErrNoVersionAtTime)
}

func TestUpdateFolderTreeNestedKeepsParentEdge(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "update-subject-3")

	rootID, err := d.CreateFolderTree(ehr.ID, folderNode("root", 0,
		folderNode("episodes", 0,
			folderNode("2024", 1))))
	require.NoError(t, err)

	root, err := d.GetFolderTree(rootID)
	require.NoError(t, err)
	episodes := root.FindSubfolder("episodes")
	require.NotNil(t, episodes)

	time.Sleep(10 * time.Millisecond)
	changed, err := d.UpdateFolderTree(episodes.ID, folderNode("episodes", 0,
		folderNode("2025", 2)), time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	// the rebuilt subtree is still attached below the untouched root
	root, err = d.GetFolderTree(rootID)
	require.NoError(t, err)
	episodes = root.FindSubfolder("episodes")
	require.NotNil(t, episodes)
	require.Equal(t, 3, root.CountNodes())
	require.NotNil(t, episodes.FindSubfolder("2025"))
	require.Nil(t, episodes.FindSubfolder("2024"))
}

func TestUpdateFolderTreeUnknownRoot(t *testing.T) {
	d := newTestDAO(t)

	_, err := d.UpdateFolderTree(uuid.New(), folderNode("root", 0), time.Now())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = d.UpdateFolderTree(uuid.Nil, folderNode("root", 0), time.Now())
	require.ErrorIs(t, err, ErrInvalidArgument)

	ehr := createTestEhr(t, d, "update-subject-4")
	rootID, err := d.CreateFolderTree(ehr.ID, folderNode("root", 0))
	require.NoError(t, err)
	_, err = d.UpdateFolderTree(rootID, nil, time.Now())
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUpdateFolderTreeRecordsModificationContribution(t *testing.T) {
	d := newTestDAO(t)
	ehr := createTestEhr(t, d, "update-subject-5")

	rootID, err := d.CreateFolderTree(ehr.ID, folderNode("root", 0))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = d.UpdateFolderTree(rootID, folderNode("root", 0, folderNode("notes", 0)), time.Now())
	require.NoError(t, err)

	current, err := d.GetFolderTree(rootID)
	require.NoError(t, err)
	contribution, err := d.GetContribution(current.InContribution)
	require.NoError(t, err)
	require.Equal(t, models.ChangeModification, contribution.ChangeType)
	require.Equal(t, models.DataTypeFolder, contribution.DataType)
	require.Equal(t, ehr.ID, contribution.EhrID.UUID)
}
