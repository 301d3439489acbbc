package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEhrStatusEquals(t *testing.T) {
	a := EhrStatus{IsQueryable: true, IsModifiable: true}
	b := a
	require.True(t, a.Equals(b))

	b.OtherDetails = ToNullString(`{"note":"x"}`)
	require.False(t, a.Equals(b))

	// versioning metadata is not part of equality
	c := a
	c.SysTransaction = time.Now()
	require.True(t, a.Equals(c))
}

func TestFolderNodeHelpers(t *testing.T) {
	tree := &FolderNode{
		Subfolders: []*FolderNode{
			{Subfolders: []*FolderNode{{}}},
			{},
		},
	}
	tree.Name = "root"
	tree.Subfolders[0].Name = "labs"
	tree.Subfolders[0].Subfolders[0].Name = "2025"
	tree.Subfolders[1].Name = "imaging"

	require.Equal(t, 4, tree.CountNodes())
	require.Equal(t, 0, (*FolderNode)(nil).CountNodes())
	require.NotNil(t, tree.FindSubfolder("labs"))
	require.Nil(t, tree.FindSubfolder("2025"))
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{}
	type details struct {
		Severity string   `json:"severity"`
		Tags     []string `json:"tags"`
	}

	text, err := codec.Marshal(details{Severity: "moderate", Tags: []string{"chronic"}})
	require.NoError(t, err)

	var decoded details
	require.NoError(t, codec.Unmarshal(text, &decoded))
	require.Equal(t, "moderate", decoded.Severity)
	require.Equal(t, []string{"chronic"}, decoded.Tags)
}

func TestNullMarshalJSON(t *testing.T) {
	b, err := ToNullString("abc").MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"abc"`, string(b))

	b, err = NullTime{}.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "null", string(b))
}
