package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChecklistParses(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, c.Zones)
	assert.Greater(t, c.ItemCount(), 0)

	for _, z := range c.Zones {
		assert.NotEmpty(t, z.Key)
		assert.NotEmpty(t, z.Name)
		require.NotEmpty(t, z.Principles, "zone %s has no principles", z.Key)
	}
}

func TestLoadRejectsBadChecklists(t *testing.T) {
	_, err := Load([]byte("version: 1\nzones: []\n"))
	assert.Error(t, err)

	dup := `
version: 1
zones:
  - key: a
    name: A
    principles: [{key: p, name: P, items: [x]}]
  - key: a
    name: A again
    principles: [{key: p, name: P, items: [y]}]
`
	_, err = Load([]byte(dup))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	zones, items := c.Expand("assessment-1")

	assert.Len(t, zones, len(c.Zones))
	assert.Len(t, items, c.ItemCount())

	for i, z := range zones {
		assert.Equal(t, "assessment-1", z.AssessmentID)
		assert.Equal(t, i, z.SortOrder)
		assert.Nil(t, z.AverageScore)
		assert.False(t, z.Completed)
	}

	ids := make(map[string]bool)
	for i, it := range items {
		assert.Equal(t, "assessment-1", it.AssessmentID)
		assert.Equal(t, i, it.SortOrder, "sort order must be a single global sequence")
		assert.NotEmpty(t, it.ItemText)
		assert.NotEmpty(t, it.ZoneKey)
		assert.NotEmpty(t, it.PrincipleKey)
		assert.False(t, ids[it.ID], "item identities must be unique")
		ids[it.ID] = true
	}
}

func TestExpandGeneratesFreshIdentities(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, a := c.Expand("x")
	_, b := c.Expand("y")
	for i := range a {
		assert.NotEqual(t, a[i].ID, b[i].ID)
	}
}
