package scoring

import (
	"testing"

	"cpted-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v int) *int { return &v }

func item(zone, principle string, s *int, na bool) domain.ItemScore {
	return domain.ItemScore{ZoneKey: zone, PrincipleKey: principle, Score: s, IsNA: na}
}

func TestMean_ExcludesNilAndNA(t *testing.T) {
	items := []domain.ItemScore{
		item("exterior", "surveillance", score(5), false),
		item("exterior", "surveillance", score(4), false),
		item("exterior", "access", nil, false),
		item("exterior", "access", score(1), true), // N/A wins over stored score
		item("exterior", "territoriality", score(3), false),
	}

	m := Mean(items)
	require.NotNil(t, m)
	assert.Equal(t, 4.0, *m)
}

func TestMean_EmptyQualifyingSetIsNil(t *testing.T) {
	assert.Nil(t, Mean(nil))
	assert.Nil(t, Mean([]domain.ItemScore{}))

	allNA := []domain.ItemScore{
		item("z", "p", score(2), true),
		item("z", "p", nil, true),
	}
	assert.Nil(t, Mean(allNA), "all-N/A zone must yield nil, not 0")
}

func TestPrincipleMean(t *testing.T) {
	items := []domain.ItemScore{
		item("z", "surveillance", score(5), false),
		item("z", "surveillance", score(3), false),
		item("z", "access", score(1), false),
	}

	m := PrincipleMean(items, "surveillance")
	require.NotNil(t, m)
	assert.Equal(t, 4.0, *m)

	assert.Nil(t, PrincipleMean(items, "maintenance"))
}

func TestZoneMean(t *testing.T) {
	items := []domain.ItemScore{
		item("exterior", "p", score(4), false),
		item("exterior", "p", score(2), false),
		item("interior", "p", score(5), false),
	}

	m := ZoneMean(items, "exterior")
	require.NotNil(t, m)
	assert.Equal(t, 3.0, *m)
}

func TestOverallScore_SkipsUnscoredZones(t *testing.T) {
	// Two zones, one with mean 4.0 and one entirely unscored: the overall
	// score must be 4.0, not 2.0.
	items := []domain.ItemScore{
		item("exterior", "p", score(4), false),
		item("interior", "p", nil, false),
		item("interior", "p", nil, false),
	}

	o := OverallScore(items)
	require.NotNil(t, o)
	assert.Equal(t, 4.0, *o)
}

func TestOverallScore_InvariantUnderZoneReordering(t *testing.T) {
	a := []domain.ItemScore{
		item("z1", "p", score(5), false),
		item("z2", "p", score(3), false),
		item("z3", "p", nil, false),
	}
	b := []domain.ItemScore{a[2], a[0], a[1]}

	oa, ob := OverallScore(a), OverallScore(b)
	require.NotNil(t, oa)
	require.NotNil(t, ob)
	assert.Equal(t, *oa, *ob)
	assert.Equal(t, 4.0, *oa)
}

func TestOverallScore_NoScoredZones(t *testing.T) {
	items := []domain.ItemScore{
		item("z1", "p", nil, false),
		item("z2", "p", nil, true),
	}
	assert.Nil(t, OverallScore(items))
}

func TestCompleted(t *testing.T) {
	assert.False(t, Completed(nil), "empty zone is never complete")

	partial := []domain.ItemScore{
		item("z", "p", score(3), false),
		item("z", "p", nil, false),
	}
	assert.False(t, Completed(partial))

	done := []domain.ItemScore{
		item("z", "p", score(3), false),
		item("z", "p", nil, true),
	}
	assert.True(t, Completed(done))

	// A zone addressed entirely with N/A is complete even though its mean is nil.
	allNA := []domain.ItemScore{
		item("z", "p", nil, true),
		item("z", "p", nil, true),
	}
	assert.True(t, Completed(allNA))
	assert.Nil(t, Mean(allNA))
}

func TestCountsFor(t *testing.T) {
	items := []domain.ItemScore{
		item("z", "p", score(5), false),
		item("z", "p", score(4), false),
		item("z", "p", nil, false),
		item("z", "p", score(1), true),
		item("z", "p", score(3), false),
	}

	c := CountsFor(items)
	assert.Equal(t, Counts{Total: 5, Scored: 3, NA: 1, Addressed: 4, Remaining: 1}, c)
}

func TestSpecWorkedExample(t *testing.T) {
	// Items [5, 4, nil, NA, 3] -> scored set [5, 4, 3] -> mean 4.0.
	items := []domain.ItemScore{
		item("z", "p", score(5), false),
		item("z", "p", score(4), false),
		item("z", "p", nil, false),
		item("z", "p", nil, true),
		item("z", "p", score(3), false),
	}

	m := Mean(items)
	require.NotNil(t, m)
	assert.Equal(t, 4.0, *m)
}

func TestRecompute(t *testing.T) {
	zones := []domain.ZoneScore{
		{ZoneKey: "exterior", ZoneName: "Exterior"},
		{ZoneKey: "interior", ZoneName: "Interior"},
		{ZoneKey: "parking", ZoneName: "Parking"},
	}
	items := []domain.ItemScore{
		item("exterior", "p", score(4), false),
		item("exterior", "p", score(2), false),
		item("interior", "p", nil, true),
		item("parking", "p", nil, false),
	}

	overall := Recompute(zones, items)

	require.NotNil(t, zones[0].AverageScore)
	assert.Equal(t, 3.0, *zones[0].AverageScore)
	assert.True(t, zones[0].Completed)

	assert.Nil(t, zones[1].AverageScore)
	assert.True(t, zones[1].Completed, "all-N/A zone counts as completed")

	assert.Nil(t, zones[2].AverageScore)
	assert.False(t, zones[2].Completed)

	require.NotNil(t, overall)
	assert.Equal(t, 3.0, *overall, "only the exterior zone contributes")
}
