package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "assessments.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestAssessment(t *testing.T, st *Store) *domain.AssessmentDetail {
	t.Helper()
	a, err := st.CreateAssessment(context.Background(), "Riverside Plaza", "100 River St", "commercial", "J. Doe")
	require.NoError(t, err)
	d, err := st.GetAssessment(context.Background(), a.ID)
	require.NoError(t, err)
	return d
}

func TestCreateAssessment_ExpandsTemplateOnce(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)

	checklist, err := template.Default()
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInProgress, d.Assessment.Status)
	assert.Equal(t, "Riverside Plaza", d.Assessment.PropertyName)
	assert.Nil(t, d.Assessment.OverallScore)
	assert.Equal(t, 0, d.Assessment.SyncVersion)
	assert.Nil(t, d.Assessment.SyncedAt)

	require.Len(t, d.ZoneScores, len(checklist.Zones))
	require.Len(t, d.ItemScores, checklist.ItemCount())

	for _, z := range d.ZoneScores {
		assert.Nil(t, z.AverageScore)
		assert.False(t, z.Completed)
	}
	for _, it := range d.ItemScores {
		assert.Nil(t, it.Score)
		assert.False(t, it.IsNA)
		assert.NotEmpty(t, it.ID)
		assert.NotEmpty(t, it.ItemText)
	}
}

func TestSetItemScore_RecomputesRollupsInSameWrite(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	firstZone := d.ZoneScores[0].ZoneKey
	var zoneItems []domain.ItemScore
	for _, it := range d.ItemScores {
		if it.ZoneKey == firstZone {
			zoneItems = append(zoneItems, it)
		}
	}
	require.NotEmpty(t, zoneItems)

	// Score every item in the first zone with 4.
	for _, it := range zoneItems {
		v := 4
		require.NoError(t, st.SetItemScore(ctx, it.ID, &v))
	}

	d, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)

	for _, z := range d.ZoneScores {
		if z.ZoneKey == firstZone {
			require.NotNil(t, z.AverageScore)
			assert.Equal(t, 4.0, *z.AverageScore)
			assert.True(t, z.Completed)
		} else {
			assert.Nil(t, z.AverageScore)
			assert.False(t, z.Completed)
		}
	}

	// Overall is the mean of zone means; incomplete zones contribute nothing.
	require.NotNil(t, d.Assessment.OverallScore)
	assert.Equal(t, 4.0, *d.Assessment.OverallScore)
}

func TestSetItemNA_ExcludesFromAggregation(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	firstZone := d.ZoneScores[0].ZoneKey
	var zoneItems []domain.ItemScore
	for _, it := range d.ItemScores {
		if it.ZoneKey == firstZone {
			zoneItems = append(zoneItems, it)
		}
	}
	require.GreaterOrEqual(t, len(zoneItems), 2)

	two, five := 2, 5
	require.NoError(t, st.SetItemScore(ctx, zoneItems[0].ID, &five))
	require.NoError(t, st.SetItemScore(ctx, zoneItems[1].ID, &two))

	// Marking the low item N/A removes it from the average even though its
	// stored score stays.
	require.NoError(t, st.SetItemNA(ctx, zoneItems[1].ID, true))

	d, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	for _, z := range d.ZoneScores {
		if z.ZoneKey == firstZone {
			require.NotNil(t, z.AverageScore)
			assert.Equal(t, 5.0, *z.AverageScore)
		}
	}
	for _, it := range d.ItemScores {
		if it.ID == zoneItems[1].ID {
			assert.True(t, it.IsNA)
			require.NotNil(t, it.Score)
			assert.Equal(t, 2, *it.Score)
		}
	}

	// Un-marking brings the score back into the average.
	require.NoError(t, st.SetItemNA(ctx, zoneItems[1].ID, false))
	d, err = st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	for _, z := range d.ZoneScores {
		if z.ZoneKey == firstZone {
			require.NotNil(t, z.AverageScore)
			assert.Equal(t, 3.5, *z.AverageScore)
		}
	}
}

func TestSetItemScore_Validation(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	bad := 6
	err := st.SetItemScore(ctx, d.ItemScores[0].ID, &bad)
	assert.Error(t, err)

	v := 3
	err = st.SetItemScore(ctx, "no-such-item", &v)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetItemScore_ClearReturnsZoneToIncomplete(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	itemID := d.ItemScores[0].ID
	v := 5
	require.NoError(t, st.SetItemScore(ctx, itemID, &v))
	require.NoError(t, st.SetItemScore(ctx, itemID, nil))

	d, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Nil(t, d.ItemScores[0].Score)
	assert.Nil(t, d.Assessment.OverallScore)
}

func TestDataURL_RoundTrip(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01}
	enc := EncodeDataURL("image/png", data)

	contentType, decoded, err := DecodeDataURL(enc)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, data, decoded)

	// Empty content type defaults to JPEG.
	contentType, _, err = DecodeDataURL(EncodeDataURL("", data))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestDataURL_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"image/jpeg;base64,AAAA",
		"data:image/jpeg,plain",
		"data:image/jpeg;base64",
		"data:image/jpeg;base64,not!!base64",
	} {
		_, _, err := DecodeDataURL(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestPhotos_RoundTripAndSyncFlag(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	itemID := d.ItemScores[0].ID
	data := []byte("jpeg bytes here")
	photo := domain.Photo{
		ID:           "photo-1",
		AssessmentID: d.Assessment.ID,
		ItemScoreID:  &itemID,
		ZoneKey:      d.ItemScores[0].ZoneKey,
		CapturedAt:   time.Now().UTC().Truncate(time.Second),
		Annotation:   "broken light by entrance",
		ContentType:  "image/jpeg",
	}
	require.NoError(t, st.AddPhoto(ctx, photo, data))

	got, blob, err := st.GetPhoto(ctx, "photo-1")
	require.NoError(t, err)
	assert.Equal(t, data, blob)
	assert.Equal(t, photo.Annotation, got.Annotation)
	require.NotNil(t, got.ItemScoreID)
	assert.Equal(t, itemID, *got.ItemScoreID)
	assert.False(t, got.Synced)

	// Detail view attaches the photo to its item.
	d, err = st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	require.Len(t, d.Photos, 1)
	assert.Equal(t, []string{"photo-1"}, d.ItemScores[0].PhotoIDs)

	photos, blobs, err := st.UnsyncedPhotos(ctx, d.Assessment.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, data, blobs[0])

	require.NoError(t, st.MarkPhotoSynced(ctx, "photo-1"))
	photos, _, err = st.UnsyncedPhotos(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestAddPhoto_ReAddOverwrites(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	p := domain.Photo{ID: "p1", AssessmentID: d.Assessment.ID, CapturedAt: time.Now().UTC()}
	require.NoError(t, st.AddPhoto(ctx, p, []byte("first")))
	p.Annotation = "second take"
	require.NoError(t, st.AddPhoto(ctx, p, []byte("second")))

	got, blob, err := st.GetPhoto(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), blob)
	assert.Equal(t, "second take", got.Annotation)

	photos, _, err := st.UnsyncedPhotos(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestMarkSynced_StampsServerFields(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	syncedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.MarkSynced(ctx, d.Assessment.ID, syncedAt, 3))

	d, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSynced, d.Assessment.Status)
	assert.Equal(t, 3, d.Assessment.SyncVersion)
	require.NotNil(t, d.Assessment.SyncedAt)
	assert.True(t, d.Assessment.SyncedAt.Equal(syncedAt))
}

func TestDeleteAssessment_CascadesToChildren(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	require.NoError(t, st.AddPhoto(ctx, domain.Photo{
		ID: "p1", AssessmentID: d.Assessment.ID, CapturedAt: time.Now().UTC(),
	}, []byte("x")))

	require.NoError(t, st.DeleteAssessment(ctx, d.Assessment.ID))

	_, err := st.GetAssessment(ctx, d.Assessment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = st.GetPhoto(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteAssessment(ctx, d.Assessment.ID), ErrNotFound)
}

func TestApplyRemote_ReplacesLocalCopy(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	// Local edits and a local photo that the remote copy does not know.
	v := 2
	require.NoError(t, st.SetItemScore(ctx, d.ItemScores[0].ID, &v))
	require.NoError(t, st.AddPhoto(ctx, domain.Photo{
		ID: "stale-photo", AssessmentID: d.Assessment.ID, CapturedAt: time.Now().UTC(),
	}, []byte("x")))

	overall := 4.5
	avg := 4.5
	score := 5
	syncedAt := time.Now().UTC().Truncate(time.Second)
	remote := &domain.AssessmentDetail{
		Assessment: domain.Assessment{
			ID:              d.Assessment.ID,
			Status:          domain.StatusSynced,
			PropertyName:    "Riverside Plaza (renamed)",
			PropertyAddress: "100 River St",
			AssessorName:    "J. Doe",
			AssessmentDate:  d.Assessment.AssessmentDate,
			OverallScore:    &overall,
			SyncVersion:     2,
			SyncedAt:        &syncedAt,
			CreatedAt:       d.Assessment.CreatedAt,
			UpdatedAt:       time.Now().UTC(),
		},
		ZoneScores: []domain.ZoneScore{
			{ZoneKey: "perimeter", ZoneName: "Perimeter", SortOrder: 0, AverageScore: &avg, Completed: true},
		},
		ItemScores: []domain.ItemScore{
			{ID: "remote-item-1", ZoneKey: "perimeter", PrincipleKey: "natural_surveillance", SortOrder: 0, ItemText: "Sightlines", Score: &score},
		},
	}

	require.NoError(t, st.ApplyRemote(ctx, remote))

	got, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riverside Plaza (renamed)", got.Assessment.PropertyName)
	assert.Equal(t, 2, got.Assessment.SyncVersion)
	require.Len(t, got.ZoneScores, 1)
	require.Len(t, got.ItemScores, 1)
	assert.Equal(t, "remote-item-1", got.ItemScores[0].ID)

	// Local photo rows are dropped; binaries come back via download.
	assert.Empty(t, got.Photos)
	_, _, err = st.GetPhoto(ctx, "stale-photo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyRemote_FailureLeavesPriorCopyIntact(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	v := 3
	require.NoError(t, st.SetItemScore(ctx, d.ItemScores[0].ID, &v))
	before, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)

	// Duplicate item identity violates the primary key mid-transaction.
	remote := &domain.AssessmentDetail{
		Assessment: before.Assessment,
		ZoneScores: []domain.ZoneScore{
			{ZoneKey: "perimeter", ZoneName: "Perimeter", SortOrder: 0},
		},
		ItemScores: []domain.ItemScore{
			{ID: "dup", ZoneKey: "perimeter", PrincipleKey: "p", SortOrder: 0, ItemText: "a"},
			{ID: "dup", ZoneKey: "perimeter", PrincipleKey: "p", SortOrder: 1, ItemText: "b"},
		},
	}
	require.Error(t, st.ApplyRemote(ctx, remote))

	after, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, len(before.ItemScores), len(after.ItemScores))
	require.NotNil(t, after.ItemScores[0].Score)
	assert.Equal(t, 3, *after.ItemScores[0].Score)
}

func TestSetZoneFindingsAndRecommendations(t *testing.T) {
	st := openTestStore(t)
	d := createTestAssessment(t, st)
	ctx := context.Background()

	zoneKey := d.ZoneScores[0].ZoneKey
	require.NoError(t, st.SetZoneFindings(ctx, d.Assessment.ID, zoneKey, "fence gap on north side"))
	require.NoError(t, st.SetRecommendations(ctx, d.Assessment.ID, []domain.Recommendation{
		{Description: "Repair fence", Priority: "high", Timeline: "30 days"},
	}))

	d, err := st.GetAssessment(ctx, d.Assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, "fence gap on north side", d.ZoneScores[0].Findings)
	require.Len(t, d.Assessment.Recommendations, 1)
	assert.Equal(t, "Repair fence", d.Assessment.Recommendations[0].Description)
}
