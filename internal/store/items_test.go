package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelhaven/mediaserver/internal/models"
)

func newTestDB(t *testing.T) (libraries *LibraryRepository, items *ItemRepository) {
	t.Helper()
	db, err := Open(t.TempDir()+"/test.db", DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLibraryRepository(db), NewItemRepository(db)
}

func TestFindOrCreateItem_IsIdempotent(t *testing.T) {
	libraries, items := newTestDB(t)
	lib, err := libraries.CreateLibrary("Movies", models.LibraryMovies, []string{"/media/movies"})
	require.NoError(t, err)

	id1, err := items.FindOrCreateItem(lib.ID, models.ItemMovie, nil, "Arrival", nil)
	require.NoError(t, err)

	id2, err := items.FindOrCreateItem(lib.ID, models.ItemMovie, nil, "Arrival", nil)
	require.NoError(t, err)

	require.Equal(t, id1, id2)
}

func TestFindOrCreateItem_DistinctParentsAreDistinctItems(t *testing.T) {
	libraries, items := newTestDB(t)
	lib, err := libraries.CreateLibrary("TV", models.LibraryTV, []string{"/media/tv"})
	require.NoError(t, err)

	seriesID, err := items.FindOrCreateItem(lib.ID, models.ItemSeries, nil, "Show", nil)
	require.NoError(t, err)

	season1, err := items.FindOrCreateItem(lib.ID, models.ItemSeason, &seriesID, "Season 1", nil)
	require.NoError(t, err)

	otherSeries, err := items.FindOrCreateItem(lib.ID, models.ItemSeries, nil, "Other Show", nil)
	require.NoError(t, err)
	season1Other, err := items.FindOrCreateItem(lib.ID, models.ItemSeason, &otherSeries, "Season 1", nil)
	require.NoError(t, err)

	require.NotEqual(t, season1, season1Other)
}

func TestMarkOrphaned_MarksOnlyUnseenFiles(t *testing.T) {
	libraries, items := newTestDB(t)

	lib, err := libraries.CreateLibrary("Movies", models.LibraryMovies, []string{"/media/movies"})
	require.NoError(t, err)

	itemID, err := items.FindOrCreateItem(lib.ID, models.ItemMovie, nil, "Arrival", nil)
	require.NoError(t, err)
	file, err := items.CreateMediaFile("/media/movies/Arrival.mkv", 1024, 0)
	require.NoError(t, err)
	require.NoError(t, items.CreateFileMap(itemID, file.ID, "primary"))

	itemID2, err := items.FindOrCreateItem(lib.ID, models.ItemMovie, nil, "Gone", nil)
	require.NoError(t, err)
	file2, err := items.CreateMediaFile("/media/movies/Gone.mkv", 1024, 0)
	require.NoError(t, err)
	require.NoError(t, items.CreateFileMap(itemID2, file2.ID, "primary"))

	seen := map[string]bool{"/media/movies/Arrival.mkv": true}
	marked, err := items.MarkOrphaned(lib.ID, seen)
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	refreshed, err := items.GetMediaFile(file2.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.OrphanedTS)

	untouched, err := items.GetMediaFile(file.ID)
	require.NoError(t, err)
	require.Nil(t, untouched.OrphanedTS)
}

func TestUpdateProgress_UpsertsRepeatably(t *testing.T) {
	libraries, items := newTestDB(t)
	lib, err := libraries.CreateLibrary("Movies", models.LibraryMovies, []string{"/media/movies"})
	require.NoError(t, err)
	itemID, err := items.FindOrCreateItem(lib.ID, models.ItemMovie, nil, "Arrival", nil)
	require.NoError(t, err)

	require.NoError(t, items.UpdateProgress("user-1", itemID, 1000, false))
	require.NoError(t, items.UpdateProgress("user-1", itemID, 5000, true))

	state, err := items.GetUserItemState("user-1", itemID)
	require.NoError(t, err)
	require.Equal(t, int64(5000), state.ProgressMs)
	require.True(t, state.Played)
}
