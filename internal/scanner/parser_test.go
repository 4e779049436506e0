package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMovie(t *testing.T) {
	cases := []struct {
		name      string
		path      string
		parentDir string
		wantTitle string
		wantYear  *int
	}{
		{
			name:      "year in parent directory wins",
			path:      "/media/Movies/Arrival (2016)/Arrival.mkv",
			parentDir: "Arrival (2016)",
			wantTitle: "Arrival",
			wantYear:  intPtr(2016),
		},
		{
			name:      "year in dotted stem",
			path:      "/media/Movies/The.Matrix.1999.1080p.mkv",
			parentDir: "",
			wantTitle: "The Matrix",
			wantYear:  intPtr(1999),
		},
		{
			name:      "no recoverable year",
			path:      "/media/Movies/Home Movie Night.mkv",
			parentDir: "",
			wantTitle: "Home Movie Night",
			wantYear:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := ParseMovie(tc.path, tc.parentDir)
			assert.Equal(t, tc.wantTitle, info.Title)
			if tc.wantYear == nil {
				assert.Nil(t, info.Year)
			} else {
				require.NotNil(t, info.Year)
				assert.Equal(t, *tc.wantYear, *info.Year)
			}
		})
	}
}

func TestParseEpisode_SxxExx(t *testing.T) {
	info := ParseEpisode("/media/TV/Breaking Bad/Breaking.Bad.S02E05.Breakage.mkv", "Breaking Bad/Breaking.Bad.S02E05.Breakage.mkv")
	assert.Equal(t, "Breaking Bad", info.SeriesTitle)
	assert.Equal(t, 2, info.Season)
	assert.Equal(t, 5, info.Episode)
	assert.Equal(t, "Breakage", info.EpisodeTitle)
}

func TestParseEpisode_NxNN(t *testing.T) {
	info := ParseEpisode("/media/TV/The Office/The Office 3x10.mkv", "The Office/The Office 3x10.mkv")
	assert.Equal(t, "The Office", info.SeriesTitle)
	assert.Equal(t, 3, info.Season)
	assert.Equal(t, 10, info.Episode)
}

func TestParseEpisode_FallsBackToSeriesDirectory(t *testing.T) {
	info := ParseEpisode("/media/TV/Show Name [tmdb=1234]/episode01.mkv", "Show Name [tmdb=1234]/episode01.mkv")
	assert.Equal(t, "Show Name", info.SeriesTitle)
}

func TestExtractProviderIDs(t *testing.T) {
	cleaned, ids := ExtractProviderIDs("Show Name [tmdb=1234] [imdb=tt0000001]")
	assert.Equal(t, "Show Name", cleaned)
	assert.Equal(t, "1234", ids["tmdb"])
	assert.Equal(t, "tt0000001", ids["imdb"])
}

func TestExtractProviderIDs_NoTags(t *testing.T) {
	cleaned, ids := ExtractProviderIDs("Plain Show Name")
	assert.Equal(t, "Plain Show Name", cleaned)
	assert.Empty(t, ids)
}

func intPtr(n int) *int { return &n }
