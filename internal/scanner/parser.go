package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// MovieInfo is the parsed result for a movies-library candidate.
type MovieInfo struct {
	Title string
	Year  *int
}

// EpisodeInfo is the parsed result for a tv_shows-library candidate.
type EpisodeInfo struct {
	SeriesTitle  string
	Season       int
	Episode      int
	EpisodeTitle string
}

var (
	reMovieYearParen = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)`)
	reMovieYearDot   = regexp.MustCompile(`^(.+?)[.\s](\d{4})(?:[.\s]|$)`)

	reSxxExx        = regexp.MustCompile(`(?i)[Ss](\d{1,2})[Ee](\d{1,3})`)
	reXEp           = regexp.MustCompile(`(?i)(\d{1,2})[xX](\d{2,3})`)
	reSeasonEpisode = regexp.MustCompile(`(?i)Season\s+(\d+)\s+Episode\s+(\d+)`)

	reProviderID = regexp.MustCompile(`\[(\w+)=([^\]]+)\]`)
)

// cleanTitle replaces '.'/'_' with spaces and trims. It expects an
// extension-free stem (see stemOf); it does not strip an extension itself.
func cleanTitle(stem string) string {
	s := strings.ReplaceAll(stem, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(s)
}

// stemOf strips the directory and the extension from a path.
func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractProviderIDs pulls "[provider=value]" tags out of a string,
// returning the cleaned remainder alongside the extracted map.
func ExtractProviderIDs(s string) (string, map[string]string) {
	ids := map[string]string{}
	matches := reProviderID.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, ids
	}
	cleaned := reProviderID.ReplaceAllString(s, "")
	for _, m := range reProviderID.FindAllStringSubmatch(s, -1) {
		ids[m[1]] = m[2]
	}
	_ = matches
	return strings.TrimSpace(cleaned), ids
}

// ParseMovie parses a movie candidate. parentDirName, if non-empty, is the
// parent directory name; it is tried first since a directory name usually
// carries the authoritative year.
func ParseMovie(path string, parentDirName string) MovieInfo {
	if parentDirName != "" {
		if m := reMovieYearParen.FindStringSubmatch(parentDirName); m != nil {
			year, _ := strconv.Atoi(m[2])
			return MovieInfo{Title: strings.TrimSpace(m[1]), Year: &year}
		}
	}
	return parseMovieFromStem(stemOf(path))
}

func parseMovieFromStem(stem string) MovieInfo {
	if m := reMovieYearParen.FindStringSubmatch(stem); m != nil {
		year, _ := strconv.Atoi(m[2])
		return MovieInfo{Title: strings.TrimSpace(m[1]), Year: &year}
	}
	if m := reMovieYearDot.FindStringSubmatch(stem); m != nil {
		if year, err := strconv.Atoi(m[2]); err == nil && year >= 1900 && year <= 2100 {
			return MovieInfo{Title: cleanTitle(m[1]), Year: &year}
		}
	}
	return MovieInfo{Title: cleanTitle(stem)}
}

// ParseEpisode parses a tv_shows candidate. relPath is the candidate path
// relative to the library root, used to recover a series directory name
// when the filename carries no usable title fragment.
func ParseEpisode(path, relPath string) EpisodeInfo {
	stem := stemOf(path)

	tryPatterns := []struct {
		re *regexp.Regexp
	}{{reSxxExx}, {reXEp}, {reSeasonEpisode}}

	for _, p := range tryPatterns {
		loc := p.re.FindStringSubmatchIndex(stem)
		if loc == nil {
			continue
		}
		m := p.re.FindStringSubmatch(stem)
		season, _ := strconv.Atoi(m[1])
		episode, _ := strconv.Atoi(m[2])

		seriesTitle := cleanTitle(stem[:loc[0]])
		episodeTitle := strings.Trim(stem[loc[1]:], " -._")
		episodeTitle = cleanTitle(episodeTitle)

		if seriesTitle == "" {
			seriesTitle = seriesDirFallback(relPath)
		}

		return EpisodeInfo{
			SeriesTitle:  seriesTitle,
			Season:       season,
			Episode:      episode,
			EpisodeTitle: episodeTitle,
		}
	}

	return EpisodeInfo{SeriesTitle: seriesDirFallback(relPath)}
}

// seriesDirFallback takes the first path component of a relative path as
// the series directory, stripping provider-ID bracket tags from it.
func seriesDirFallback(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	parts := strings.Split(relPath, "/")
	if len(parts) == 0 {
		return ""
	}
	cleaned, _ := ExtractProviderIDs(parts[0])
	return strings.TrimSpace(cleaned)
}
