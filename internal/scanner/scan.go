package scanner

import (
	"fmt"
	"path/filepath"

	"github.com/reelhaven/mediaserver/internal/models"
	"github.com/reelhaven/mediaserver/internal/store"
)

// ProgressFunc is invoked periodically during a scan so callers can publish
// scan_progress events; message is a short human-readable status line.
type ProgressFunc func(processed, total int, message string)

type Scanner struct {
	libraries *store.LibraryRepository
	items     *store.ItemRepository
}

func NewScanner(libraries *store.LibraryRepository, items *store.ItemRepository) *Scanner {
	return &Scanner{libraries: libraries, items: items}
}

// Result is the outcome of one library scan.
type Result struct {
	Added    int
	Skipped  int
	Orphaned int
}

// Scan walks every path of the given library, parses each new candidate
// according to the library's kind, and creates the item graph
// idempotently. A second pass marks media files no longer observed on disk
// as orphaned, per the "mark, don't delete" policy.
func (s *Scanner) Scan(libraryID string, kind models.LibraryKind, progress ProgressFunc) (*Result, error) {
	paths, err := s.libraries.GetLibraryPaths(libraryID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	seen := map[string]bool{}

	for _, libPath := range paths {
		entries, err := WalkMediaDir(libPath.Path)
		if err != nil {
			continue // the root is skipped without logging; the scan continues
		}

		for i, entry := range entries {
			seen[entry.Path] = true

			exists, err := s.items.MediaFileExists(entry.Path)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Skipped++
				if progress != nil {
					progress(i+1, len(entries), fmt.Sprintf("skipped %s", entry.Path))
				}
				continue
			}

			relPath, _ := filepath.Rel(libPath.Path, entry.Path)

			switch kind {
			case models.LibraryMovies:
				if err := s.addMovie(libraryID, entry); err != nil {
					return nil, err
				}
			case models.LibraryTV:
				if err := s.addEpisode(libraryID, entry, relPath); err != nil {
					return nil, err
				}
			}
			result.Added++
			if progress != nil {
				progress(i+1, len(entries), fmt.Sprintf("added %s", entry.Path))
			}
		}
	}

	orphaned, err := s.items.MarkOrphaned(libraryID, seen)
	if err != nil {
		return nil, err
	}
	result.Orphaned = orphaned

	return result, nil
}

func (s *Scanner) addMovie(libraryID string, entry MediaEntry) error {
	parentDir := filepath.Base(filepath.Dir(entry.Path))
	info := ParseMovie(entry.Path, parentDir)

	itemID, err := s.items.FindOrCreateItem(libraryID, models.ItemMovie, nil, info.Title, info.Year)
	if err != nil {
		return err
	}

	file, err := s.items.CreateMediaFile(entry.Path, entry.SizeBytes, entry.MtimeTS)
	if err != nil {
		return err
	}

	return s.items.CreateFileMap(itemID, file.ID, "primary")
}

func (s *Scanner) addEpisode(libraryID string, entry MediaEntry, relPath string) error {
	info := ParseEpisode(entry.Path, relPath)

	seriesID, err := s.items.FindOrCreateItem(libraryID, models.ItemSeries, nil, info.SeriesTitle, nil)
	if err != nil {
		return err
	}

	seasonTitle := fmt.Sprintf("Season %d", info.Season)
	if info.Season == 0 {
		seasonTitle = "Specials"
	}
	seasonID, err := s.items.FindOrCreateItem(libraryID, models.ItemSeason, &seriesID, seasonTitle, nil)
	if err != nil {
		return err
	}
	seasonNum := info.Season
	if err := s.items.SetSeasonEpisodeNumbers(seasonID, &seasonNum, nil); err != nil {
		return err
	}

	episodeTitle := info.EpisodeTitle
	if episodeTitle == "" {
		episodeTitle = fmt.Sprintf("Episode %d", info.Episode)
	}
	episodeID, err := s.items.FindOrCreateItem(libraryID, models.ItemEpisode, &seasonID, episodeTitle, nil)
	if err != nil {
		return err
	}
	episodeNum := info.Episode
	if err := s.items.SetSeasonEpisodeNumbers(episodeID, &seasonNum, &episodeNum); err != nil {
		return err
	}

	file, err := s.items.CreateMediaFile(entry.Path, entry.SizeBytes, entry.MtimeTS)
	if err != nil {
		return err
	}

	return s.items.CreateFileMap(episodeID, file.ID, "primary")
}
