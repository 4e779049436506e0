package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelhaven/mediaserver/internal/models"
)

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// FindOrCreateItem selects by the unique key (library_id, kind, parent_id,
// title); if present it returns that id unchanged, otherwise it inserts.
// Called twice with identical arguments it is idempotent: same id both
// times.
func (r *ItemRepository) FindOrCreateItem(libraryID string, kind models.ItemKind, parentID *string, title string, year *int) (string, error) {
	id, err := r.findItem(libraryID, kind, parentID, title)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	now := time.Now().Unix()
	newID := uuid.NewString()
	sortTitle := sortTitleOf(title)

	_, err = r.db.Exec(
		`INSERT INTO items (id, library_id, kind, parent_id, title, sort_title, year, created_ts, updated_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (library_id, kind, parent_id, title) DO NOTHING`,
		newID, libraryID, kind, parentID, title, sortTitle, year, now, now,
	)
	if err != nil {
		return "", err
	}

	// A concurrent writer may have won the race; re-select either way.
	return r.findItem(libraryID, kind, parentID, title)
}

func (r *ItemRepository) findItem(libraryID string, kind models.ItemKind, parentID *string, title string) (string, error) {
	var id string
	var err error
	if parentID == nil {
		err = r.db.QueryRow(
			`SELECT id FROM items WHERE library_id = ? AND kind = ? AND parent_id IS NULL AND title = ?`,
			libraryID, kind, title,
		).Scan(&id)
	} else {
		err = r.db.QueryRow(
			`SELECT id FROM items WHERE library_id = ? AND kind = ? AND parent_id = ? AND title = ?`,
			libraryID, kind, *parentID, title,
		).Scan(&id)
	}
	return id, err
}

// SetSeasonEpisodeNumbers stamps the first-class numeric columns on a
// season or episode row, avoiding any later need to re-parse the title.
func (r *ItemRepository) SetSeasonEpisodeNumbers(itemID string, seasonNumber, episodeNumber *int) error {
	_, err := r.db.Exec(`UPDATE items SET season_number = ?, episode_number = ? WHERE id = ?`, seasonNumber, episodeNumber, itemID)
	return err
}

func (r *ItemRepository) GetItem(id string) (*models.Item, error) {
	item := &models.Item{}
	err := r.db.QueryRow(
		`SELECT id, library_id, kind, parent_id, title, sort_title, year, season_number, episode_number,
		        overview, poster_url, backdrop_url, logo_url, thumb_url, created_ts, updated_ts
		 FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.LibraryID, &item.Kind, &item.ParentID, &item.Title, &item.SortTitle, &item.Year,
		&item.SeasonNumber, &item.EpisodeNumber, &item.Overview, &item.PosterURL, &item.BackdropURL, &item.LogoURL,
		&item.ThumbURL, &item.CreatedTS, &item.UpdatedTS)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *ItemRepository) ListChildren(parentID string) ([]*models.Item, error) {
	rows, err := r.db.Query(
		`SELECT id, library_id, kind, parent_id, title, sort_title, year, season_number, episode_number,
		        overview, poster_url, backdrop_url, logo_url, thumb_url, created_ts, updated_ts
		 FROM items WHERE parent_id = ? ORDER BY sort_title`, parentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Item
	for rows.Next() {
		item := &models.Item{}
		if err := rows.Scan(&item.ID, &item.LibraryID, &item.Kind, &item.ParentID, &item.Title, &item.SortTitle, &item.Year,
			&item.SeasonNumber, &item.EpisodeNumber, &item.Overview, &item.PosterURL, &item.BackdropURL, &item.LogoURL,
			&item.ThumbURL, &item.CreatedTS, &item.UpdatedTS); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *ItemRepository) ListRoots(libraryID string) ([]*models.Item, error) {
	rows, err := r.db.Query(
		`SELECT id, library_id, kind, parent_id, title, sort_title, year, season_number, episode_number,
		        overview, poster_url, backdrop_url, logo_url, thumb_url, created_ts, updated_ts
		 FROM items WHERE library_id = ? AND parent_id IS NULL ORDER BY sort_title`, libraryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Item
	for rows.Next() {
		item := &models.Item{}
		if err := rows.Scan(&item.ID, &item.LibraryID, &item.Kind, &item.ParentID, &item.Title, &item.SortTitle, &item.Year,
			&item.SeasonNumber, &item.EpisodeNumber, &item.Overview, &item.PosterURL, &item.BackdropURL, &item.LogoURL,
			&item.ThumbURL, &item.CreatedTS, &item.UpdatedTS); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// CreateMediaFile inserts a new file row; path is the idempotence key the
// scanner checks before calling this.
func (r *ItemRepository) CreateMediaFile(path string, sizeBytes, mtimeTS int64) (*models.MediaFile, error) {
	file := &models.MediaFile{
		ID:        uuid.NewString(),
		Path:      path,
		SizeBytes: sizeBytes,
		MtimeTS:   mtimeTS,
	}
	_, err := r.db.Exec(
		`INSERT INTO media_files (id, path, size_bytes, mtime_ts) VALUES (?, ?, ?, ?)`,
		file.ID, file.Path, file.SizeBytes, file.MtimeTS,
	)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (r *ItemRepository) MediaFileExists(path string) (bool, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM media_files WHERE path = ?`, path).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ItemRepository) GetMediaFile(id string) (*models.MediaFile, error) {
	f := &models.MediaFile{}
	err := r.db.QueryRow(
		`SELECT id, path, size_bytes, mtime_ts, container, duration_ms, stream_info_json, orphaned_ts
		 FROM media_files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Path, &f.SizeBytes, &f.MtimeTS, &f.Container, &f.DurationMs, &f.StreamInfoJSON, &f.OrphanedTS)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *ItemRepository) CreateFileMap(itemID, fileID, mapKind string) error {
	_, err := r.db.Exec(
		`INSERT INTO file_maps (id, item_id, file_id, map_kind, created_ts) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), itemID, fileID, mapKind, time.Now().Unix(),
	)
	return err
}

// GetItemMediaFileID returns the id of the item's primary media file, if
// any is mapped directly to it. Used to scope a stream token to the
// MediaFile the range streamer actually serves, rather than the item.
func (r *ItemRepository) GetItemMediaFileID(itemID string) (string, error) {
	var fileID string
	err := r.db.QueryRow(
		`SELECT fm.file_id FROM file_maps fm WHERE fm.item_id = ? AND fm.map_kind = 'primary' LIMIT 1`, itemID,
	).Scan(&fileID)
	return fileID, err
}

// GetItemMediaPath returns the path of the item's primary media file, if
// any is mapped directly to it.
func (r *ItemRepository) GetItemMediaPath(itemID string) (string, error) {
	var path string
	err := r.db.QueryRow(
		`SELECT mf.path FROM file_maps fm JOIN media_files mf ON mf.id = fm.file_id
		 WHERE fm.item_id = ? AND fm.map_kind = 'primary' LIMIT 1`, itemID,
	).Scan(&path)
	return path, err
}

// GetFirstDescendantMediaPath is a breadth-first walk over the item tree
// returning the shallowest linked file, used by the stream handlers to find
// a playable file for an item with no file of its own (a series or season).
func (r *ItemRepository) GetFirstDescendantMediaPath(itemID string) (string, error) {
	queue := []string{itemID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if path, err := r.GetItemMediaPath(current); err == nil {
			return path, nil
		} else if err != sql.ErrNoRows {
			return "", err
		}

		children, err := r.ListChildren(current)
		if err != nil {
			return "", err
		}
		for _, c := range children {
			queue = append(queue, c.ID)
		}
	}
	return "", sql.ErrNoRows
}

// MarkOrphaned stamps orphaned_ts on every media file under the given
// library whose path was not present in seenPaths during the most recent
// scan walk. Rows are marked, never deleted.
func (r *ItemRepository) MarkOrphaned(libraryID string, seenPaths map[string]bool) (int, error) {
	rows, err := r.db.Query(
		`SELECT mf.id, mf.path FROM media_files mf
		 JOIN file_maps fm ON fm.file_id = mf.id
		 JOIN items i ON i.id = fm.item_id
		 WHERE i.library_id = ? AND mf.orphaned_ts IS NULL`, libraryID,
	)
	if err != nil {
		return 0, err
	}
	type hit struct{ id, path string }
	var toMark []hit
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, err
		}
		if !seenPaths[path] {
			toMark = append(toMark, hit{id, path})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	for _, h := range toMark {
		if _, err := r.db.Exec(`UPDATE media_files SET orphaned_ts = ? WHERE id = ?`, now, h.id); err != nil {
			return 0, err
		}
	}
	return len(toMark), nil
}

// PurgeOrphaned hard-deletes media files marked orphaned before cutoffTS.
// Not wired to any HTTP route; an admin-triggered maintenance operation
// kept at the store level.
func (r *ItemRepository) PurgeOrphaned(cutoffTS int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM media_files WHERE orphaned_ts IS NOT NULL AND orphaned_ts < ?`, cutoffTS)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetProviderID upserts (item_id, provider) -> value; a second call with a
// different value replaces the first, leaving exactly one row.
func (r *ItemRepository) SetProviderID(itemID, provider, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO provider_ids (item_id, provider, value) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, provider) DO UPDATE SET value = excluded.value`,
		itemID, provider, value,
	)
	return err
}

func (r *ItemRepository) LockField(itemID, field string) error {
	_, err := r.db.Exec(
		`INSERT INTO field_locks (item_id, field_name, locked_ts) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, field_name) DO UPDATE SET locked_ts = excluded.locked_ts`,
		itemID, field, time.Now().Unix(),
	)
	return err
}

func (r *ItemRepository) IsFieldLocked(itemID, field string) (bool, error) {
	var ts int64
	err := r.db.QueryRow(`SELECT locked_ts FROM field_locks WHERE item_id = ? AND field_name = ?`, itemID, field).Scan(&ts)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// UpdateProgress is a set-to operation: repeated calls with the same
// arguments are no-ops.
func (r *ItemRepository) UpdateProgress(userID, itemID string, progressMs int64, played bool) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(
		`INSERT INTO user_item_state (user_id, item_id, played, progress_ms, last_played_ts, favorite)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT (user_id, item_id) DO UPDATE SET played = excluded.played, progress_ms = excluded.progress_ms, last_played_ts = excluded.last_played_ts`,
		userID, itemID, played, progressMs, now,
	)
	return err
}

func (r *ItemRepository) GetUserItemState(userID, itemID string) (*models.UserItemState, error) {
	s := &models.UserItemState{UserID: userID, ItemID: itemID}
	err := r.db.QueryRow(
		`SELECT played, progress_ms, last_played_ts, favorite FROM user_item_state WHERE user_id = ? AND item_id = ?`,
		userID, itemID,
	).Scan(&s.Played, &s.ProgressMs, &s.LastPlayedTS, &s.Favorite)
	if err == sql.ErrNoRows {
		return &models.UserItemState{UserID: userID, ItemID: itemID}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// sortTitleOf lower-cases the title and strips a leading English article,
// computed at write time rather than recomputed per query.
func sortTitleOf(title string) string {
	lower := []rune(title)
	for i := range lower {
		if lower[i] >= 'A' && lower[i] <= 'Z' {
			lower[i] += 'a' - 'A'
		}
	}
	s := string(lower)
	for _, article := range []string{"the ", "a ", "an "} {
		if len(s) > len(article) && s[:len(article)] == article {
			return s[len(article):]
		}
	}
	return s
}
