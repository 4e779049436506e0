package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelhaven/mediaserver/internal/apierror"
	"github.com/reelhaven/mediaserver/internal/models"
)

type LibraryRepository struct {
	db *sql.DB
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// CreateLibrary inserts the library and all of its paths transactionally,
// matching the ownership rule that libraries exclusively own their paths.
func (r *LibraryRepository) CreateLibrary(name string, kind models.LibraryKind, paths []string) (*models.Library, error) {
	now := time.Now().Unix()
	lib := &models.Library{
		ID:                 uuid.NewString(),
		Name:               name,
		Kind:               kind,
		ShowImages:         true,
		PreferLocalArtwork: true,
		FetchOnlineArtwork: true,
		CreatedTS:          now,
		UpdatedTS:          now,
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO libraries (id, name, kind, show_images, prefer_local_artwork, fetch_online_artwork, created_ts, updated_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lib.ID, lib.Name, lib.Kind, lib.ShowImages, lib.PreferLocalArtwork, lib.FetchOnlineArtwork, lib.CreatedTS, lib.UpdatedTS,
	)
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		_, err = tx.Exec(
			`INSERT INTO library_paths (id, library_id, path, is_read_only) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), lib.ID, p, false,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return lib, nil
}

func (r *LibraryRepository) GetLibrary(id string) (*models.Library, error) {
	lib := &models.Library{}
	err := r.db.QueryRow(
		`SELECT id, name, kind, show_images, prefer_local_artwork, fetch_online_artwork, created_ts, updated_ts
		 FROM libraries WHERE id = ?`, id,
	).Scan(&lib.ID, &lib.Name, &lib.Kind, &lib.ShowImages, &lib.PreferLocalArtwork, &lib.FetchOnlineArtwork, &lib.CreatedTS, &lib.UpdatedTS)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("library not found")
	}
	if err != nil {
		return nil, err
	}
	return lib, nil
}

func (r *LibraryRepository) ListLibraries() ([]*models.Library, error) {
	rows, err := r.db.Query(
		`SELECT id, name, kind, show_images, prefer_local_artwork, fetch_online_artwork, created_ts, updated_ts
		 FROM libraries ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Library
	for rows.Next() {
		lib := &models.Library{}
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.Kind, &lib.ShowImages, &lib.PreferLocalArtwork, &lib.FetchOnlineArtwork, &lib.CreatedTS, &lib.UpdatedTS); err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (r *LibraryRepository) GetLibraryPaths(libraryID string) ([]*models.LibraryPath, error) {
	rows, err := r.db.Query(`SELECT id, library_id, path, is_read_only FROM library_paths WHERE library_id = ?`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LibraryPath
	for rows.Next() {
		p := &models.LibraryPath{}
		if err := rows.Scan(&p.ID, &p.LibraryID, &p.Path, &p.IsReadOnly); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetAllLibraryPaths enumerates every library path, for streaming-path
// validation against canonicalized request paths.
func (r *LibraryRepository) GetAllLibraryPaths() ([]*models.LibraryPath, error) {
	rows, err := r.db.Query(`SELECT id, library_id, path, is_read_only FROM library_paths`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LibraryPath
	for rows.Next() {
		p := &models.LibraryPath{}
		if err := rows.Scan(&p.ID, &p.LibraryID, &p.Path, &p.IsReadOnly); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetLibraryPathsForUser returns only the paths of libraries the user has
// been granted access to, used by the non-admin authorization branch.
func (r *LibraryRepository) GetLibraryPathsForUser(userID string) ([]*models.LibraryPath, error) {
	rows, err := r.db.Query(
		`SELECT lp.id, lp.library_id, lp.path, lp.is_read_only
		 FROM library_paths lp
		 JOIN user_library_access ula ON ula.library_id = lp.library_id
		 WHERE ula.user_id = ?`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LibraryPath
	for rows.Next() {
		p := &models.LibraryPath{}
		if err := rows.Scan(&p.ID, &p.LibraryID, &p.Path, &p.IsReadOnly); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
