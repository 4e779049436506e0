// Package models defines the persistent entity graph: libraries, items,
// media files, and the playback/job state that hangs off them.
package models

// LibraryKind is the closed set of library content kinds the scanner and
// play-decision engine understand.
type LibraryKind string

const (
	LibraryMovies LibraryKind = "movies"
	LibraryTV     LibraryKind = "tv_shows"
)

type Library struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      LibraryKind `json:"kind"`
	CreatedTS int64       `json:"created_ts"`
	UpdatedTS int64       `json:"updated_ts"`

	ShowImages         bool `json:"show_images"`
	PreferLocalArtwork bool `json:"prefer_local_artwork"`
	FetchOnlineArtwork bool `json:"fetch_online_artwork"`
}

type LibraryPath struct {
	ID         string `json:"id"`
	LibraryID  string `json:"library_id"`
	Path       string `json:"path"`
	IsReadOnly bool   `json:"is_read_only"`
}

// ItemKind enumerates the content-graph node types. Movies and series are
// roots; seasons hang off series; episodes hang off seasons.
type ItemKind string

const (
	ItemMovie   ItemKind = "movie"
	ItemSeries  ItemKind = "series"
	ItemSeason  ItemKind = "season"
	ItemEpisode ItemKind = "episode"
)

type Item struct {
	ID        string   `json:"id"`
	LibraryID string   `json:"library_id"`
	Kind      ItemKind `json:"kind"`
	ParentID  *string  `json:"parent_id,omitempty"`
	Title     string   `json:"title"`
	SortTitle string   `json:"sort_title"`
	Year      *int     `json:"year,omitempty"`

	// SeasonNumber/EpisodeNumber are first-class on season/episode rows so
	// present-episode lookups never re-parse "Season N" titles.
	SeasonNumber  *int `json:"season_number,omitempty"`
	EpisodeNumber *int `json:"episode_number,omitempty"`

	Overview    *string `json:"overview,omitempty"`
	PosterURL   *string `json:"poster_url,omitempty"`
	BackdropURL *string `json:"backdrop_url,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	ThumbURL    *string `json:"thumb_url,omitempty"`

	CreatedTS int64 `json:"created_ts"`
	UpdatedTS int64 `json:"updated_ts"`
}

// MediaFile refers to one on-disk playable file by absolute path. Path is
// the idempotence key the scanner relies on to skip already-known files.
type MediaFile struct {
	ID             string  `json:"id"`
	Path           string  `json:"path"`
	SizeBytes      int64   `json:"size_bytes"`
	MtimeTS        int64   `json:"mtime_ts"`
	Container      *string `json:"container,omitempty"`
	DurationMs     *int64  `json:"duration_ms,omitempty"`
	StreamInfoJSON *string `json:"stream_info_json,omitempty"`

	// OrphanedTS is set by a rescan when the path is no longer observed on
	// disk. Rows are marked, never deleted, by the core scanner.
	OrphanedTS *int64 `json:"orphaned_ts,omitempty"`
}

// FileMap is the join between an item and the media file that realizes it.
// The map row owns the link; the file itself is not exclusively owned.
type FileMap struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	FileID    string `json:"file_id"`
	MapKind   string `json:"map_kind"` // "primary" for both movies and episodes
	CreatedTS int64  `json:"created_ts"`
}

type ProviderID struct {
	ItemID   string `json:"item_id"`
	Provider string `json:"provider"`
	Value    string `json:"value"`
}

// FieldLock's presence means no provider merge may overwrite the field.
type FieldLock struct {
	ItemID    string `json:"item_id"`
	FieldName string `json:"field_name"`
	LockedTS  int64  `json:"locked_ts"`
}

type UserItemState struct {
	UserID       string `json:"user_id"`
	ItemID       string `json:"item_id"`
	Played       bool   `json:"played"`
	ProgressMs   int64  `json:"progress_ms"`
	LastPlayedTS *int64 `json:"last_played_ts,omitempty"`
	Favorite     bool   `json:"favorite"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

type Job struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Status      JobStatus `json:"status"`
	Progress    float64   `json:"progress"`
	PayloadJSON *string   `json:"payload_json,omitempty"`
	Error       *string   `json:"error,omitempty"`
	CreatedTS   int64     `json:"created_ts"`
	UpdatedTS   int64     `json:"updated_ts"`
}

// User is carried from the teacher's bearer-token issuer, trimmed to what
// the streaming/library surface needs to authenticate requests against.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
	CreatedTS    int64  `json:"created_ts"`
}

// LibraryAccess records which libraries a non-admin user may stream from;
// consulted by the range streamer's authorization check.
type LibraryAccess struct {
	UserID    string `json:"user_id"`
	LibraryID string `json:"library_id"`
}
