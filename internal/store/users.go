package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelhaven/mediaserver/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *UserRepository) Create(email, passwordHash string, isAdmin bool) (*models.User, error) {
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedTS:    time.Now().Unix(),
	}
	_, err := r.db.Exec(
		`INSERT INTO users (id, email, password_hash, is_admin, created_ts) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedTS,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(
		`SELECT id, email, password_hash, is_admin, created_ts FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedTS)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(
		`SELECT id, email, password_hash, is_admin, created_ts FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedTS)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateSession inserts an opaque bearer token good until expiresAt.
func (r *UserRepository) CreateSession(token, userID string, isAdmin bool, expiresAt int64) error {
	_, err := r.db.Exec(
		`INSERT INTO sessions (token, user_id, is_admin, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, isAdmin, expiresAt,
	)
	return err
}

func (r *UserRepository) GetSession(token string) (userID string, isAdmin bool, expiresAt int64, err error) {
	err = r.db.QueryRow(`SELECT user_id, is_admin, expires_at FROM sessions WHERE token = ?`, token).Scan(&userID, &isAdmin, &expiresAt)
	return
}

func (r *UserRepository) DeleteSession(token string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func (r *UserRepository) GrantLibraryAccess(userID, libraryID string) error {
	_, err := r.db.Exec(
		`INSERT INTO user_library_access (user_id, library_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		userID, libraryID,
	)
	return err
}
