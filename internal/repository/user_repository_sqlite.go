package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

type sqliteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository returns an implementation over an embedded SQLite
// database opened by persistence.NewSQLite.
func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db}
}

const sqliteUserColumns = `id, email, password_hash, display_name, role, active, created_at, updated_at`

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, password_hash, display_name, role, active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		string(user.Role),
		user.Active,
		now,
		now,
	); err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"))
}

func (r *sqliteUserRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users
        SET display_name = ?, password_hash = ?, role = ?, active = ?, updated_at = ?
        WHERE id = ?`

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		user.DisplayName,
		user.PasswordHash,
		string(user.Role),
		user.Active,
		now,
		user.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func (r *sqliteUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + sqliteUserColumns + ` FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + sqliteUserColumns + ` FROM users WHERE email = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *sqliteUserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + sqliteUserColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}
