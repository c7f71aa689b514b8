package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	ListSessionsBefore(ctx context.Context, cutoff time.Time) ([]*Session, error)
	CountSessions(ctx context.Context) (int, error)
	UpdateSessionStatus(ctx context.Context, id, status, reason, errorMsg string) error
	DeleteSession(ctx context.Context, id string) error

	UpsertVideo(ctx context.Context, v *Video) error
	ListVideos(ctx context.Context, sessionID string) ([]*Video, error)

	InsertFrames(ctx context.Context, sessionID string, kind Kind, paths []string) error
	GetFrames(ctx context.Context, sessionID string, kind Kind) ([]string, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, status, work_dir, reason, error, created_at, updated_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Status, s.WorkDir, nullString(s.Reason), nullString(s.Error), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	return r.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
}

func (r *SQLiteRepository) ListSessionsBefore(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	return r.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE created_at < ? ORDER BY created_at`, formatTime(cutoff))
}

func (r *SQLiteRepository) querySessions(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var reason, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&s.ID, &s.Status, &s.WorkDir, &reason, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Reason = reason.String
	s.Error = errMsg.String
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) UpdateSessionStatus(ctx context.Context, id, status, reason, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET status = ?, reason = ?, error = ?, updated_at = ? WHERE id = ?",
		status, nullString(reason), nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

// DeleteSession removes the session; videos and frames go with it through
// ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpsertVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (session_id, kind, filename, path, size, width, height, codec, frame_rate, duration, frame_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, kind) DO UPDATE SET
			filename = excluded.filename,
			path = excluded.path,
			size = excluded.size,
			width = excluded.width,
			height = excluded.height,
			codec = excluded.codec,
			frame_rate = excluded.frame_rate,
			duration = excluded.duration,
			frame_count = excluded.frame_count
	`, v.SessionID, string(v.Kind), v.Filename, v.Path, v.Size, v.Width, v.Height, nullString(v.Codec), v.FrameRate, v.Duration, v.FrameCount)
	return err
}

func (r *SQLiteRepository) ListVideos(ctx context.Context, sessionID string) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, kind, filename, path, size, width, height, codec, frame_rate, duration, frame_count
		FROM videos WHERE session_id = ? ORDER BY kind
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		var v Video
		var kind string
		var codec sql.NullString
		if err := rows.Scan(&v.SessionID, &kind, &v.Filename, &v.Path, &v.Size, &v.Width, &v.Height, &codec, &v.FrameRate, &v.Duration, &v.FrameCount); err != nil {
			return nil, err
		}
		v.Kind = Kind(kind)
		v.Codec = codec.String
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

// InsertFrames replaces the stored sequence for one side of a session.
func (r *SQLiteRepository) InsertFrames(ctx context.Context, sessionID string, kind Kind, paths []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM frames WHERE session_id = ? AND kind = ?", sessionID, string(kind)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO frames (session_id, kind, idx, path) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range paths {
		if _, err := stmt.ExecContext(ctx, sessionID, string(kind), i+1, p); err != nil {
			return fmt.Errorf("insert frame %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetFrames(ctx context.Context, sessionID string, kind Kind) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT path FROM frames WHERE session_id = ? AND kind = ? ORDER BY idx",
		sessionID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// timeLayout is fixed width so stored timestamps order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
