package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite is the zero-config local store. Timestamps are unix nanoseconds.
type SQLite struct {
	db     *sql.DB
	limits Limits
	now    func() time.Time
}

var _ Store = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id      TEXT PRIMARY KEY,
	is_pro       INTEGER NOT NULL DEFAULT 0,
	prompt_count INTEGER NOT NULL DEFAULT 0,
	reroll_count INTEGER NOT NULL DEFAULT 0,
	last_reset   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS playlists (
	id          TEXT PRIMARY KEY,
	user_id     TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	prompt      TEXT    NOT NULL DEFAULT '',
	query       TEXT    NOT NULL DEFAULT '',
	curated     INTEGER NOT NULL DEFAULT 0,
	videos      TEXT    NOT NULL DEFAULT '[]',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS playlists_user_created_idx ON playlists (user_id, created_at);
`

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string, lim Limits, opts ...Option) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	o := buildOptions(opts)
	slog.Info("store: sqlite opened", slog.String("path", path))
	return &SQLite{db: db, limits: lim, now: o.now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func sqliteLockUser(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (usage, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (user_id, last_reset) VALUES (?, ?)`,
		userID, now.UnixNano()); err != nil {
		return usage{}, fmt.Errorf("ensure user: %w", err)
	}
	var u usage
	var lastReset int64
	err := tx.QueryRowContext(ctx,
		`SELECT is_pro, prompt_count, reroll_count, last_reset FROM users WHERE user_id = ?`,
		userID).Scan(&u.Pro, &u.Prompts, &u.Rerolls, &lastReset)
	if err != nil {
		return usage{}, fmt.Errorf("load user: %w", err)
	}
	u.LastReset = time.Unix(0, lastReset)
	return u, nil
}

func (s *SQLite) CheckAndIncrementUsage(ctx context.Context, userID string, kind UsageKind) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if !kind.valid() {
		return fmt.Errorf("unknown usage kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	u, err := sqliteLockUser(ctx, tx, userID, now)
	if err != nil {
		return err
	}
	next, err := applyUsage(u, kind, now, s.limits)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET prompt_count = ?, reroll_count = ?, last_reset = ? WHERE user_id = ?`,
		next.Prompts, next.Rerolls, next.LastReset.UnixNano(), userID); err != nil {
		return fmt.Errorf("update usage: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) SavePlaylist(ctx context.Context, userID string, p engine.Playlist) (engine.SavedPlaylist, error) {
	if err := requireUser(userID); err != nil {
		return engine.SavedPlaylist{}, err
	}
	videos, err := json.Marshal(nonNilVideos(p.Videos))
	if err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("encode videos: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	u, err := sqliteLockUser(ctx, tx, userID, now)
	if err != nil {
		return engine.SavedPlaylist{}, err
	}
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM playlists WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("count playlists: %w", err)
	}
	if limit := s.limits.playlists(u.Pro); count >= limit {
		return engine.SavedPlaylist{}, &PlaylistLimitError{Limit: limit}
	}

	saved := engine.SavedPlaylist{ID: uuid.NewString(), CreatedAt: now.Format(time.RFC3339Nano), Playlist: p}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO playlists (id, user_id, name, description, prompt, query, curated, videos, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.ID, userID, p.Name, p.Description, p.Prompt, p.Query, p.Curated, string(videos), now.UnixNano()); err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("insert playlist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

func (s *SQLite) ListPlaylists(ctx context.Context, userID string) ([]engine.SavedPlaylist, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, prompt, query, curated, videos, created_at
		 FROM playlists WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	out := []engine.SavedPlaylist{}
	for rows.Next() {
		var sp engine.SavedPlaylist
		var videos string
		var created int64
		if err := rows.Scan(&sp.ID, &sp.Playlist.Name, &sp.Playlist.Description, &sp.Playlist.Prompt, &sp.Playlist.Query,
			&sp.Playlist.Curated, &videos, &created); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		if err := json.Unmarshal([]byte(videos), &sp.Playlist.Videos); err != nil {
			return nil, fmt.Errorf("decode videos of %s: %w", sp.ID, err)
		}
		sp.CreatedAt = time.Unix(0, created).UTC().Format(time.RFC3339Nano)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *SQLite) DeletePlaylist(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if n == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

func (s *SQLite) SetPro(ctx context.Context, userID string, pro bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, is_pro, last_reset) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET is_pro = excluded.is_pro`,
		userID, pro, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("set pro: %w", err)
	}
	return nil
}

