package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres is the production store.
type Postgres struct {
	pool   *pgxpool.Pool
	limits Limits
	now    func() time.Time
}

var _ Store = (*Postgres)(nil)

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string, lim Limits, opts ...Option) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	o := buildOptions(opts)
	db := &Postgres{pool: pool, limits: lim, now: o.now}
	if err := db.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("store: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return db, nil
}

func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}

func (db *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := conn.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Info("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

// lockUser makes sure the user row exists and locks it for the rest of tx.
func lockUser(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (usage, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO users (user_id, last_reset) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, now); err != nil {
		return usage{}, fmt.Errorf("ensure user: %w", err)
	}
	var u usage
	err := tx.QueryRow(ctx,
		`SELECT is_pro, prompt_count, reroll_count, last_reset FROM users WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&u.Pro, &u.Prompts, &u.Rerolls, &u.LastReset)
	if err != nil {
		return usage{}, fmt.Errorf("lock user: %w", err)
	}
	return u, nil
}

func (db *Postgres) CheckAndIncrementUsage(ctx context.Context, userID string, kind UsageKind) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if !kind.valid() {
		return fmt.Errorf("unknown usage kind %q", kind)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := db.now()
	u, err := lockUser(ctx, tx, userID, now)
	if err != nil {
		return err
	}
	next, err := applyUsage(u, kind, now, db.limits)
	if err != nil {
		return err
	}
	if next != u {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET prompt_count = $2, reroll_count = $3, last_reset = $4 WHERE user_id = $1`,
			userID, next.Prompts, next.Rerolls, next.LastReset); err != nil {
			return fmt.Errorf("update usage: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (db *Postgres) SavePlaylist(ctx context.Context, userID string, p engine.Playlist) (engine.SavedPlaylist, error) {
	if err := requireUser(userID); err != nil {
		return engine.SavedPlaylist{}, err
	}
	videos, err := json.Marshal(nonNilVideos(p.Videos))
	if err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("encode videos: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := db.now().UTC().Truncate(time.Microsecond)
	u, err := lockUser(ctx, tx, userID, now)
	if err != nil {
		return engine.SavedPlaylist{}, err
	}
	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM playlists WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("count playlists: %w", err)
	}
	if limit := db.limits.playlists(u.Pro); count >= limit {
		return engine.SavedPlaylist{}, &PlaylistLimitError{Limit: limit}
	}

	saved := engine.SavedPlaylist{ID: uuid.NewString(), CreatedAt: now.Format(time.RFC3339Nano), Playlist: p}
	if _, err := tx.Exec(ctx,
		`INSERT INTO playlists (id, user_id, name, description, prompt, query, curated, videos, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		saved.ID, userID, p.Name, p.Description, p.Prompt, p.Query, p.Curated, videos, now); err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("insert playlist: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return engine.SavedPlaylist{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

func (db *Postgres) ListPlaylists(ctx context.Context, userID string) ([]engine.SavedPlaylist, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, name, description, prompt, query, curated, videos, created_at
		 FROM playlists WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	out := []engine.SavedPlaylist{}
	for rows.Next() {
		var sp engine.SavedPlaylist
		var videos []byte
		var created time.Time
		if err := rows.Scan(&sp.ID, &sp.Playlist.Name, &sp.Playlist.Description, &sp.Playlist.Prompt, &sp.Playlist.Query,
			&sp.Playlist.Curated, &videos, &created); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		if err := json.Unmarshal(videos, &sp.Playlist.Videos); err != nil {
			return nil, fmt.Errorf("decode videos of %s: %w", sp.ID, err)
		}
		sp.CreatedAt = created.UTC().Format(time.RFC3339Nano)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (db *Postgres) DeletePlaylist(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrPlaylistNotFound
	}
	tag, err := db.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

func (db *Postgres) SetPro(ctx context.Context, userID string, pro bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (user_id, is_pro, last_reset) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET is_pro = EXCLUDED.is_pro`,
		userID, pro, db.now())
	if err != nil {
		return fmt.Errorf("set pro: %w", err)
	}
	return nil
}

func nonNilVideos(v []engine.CandidateVideo) []engine.CandidateVideo {
	if v == nil {
		return []engine.CandidateVideo{}
	}
	return v
}
