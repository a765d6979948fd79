package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

//go:embed schema.sql
var schemaFS embed.FS

type sqliteRegistry struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Registry, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./subscribers.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	r := &sqliteRegistry{db: db, log: log}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *sqliteRegistry) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, string(b))
	return err
}

func (r *sqliteRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *sqliteRegistry) Subscribe(ctx context.Context, userID, chatID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers(user_id, chat_id, active, created_at)
		 VALUES(?, ?, 1, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   chat_id = excluded.chat_id,
		   active = 1`,
		userID, chatID, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (r *sqliteRegistry) Unsubscribe(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET active = 0 WHERE user_id = ?`, userID)
	return err
}

func (r *sqliteRegistry) IsActive(ctx context.Context, userID int64) (bool, error) {
	var active int
	err := r.db.QueryRowContext(ctx,
		`SELECT active FROM subscribers WHERE user_id = ?`, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return active != 0, nil
}

func (r *sqliteRegistry) ActiveChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT chat_id FROM subscribers WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
