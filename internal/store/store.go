// Package store persists the reminder subscriber set.
//
// The registry is consumed behind a four-method contract; drivers serialize
// writes and allow concurrent reads. Callers must fetch the active chat-id set
// at dispatch time, never cache it: subscriptions can change between arming a
// reminder and its firing.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

// Config configures the registry backend.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   dependency-free file backend (jsonl journal + snapshot)
//   - "postgres": PostgreSQL via DSN
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Registry is the subscriber contract consumed by command handling and the
// reminder fan-out. Implementations must be safe for concurrent use.
type Registry interface {
	Subscribe(ctx context.Context, userID, chatID int64) error
	Unsubscribe(ctx context.Context, userID int64) error
	IsActive(ctx context.Context, userID int64) (bool, error)
	ActiveChatIDs(ctx context.Context) ([]int64, error)
	Close() error
}

// Open initializes the configured registry backend.
func Open(cfg Config, log logx.Logger) (Registry, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	case "postgres", "pg":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
