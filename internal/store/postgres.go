package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type postgresRegistry struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Registry, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresRegistry{pool: pool, log: log}, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	// Goose works with *sql.DB, so borrow one from the pool config.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *postgresRegistry) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *postgresRegistry) Subscribe(ctx context.Context, userID, chatID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscribers (user_id, chat_id, active)
		 VALUES ($1, $2, TRUE)
		 ON CONFLICT (user_id) DO UPDATE SET
		   chat_id = EXCLUDED.chat_id,
		   active = TRUE`,
		userID, chatID,
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (r *postgresRegistry) Unsubscribe(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE subscribers SET active = FALSE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (r *postgresRegistry) IsActive(ctx context.Context, userID int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT active FROM subscribers WHERE user_id = $1`, userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is active: %w", err)
	}
	return active, nil
}

func (r *postgresRegistry) ActiveChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT chat_id FROM subscribers WHERE active = TRUE ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("active chat ids: %w", err)
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
