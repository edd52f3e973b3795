package storage

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Schema creates the tables PostgresStorage writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS engine_events (
	id          UUID PRIMARY KEY,
	sequence    BIGINT NOT NULL UNIQUE,
	version     INTEGER NOT NULL,
	event_type  TEXT NOT NULL,
	market_id   BIGINT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS engine_events_market_idx ON engine_events (market_id, sequence);

CREATE TABLE IF NOT EXISTS markets (
	id            BIGINT PRIMARY KEY,
	tweet_id      TEXT NOT NULL,
	tweet_url     TEXT NOT NULL,
	metric        TEXT NOT NULL,
	duration      TEXT NOT NULL,
	multiplier    BIGINT NOT NULL,
	current_value BIGINT NOT NULL,
	target_value  BIGINT NOT NULL,
	start_time    TIMESTAMPTZ NOT NULL,
	end_time      TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL,
	final_value   BIGINT,
	resolved_at   TIMESTAMPTZ
);
`

const insertEventQuery = `
	INSERT INTO engine_events (
		id, sequence, version, event_type, market_id, occurred_at, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (sequence) DO NOTHING
`

const upsertMarketQuery = `
	INSERT INTO markets (
		id, tweet_id, tweet_url, metric, duration, multiplier,
		current_value, target_value, start_time, end_time, status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
`

const resolveMarketQuery = `
	UPDATE markets SET status = $2, final_value = $3, resolved_at = $4 WHERE id = $1
`

// PostgresStorage implements Sink using PostgreSQL. Events are appended to
// engine_events; market creation and resolution also maintain the markets table.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage and applies the schema.
func NewPostgresStorage(ctx context.Context, cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}
	if err = p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return p, nil
}

// Migrate creates the tables if they do not exist.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Store appends the event and, for market events, updates the markets table
// in the same transaction.
func (p *PostgresStorage) Store(ctx context.Context, ev *types.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, insertEventQuery,
		ev.ID,
		ev.Sequence,
		ev.Version,
		string(ev.Type),
		ev.MarketID,
		ev.Time,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	switch data := ev.Payload.(type) {
	case types.MarketCreatedPayload:
		m := data.Market
		_, err = tx.ExecContext(ctx, upsertMarketQuery,
			m.ID, m.TweetID, m.TweetURL, string(m.Metric), string(m.Duration), m.Multiplier,
			m.CurrentValue, m.TargetValue, m.StartTime, m.EndTime, string(m.Status),
		)
	case types.MarketResolvedPayload:
		_, err = tx.ExecContext(ctx, resolveMarketQuery, data.MarketID, string(data.Status), data.FinalValue, ev.Time)
	}
	if err != nil {
		return fmt.Errorf("update market: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}

	p.logger.Debug("event-stored",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("event-type", string(ev.Type)))

	return nil
}

// Ping checks the database connection.
func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
