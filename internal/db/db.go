package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"organized-data/internal/config"
	"organized-data/internal/extraction"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExtractionRun is one finished extraction as stored in the database.
type ExtractionRun struct {
	bun.BaseModel `bun:"table:extraction_runs,alias:r"`
	ID            string    `bun:"id,pk"`
	Model         string    `bun:"model,notnull"`
	Mode          string    `bun:"mode,notnull"`
	Chunks        int       `bun:"chunks,notnull"`
	LLMCalls      int       `bun:"llm_calls,notnull"`
	Status        string    `bun:"status,notnull"`
	Error         string    `bun:"error,nullzero"`
	Output        string    `bun:"output,nullzero"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	DurationMs    int64     `bun:"duration_ms,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database named by cfg. The default driver is bun's
// pgdriver; "postgres" selects lib/pq.
func ConnectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}
	switch cfg.Driver {
	case "", "pgdriver":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	case "postgres":
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*ExtractionRun)(nil)).IfNotExists().Exec(ctx)
	return err
}

func DropRuns(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ExtractionRun)(nil)).IfExists().Exec(ctx)
	return err
}

// Store keeps a history of extraction runs. It satisfies extraction.Recorder.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, run extraction.Run) error {
	rec := newExtractionRun(run)
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store extraction run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, optionally for one model.
func (s *Store) ListRuns(ctx context.Context, model string, limit int) ([]ExtractionRun, error) {
	var runs []ExtractionRun
	err := s.listQuery(&runs, model, limit).Scan(ctx)
	return runs, err
}

func (s *Store) listQuery(runs *[]ExtractionRun, model string, limit int) *bun.SelectQuery {
	q := s.db.NewSelect().Model(runs).OrderExpr("started_at DESC")
	if model != "" {
		q = q.Where("model = ?", model)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func (s *Store) Close() error {
	return s.db.Close()
}

func newExtractionRun(run extraction.Run) *ExtractionRun {
	rec := &ExtractionRun{
		ID:         run.ID,
		Model:      run.Model,
		Mode:       string(run.Mode),
		Chunks:     run.Chunks,
		LLMCalls:   run.LLMCalls,
		Status:     StatusSuccess,
		Output:     run.Output,
		StartedAt:  run.Started.UTC(),
		DurationMs: run.Duration.Milliseconds(),
	}
	if run.Err != nil {
		rec.Status = StatusError
		rec.Error = run.Err.Error()
	}
	return rec
}
