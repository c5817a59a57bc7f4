package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

const schemaLockKey int64 = 2026101501

type EvaluationRepository struct {
	db *sql.DB
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "open db", errors.New("POSTGRES_DSN is empty"))
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *EvaluationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS answer_evaluations (
	id TEXT PRIMARY KEY,
	answer_id TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	summary TEXT NOT NULL,
	score INTEGER NOT NULL DEFAULT 0,
	evaluated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_answer_evaluations_answer_id ON answer_evaluations(answer_id);
CREATE INDEX IF NOT EXISTS idx_answer_evaluations_evaluated_at ON answer_evaluations(evaluated_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save inserts the evaluation or replaces an earlier one with the same id.
func (r *EvaluationRepository) Save(ctx context.Context, evaluation *domain.Evaluation) error {
	if evaluation == nil || strings.TrimSpace(evaluation.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save evaluation", errors.New("evaluation id is required"))
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO answer_evaluations (id, answer_id, question, answer, summary, score, evaluated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	summary = EXCLUDED.summary,
	score = EXCLUDED.score,
	evaluated_at = EXCLUDED.evaluated_at
`,
		evaluation.ID, evaluation.AnswerID, evaluation.Question, evaluation.Answer,
		evaluation.Summary, evaluation.Score, evaluation.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*domain.Evaluation, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, answer_id, question, answer, summary, score, evaluated_at
FROM answer_evaluations
WHERE id = $1
`, id)

	var evaluation domain.Evaluation
	err := row.Scan(
		&evaluation.ID, &evaluation.AnswerID, &evaluation.Question, &evaluation.Answer,
		&evaluation.Summary, &evaluation.Score, &evaluation.EvaluatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get evaluation", fmt.Errorf("evaluation %s", id))
		}
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}
	return &evaluation, nil
}
