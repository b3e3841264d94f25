package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/infrastructure/resilience"
)

const defaultListLimit = 50

// FileRepository stores extracted files and their study packs.
type FileRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

type Option func(*FileRepository)

func WithExecutor(executor *resilience.Executor) Option {
	return func(r *FileRepository) {
		r.executor = executor
	}
}

func NewFileRepository(db *sql.DB, opts ...Option) *FileRepository {
	r := &FileRepository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FileRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api and mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	content TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	binary_path TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_updated_at ON files(updated_at DESC);

CREATE TABLE IF NOT EXISTS study_packs (
	file_id TEXT PRIMARY KEY,
	analysis_markdown TEXT NOT NULL,
	questions JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// UpsertFileRecord inserts or replaces the record with the same id.
func (r *FileRepository) UpsertFileRecord(ctx context.Context, rec domain.FileRecord) error {
	if rec.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert file record", errors.New("empty id"))
	}
	return r.executor.Execute(ctx, "postgres.upsert_file", func(callCtx context.Context) error {
		_, err := r.db.ExecContext(callCtx, `
INSERT INTO files (id, name, mime_type, size_bytes, content, summary, binary_path, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	mime_type = EXCLUDED.mime_type,
	size_bytes = EXCLUDED.size_bytes,
	content = EXCLUDED.content,
	summary = EXCLUDED.summary,
	binary_path = EXCLUDED.binary_path,
	updated_at = EXCLUDED.updated_at
`,
			rec.ID, rec.Name, rec.MimeType, rec.SizeBytes, rec.Content, rec.Summary, rec.BinaryPath,
			rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert file record: %w", err)
		}
		return nil
	}, resilience.ClassifyDomain)
}

func (r *FileRepository) SaveStudyPack(ctx context.Context, fileID string, pack domain.StudyPack) error {
	questionsJSON, err := json.Marshal(pack.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	now := time.Now().UTC()
	return r.executor.Execute(ctx, "postgres.save_study_pack", func(callCtx context.Context) error {
		_, err := r.db.ExecContext(callCtx, `
INSERT INTO study_packs (file_id, analysis_markdown, questions, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (file_id) DO UPDATE SET
	analysis_markdown = EXCLUDED.analysis_markdown,
	questions = EXCLUDED.questions,
	updated_at = EXCLUDED.updated_at
`, fileID, pack.AnalysisMarkdown, questionsJSON, now, now)
		if err != nil {
			return fmt.Errorf("save study pack: %w", err)
		}
		return nil
	}, resilience.ClassifyDomain)
}

// ListFiles returns the newest records without their content.
func (r *FileRepository) ListFiles(ctx context.Context, limit int) ([]domain.FileRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, mime_type, size_bytes, summary, binary_path, created_at, updated_at
FROM files
ORDER BY updated_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FileRecord, 0, limit)
	for rows.Next() {
		var rec domain.FileRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.MimeType, &rec.SizeBytes, &rec.Summary, &rec.BinaryPath, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

func (r *FileRepository) GetFile(ctx context.Context, id string) (*domain.FileRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, mime_type, size_bytes, content, summary, binary_path, created_at, updated_at
FROM files
WHERE id = $1
`, id)

	var rec domain.FileRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.MimeType, &rec.SizeBytes, &rec.Content, &rec.Summary, &rec.BinaryPath, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFileNotFound, "get file", fmt.Errorf("id %q", id))
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return &rec, nil
}

func (r *FileRepository) GetStudyPack(ctx context.Context, fileID string) (*domain.StudyPack, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT analysis_markdown, questions
FROM study_packs
WHERE file_id = $1
`, fileID)

	var pack domain.StudyPack
	var questionsRaw []byte
	if err := row.Scan(&pack.AnalysisMarkdown, &questionsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFileNotFound, "get study pack", fmt.Errorf("file id %q", fileID))
		}
		return nil, fmt.Errorf("scan study pack: %w", err)
	}
	if err := json.Unmarshal(questionsRaw, &pack.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return &pack, nil
}
