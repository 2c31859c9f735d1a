package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/repository"
)

var _ repository.AnalysisRepository = (*Repository)(nil)

type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Save upserts result on its canonical URL. An existing row keeps its id and
// creation time; everything else is overwritten.
func (r *Repository) Save(ctx context.Context, target repository.Target, result *models.PipelineResult) error {
	const op = "SQLiteRepository.Save"

	if result == nil || result.URL == "" {
		return errors.InvalidInput(op, nil, "result with url required")
	}
	stmts, err := r.db.statements.forTarget(target)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.E(errors.KindPersistenceError, op, err, "failed to encode result")
	}

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	err = withLockRetry(ctx, r.db.config, func() error {
		_, err := stmts.upsert.ExecContext(ctx,
			result.ID,
			result.URL,
			result.VideoID,
			result.Slug,
			result.Metadata.Title,
			result.TranscriptHash,
			string(result.Transcript.Method),
			result.GeneralOnly,
			string(payload),
			result.CreatedAt,
			result.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return errors.E(errors.KindPersistenceError, op, err, "failed to save analysis")
	}
	return nil
}

func (r *Repository) FindByURL(ctx context.Context, target repository.Target, url string) (*models.PipelineResult, error) {
	const op = "SQLiteRepository.FindByURL"

	stmts, err := r.db.statements.forTarget(target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	result, err := scanResult(stmts.getByURL.QueryRowContext(ctx, url))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "analysis not found")
	}
	if err != nil {
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to query analysis")
	}
	return result, nil
}

// List returns the most recently updated records first.
func (r *Repository) List(ctx context.Context, target repository.Target, limit int) ([]models.PipelineResult, error) {
	const op = "SQLiteRepository.List"

	stmts, err := r.db.statements.forTarget(target)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := stmts.list.QueryContext(ctx, limit)
	if err != nil {
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to list analyses")
	}
	defer rows.Close()

	var results []models.PipelineResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, errors.E(errors.KindPersistenceError, op, err, "failed to scan analysis")
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.E(errors.KindPersistenceError, op, err, "failed to iterate analyses")
	}
	return results, nil
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.db.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.db.config.QueryTimeout)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanResult decodes the payload and lets the row's columns win over it.
func scanResult(row scanner) (*models.PipelineResult, error) {
	var (
		result  models.PipelineResult
		id      string
		url     string
		slug    string
		hash    sql.NullString
		payload string
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&id, &url, &slug, &hash, &payload, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	result.ID = id
	result.URL = url
	result.Slug = slug
	result.TranscriptHash = hash.String
	result.CreatedAt = created
	result.UpdatedAt = updated
	return &result, nil
}
