package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/repository"
)

const (
	upsertQuery = `
        INSERT INTO %s (
            id, url, video_id, slug, title, transcript_hash,
            transcript_method, general_only, payload, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(url) DO UPDATE SET
            video_id = excluded.video_id,
            slug = excluded.slug,
            title = excluded.title,
            transcript_hash = excluded.transcript_hash,
            transcript_method = excluded.transcript_method,
            general_only = excluded.general_only,
            payload = excluded.payload,
            updated_at = excluded.updated_at
    `

	getByURLQuery = `
        SELECT id, url, slug, transcript_hash, payload, created_at, updated_at
        FROM %s WHERE url = ?
    `

	listQuery = `
        SELECT id, url, slug, transcript_hash, payload, created_at, updated_at
        FROM %s ORDER BY updated_at DESC LIMIT ?
    `
)

var tables = map[repository.Target]string{
	repository.TargetLive:    "analyses",
	repository.TargetPreview: "preview_analyses",
}

type tableStatements struct {
	upsert   *sql.Stmt
	getByURL *sql.Stmt
	list     *sql.Stmt
}

type PreparedStatements struct {
	byTarget map[repository.Target]*tableStatements
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	stmts.byTarget = make(map[repository.Target]*tableStatements, len(tables))
	for target, table := range tables {
		ts := &tableStatements{}
		stmts.byTarget[target] = ts

		var err error
		if ts.upsert, err = db.PrepareContext(ctx, fmt.Sprintf(upsertQuery, table)); err != nil {
			return errors.Internal(op, err, "failed to prepare upsert statement for "+table)
		}
		if ts.getByURL, err = db.PrepareContext(ctx, fmt.Sprintf(getByURLQuery, table)); err != nil {
			return errors.Internal(op, err, "failed to prepare getByURL statement for "+table)
		}
		if ts.list, err = db.PrepareContext(ctx, fmt.Sprintf(listQuery, table)); err != nil {
			return errors.Internal(op, err, "failed to prepare list statement for "+table)
		}
	}

	return nil
}

func (stmts *PreparedStatements) forTarget(target repository.Target) (*tableStatements, error) {
	if target == "" {
		target = repository.TargetLive
	}
	ts, ok := stmts.byTarget[target]
	if !ok {
		return nil, errors.InvalidInput("PreparedStatements.forTarget", nil, fmt.Sprintf("unknown target %q", target))
	}
	return ts, nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	for _, ts := range stmts.byTarget {
		for _, stmt := range [...]*sql.Stmt{ts.upsert, ts.getByURL, ts.list} {
			if stmt != nil {
				if err := stmt.Close(); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
