package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/geocoder89/linguadesk/internal/ids"
	"github.com/geocoder89/linguadesk/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, owner_id, title, pages, from_language, to_language, shared_token, created_at, updated_at`

type DocumentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDocumentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DocumentsRepo {
	return &DocumentsRepo{pool: pool, prom: prom}
}

func scanDocument(row pgx.Row) (document.Document, error) {
	var d document.Document

	err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Title,
		&d.Pages,
		&d.FromLanguage,
		&d.ToLanguage,
		&d.SharedToken,
		&d.CreatedAt,
		&d.UpdatedAt,
	)

	return d, err
}

func (r *DocumentsRepo) ListByOwner(ctx context.Context, ownerID string) ([]document.Document, error) {
	var rows pgx.Rows

	err := r.prom.ObserveDB("documents.list_by_owner", func() error {
		var err error
		rows, err = r.pool.Query(ctx,
			`SELECT `+documentColumns+`
			FROM documents
			WHERE owner_id = $1
			ORDER BY updated_at DESC, id ASC`,
			ownerID,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	defer rows.Close()

	out := make([]document.Document, 0)

	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return out, nil
}

func (r *DocumentsRepo) Create(ctx context.Context, ownerID, title string) (document.Document, error) {
	d := document.New(ownerID, title, time.Now().UTC())

	err := r.prom.ObserveDB("documents.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO documents (`+documentColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			d.ID, d.OwnerID, d.Title, d.Pages, d.FromLanguage, d.ToLanguage, d.SharedToken, d.CreatedAt, d.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return document.Document{}, fmt.Errorf("insert document: %w", err)
	}

	return d, nil
}

// GetOwned folds "missing" and "not yours" into one query so both paths cost the same.
func (r *DocumentsRepo) GetOwned(ctx context.Context, id, requesterID string) (document.Document, error) {
	var d document.Document

	err := r.prom.ObserveDB("documents.get_owned", func() error {
		var err error
		d, err = scanDocument(r.pool.QueryRow(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`,
			id, requesterID,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}

	return d, nil
}

// Replace locks the row, merges the patch and writes the whole document back
// in one transaction. Concurrent replaces queue on the row lock and the last
// to commit wins.
func (r *DocumentsRepo) Replace(ctx context.Context, id, requesterID string, patch document.Patch) (d document.Document, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return document.Document{}, fmt.Errorf("begin replace: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.prom.ObserveDB("documents.replace.lock", func() error {
		var e error
		d, e = scanDocument(tx.QueryRow(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
			id, requesterID,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("lock document: %w", err)
	}

	if err = d.Apply(patch, ids.NewShareToken, time.Now().UTC()); err != nil {
		return document.Document{}, err
	}

	err = r.prom.ObserveDB("documents.replace.update", func() error {
		_, e := tx.Exec(ctx,
			`UPDATE documents
			SET title = $2,
				pages = $3,
				from_language = $4,
				to_language = $5,
				shared_token = $6,
				updated_at = $7
			WHERE id = $1`,
			d.ID, d.Title, d.Pages, d.FromLanguage, d.ToLanguage, d.SharedToken, d.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return document.Document{}, fmt.Errorf("update document: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return document.Document{}, fmt.Errorf("commit replace: %w", err)
	}

	return d, nil
}

func (r *DocumentsRepo) Delete(ctx context.Context, id, requesterID string) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("documents.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, requesterID)
		return err
	})

	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}

	return nil
}

func (r *DocumentsRepo) GetBySharedToken(ctx context.Context, token string) (document.Document, error) {
	if token == "" {
		return document.Document{}, document.ErrNotFound
	}

	var d document.Document

	err := r.prom.ObserveDB("documents.get_by_shared_token", func() error {
		var err error
		d, err = scanDocument(r.pool.QueryRow(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE shared_token = $1`,
			token,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("get shared document: %w", err)
	}

	return d, nil
}

func (r *DocumentsRepo) SharedTokenFor(ctx context.Context, docID string) (*string, error) {
	var token *string

	err := r.prom.ObserveDB("documents.shared_token_for", func() error {
		return r.pool.QueryRow(ctx, `SELECT shared_token FROM documents WHERE id = $1`, docID).Scan(&token)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shared token: %w", err)
	}

	return token, nil
}
