package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/meet"
	"github.com/geocoder89/linguadesk/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MeetRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMeetRepo(pool *pgxpool.Pool, prom *observability.Prom) *MeetRepo {
	return &MeetRepo{pool: pool, prom: prom}
}

func (r *MeetRepo) Create(ctx context.Context, ownerID string, docID *string) (meet.Session, error) {
	build := func() meet.Session {
		return meet.New(ownerID, docID, time.Now().UTC())
	}

	return meet.Allocate(ctx, build, r.insert)
}

func (r *MeetRepo) insert(ctx context.Context, s meet.Session) error {
	err := r.prom.ObserveDB("meet.insert", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO meet_sessions (id, code, owner_id, doc_id, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			s.ID, s.Code, s.OwnerID, s.DocID, s.ExpiresAt, s.CreatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err, "meet_sessions_code_uniq") {
			return meet.ErrCodeTaken
		}
		return fmt.Errorf("insert meet session: %w", err)
	}

	return nil
}

// Resolve reads the session and, through a left join, the bound document's
// share token. A deleted document simply yields a nil token.
func (r *MeetRepo) Resolve(ctx context.Context, code string) (meet.Session, *string, error) {
	var (
		s     meet.Session
		token *string
	)

	err := r.prom.ObserveDB("meet.resolve", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT m.id, m.code, m.owner_id, m.doc_id, m.expires_at, m.created_at, d.shared_token
			FROM meet_sessions m
			LEFT JOIN documents d ON d.id = m.doc_id
			WHERE m.code = $1`,
			code,
		).Scan(&s.ID, &s.Code, &s.OwnerID, &s.DocID, &s.ExpiresAt, &s.CreatedAt, &token)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return meet.Session{}, nil, meet.ErrNotFound
		}
		return meet.Session{}, nil, fmt.Errorf("resolve meet session: %w", err)
	}

	return s, token, nil
}
