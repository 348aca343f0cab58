package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

// uniqueViolation is the Postgres error code raised when the unique key on
// digest_date loses a race.
const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DigestStore persists digests keyed by calendar date.
//
// Expected schema:
//
//	CREATE TABLE digests (
//	    digest_date date PRIMARY KEY,
//	    sections    jsonb NOT NULL,
//	    headline    text NOT NULL,
//	    created_at  timestamptz NOT NULL DEFAULT now()
//	);
type DigestStore struct {
	db *sql.DB
}

var _ ports.DigestStore = (*DigestStore)(nil)

// NewDigestStore wires a sql.DB implementation.
func NewDigestStore(db *sql.DB) *DigestStore {
	return &DigestStore{db: db}
}

// FindByDate returns the digest for the exact date, or (nil, nil) on a miss.
func (s *DigestStore) FindByDate(ctx context.Context, date time.Time) (*domain.Digest, error) {
	query, args, err := psql.
		Select("digest_date", "sections", "headline", "created_at").
		From("digests").
		Where(sq.Eq{"digest_date": date.Format(domain.DateLayout)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// FindLatest returns the most recent digest, optionally strictly before the
// given date. (nil, nil) when the store is empty.
func (s *DigestStore) FindLatest(ctx context.Context, before *time.Time) (*domain.Digest, error) {
	builder := psql.
		Select("digest_date", "sections", "headline", "created_at").
		From("digests").
		OrderBy("digest_date DESC").
		Limit(1)

	if before != nil {
		builder = builder.Where(sq.Lt{"digest_date": before.Format(domain.DateLayout)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// InsertIfAbsent writes the digest once; domain.ErrConflict when another
// builder already persisted the date.
func (s *DigestStore) InsertIfAbsent(ctx context.Context, digest *domain.Digest) error {
	sections, err := json.Marshal(digest.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}

	query, args, err := psql.
		Insert("digests").
		Columns("digest_date", "sections", "headline", "created_at").
		Values(digest.Date.Format(domain.DateLayout), sections, digest.Headline, digest.CreatedAt).
		Suffix("ON CONFLICT (digest_date) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert digest: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrConflict
	}

	return nil
}

func (s *DigestStore) scanOne(row *sql.Row) (*domain.Digest, error) {
	var (
		digest      domain.Digest
		rawSections []byte
	)

	err := row.Scan(&digest.Date, &rawSections, &digest.Headline, &digest.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan digest: %w", err)
	}

	if err := json.Unmarshal(rawSections, &digest.Sections); err != nil {
		return nil, fmt.Errorf("unmarshal sections: %w", err)
	}

	return &digest, nil
}
