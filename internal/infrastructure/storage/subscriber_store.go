package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

// SubscriberStore persists newsletter recipients.
//
// Expected schema:
//
//	CREATE TABLE subscribers (
//	    id         uuid PRIMARY KEY,
//	    email      text NOT NULL UNIQUE,
//	    confirmed  boolean NOT NULL DEFAULT false,
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
type SubscriberStore struct {
	db *sql.DB
}

var _ ports.SubscriberStore = (*SubscriberStore)(nil)

// NewSubscriberStore wires a sql.DB implementation.
func NewSubscriberStore(db *sql.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// Add registers an email, returning the existing row when it was already
// subscribed.
func (s *SubscriberStore) Add(ctx context.Context, email string) (*domain.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("empty email")
	}

	subscriber := domain.Subscriber{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	query, args, err := psql.
		Insert("subscribers").
		Columns("id", "email", "confirmed", "created_at").
		Values(subscriber.ID, subscriber.Email, false, subscriber.CreatedAt).
		Suffix("ON CONFLICT (email) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert subscriber: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.findByEmail(ctx, email)
	}

	return &subscriber, nil
}

// Confirm flips the confirmed flag for the subscriber id.
func (s *SubscriberStore) Confirm(ctx context.Context, id string) error {
	query, args, err := psql.
		Update("subscribers").
		Set("confirmed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	return nil
}

// Remove deletes the subscriber id; removing an unknown id is not an error.
func (s *SubscriberStore) Remove(ctx context.Context, id string) error {
	query, args, err := psql.
		Delete("subscribers").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove subscriber: %w", err)
	}
	return nil
}

// ListConfirmed returns all confirmed subscribers.
func (s *SubscriberStore) ListConfirmed(ctx context.Context) ([]domain.Subscriber, error) {
	query, args, err := psql.
		Select("id", "email", "confirmed", "created_at").
		From("subscribers").
		Where(sq.Eq{"confirmed": true}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Confirmed, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return subscribers, nil
}

func (s *SubscriberStore) findByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	query, args, err := psql.
		Select("id", "email", "confirmed", "created_at").
		From("subscribers").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sub domain.Subscriber
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&sub.ID, &sub.Email, &sub.Confirmed, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscriber %s disappeared", email)
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}

	return &sub, nil
}
