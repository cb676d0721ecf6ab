package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/flemzord/tgrelay/internal/store"
)

var _ store.Log = (*Log)(nil)

// Log is a store.Log backed by PostgreSQL.
type Log struct {
	db *sql.DB
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*Log, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", describe(err))
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// Append implements store.Log.
func (l *Log) Append(ctx context.Context, r store.Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	var id int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO tgrelay_messages (channel, kind, token, sender_id, text, media_types,
		                              delivery_status, delivery_token, sent, received, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		r.Channel, string(r.Kind), r.Token, r.SenderID, r.Text, r.JoinMediaTypes(),
		r.DeliveryStatus, r.DeliveryToken, nullTime(r.Sent), nullTime(r.Received), r.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: append message: %w", describe(err))
	}
	return id, nil
}

// List implements store.Log.
func (l *Log) List(ctx context.Context, channel string, limit int) ([]store.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, channel, kind, token, sender_id, text, media_types,
		       delivery_status, delivery_token, sent, received, created_at
		FROM tgrelay_messages
		WHERE channel = $1
		ORDER BY id DESC
		LIMIT $2`,
		channel, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", describe(err))
	}
	defer func() { _ = rows.Close() }()

	var out []store.Record
	for rows.Next() {
		var (
			r              store.Record
			kind, media    string
			sent, received sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Channel, &kind, &r.Token, &r.SenderID, &r.Text, &media,
			&r.DeliveryStatus, &r.DeliveryToken, &sent, &received, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		r.Kind = store.Kind(kind)
		r.MediaTypes = store.SplitMediaTypes(media)
		if sent.Valid {
			r.Sent = sent.Time.UTC()
		}
		if received.Valid {
			r.Received = received.Time.UTC()
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rows: %w", err)
	}

	slices.Reverse(out)
	return out, nil
}

// Prune implements store.Log.
func (l *Log) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM tgrelay_messages WHERE created_at < $1", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: prune: %w", describe(err))
	}
	return res.RowsAffected()
}

// Close closes the connection pool.
func (l *Log) Close() error {
	return l.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// describe adds the SQLSTATE class name to server errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (%s)", err, pqErr.Code.Class().Name())
	}
	return err
}
