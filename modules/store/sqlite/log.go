package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/flemzord/tgrelay/internal/store"
)

var _ store.Log = (*Log)(nil)

// Log is a store.Log backed by SQLite.
type Log struct {
	db *sql.DB
}

// Append implements store.Log.
func (l *Log) Append(ctx context.Context, r store.Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO messages (channel, kind, token, sender_id, text, media_types,
		                      delivery_status, delivery_token, sent, received, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Channel, string(r.Kind), r.Token, r.SenderID, r.Text, r.JoinMediaTypes(),
		r.DeliveryStatus, r.DeliveryToken, unixOrZero(r.Sent), unixOrZero(r.Received),
		r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: last insert id: %w", err)
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
		FROM messages
		WHERE channel = ?
		ORDER BY id DESC
		LIMIT ?`,
		channel, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(out)
	return out, nil
}

// Prune implements store.Log.
func (l *Log) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM messages WHERE created_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored records.
func (l *Log) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (store.Record, error) {
	var (
		r                     store.Record
		kind, media           string
		sent, received, added int64
	)
	if err := s.Scan(&r.ID, &r.Channel, &kind, &r.Token, &r.SenderID, &r.Text, &media,
		&r.DeliveryStatus, &r.DeliveryToken, &sent, &received, &added); err != nil {
		return r, fmt.Errorf("sqlite: scan message: %w", err)
	}
	r.Kind = store.Kind(kind)
	r.MediaTypes = store.SplitMediaTypes(media)
	if sent != 0 {
		r.Sent = time.Unix(sent, 0).UTC()
	}
	if received != 0 {
		r.Received = time.Unix(received, 0).UTC()
	}
	r.CreatedAt = time.Unix(0, added).UTC()
	return r, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
