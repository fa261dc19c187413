package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository provides PostgreSQL backed persistence for notifications. The
// notifications table carries a (recipient, read, created_at) index so unread
// listings and counts stay cheap.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const notificationColumns = `id, recipient, type, title, message, priority, read, expires_at, created_at`

// Insert stores a new notification.
func (r *PGRepository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notifications
(id, recipient, type, title, message, priority, read, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.Recipient, n.Type, n.Title, n.Message, string(n.Priority), n.Read, n.ExpiresAt, n.CreatedAt)
	return err
}

// MarkRead flags one notification as read. The recipient guard keeps actors
// from touching each other's records.
func (r *PGRepository) MarkRead(ctx context.Context, id, recipient uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient = $2`, id, recipient)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient.
func (r *PGRepository) MarkAllRead(ctx context.Context, recipient uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE recipient = $1 AND read = FALSE`, recipient)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnreadCount returns the number of unread notifications for the recipient.
func (r *PGRepository) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient = $1 AND read = FALSE`, recipient).Scan(&count)
	return count, err
}

// ListByRecipient returns the recipient's notifications, newest first, plus
// the matching total.
func (r *PGRepository) ListByRecipient(ctx context.Context, recipient uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	filter := ``
	if unreadOnly {
		filter = ` AND read = FALSE`
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient = $1`+filter, recipient).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+`
FROM notifications WHERE recipient = $1`+filter+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`, recipient, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeleteExpired removes notifications past their expiry.
func (r *PGRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n        Notification
		priority string
	)
	if err := row.Scan(&n.ID, &n.Recipient, &n.Type, &n.Title, &n.Message, &priority, &n.Read, &n.ExpiresAt, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	n.Priority = Priority(priority)
	return n, nil
}
