package pgshipping

import (
	"context"
	"time"

	"github.com/BearBump/ShipStream/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) InsertNotification(ctx context.Context, n *models.Notification) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO notifications (user_id, type, title, message, is_read, created_at)
VALUES ($1,$2,$3,$4,FALSE,$5)
RETURNING id
`, n.UserID, n.Type, n.Title, n.Message, createdAt).Scan(&n.ID)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	n.CreatedAt = createdAt
	return nil
}

func (s *Storage) ListNotifications(ctx context.Context, userID uint64, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, user_id, type, title, message, is_read, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, &n)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) MarkNotificationsRead(ctx context.Context, userID uint64) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	return errors.Wrap(err, "mark notifications read")
}
