package repo

import (
	"context"
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// NotificationRepositoryPG records and reads user notifications.
type NotificationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewNotificationRepository creates a new notification repo.
func NewNotificationRepository(sql infra.SQLExecutor) *NotificationRepositoryPG {
	return &NotificationRepositoryPG{sql: sql}
}

func (r *NotificationRepositoryPG) Record(ctx context.Context, userID, title, message string) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertNotification, userID, title, message)
	var id string
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListNotificationsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *NotificationRepositoryPG) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkNotificationsRead, userID)
	return err
}

var _ domain.NotificationStore = (*NotificationRepositoryPG)(nil)
