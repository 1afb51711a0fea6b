// Package notify — repository.go пишет историю уведомлений.
// Таблица notifications — append-only лента для инбокса платформы;
// доставкой и её статусами владеет внешний шлюз.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"campushub.ru/gamification/internal/common"
)

// Статусы записи истории.
const (
	StatusQueued = "queued"
	StatusFailed = "failed"
)

// Repository работает с таблицей notifications.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий истории уведомлений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert добавляет запись истории.
func (r *Repository) Insert(ctx context.Context, msg Message, status string) error {
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (recipient_id, category, title, body, metadata, delivery_status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.RecipientID, msg.Category, msg.Title, msg.Body, meta, status)
	if err != nil {
		return fmt.Errorf("ошибка записи истории уведомления: %w", err)
	}
	return nil
}

// InboxEntry — запись инбокса: сообщение плюс время отправки
// в человекочитаемом московском формате.
type InboxEntry struct {
	Message
	SentAt string `json:"sentAt"`
}

// ListByRecipient возвращает последние уведомления получателя (инбокс).
func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]InboxEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT recipient_id, category, title, body, metadata, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения истории уведомлений: %w", err)
	}
	defer rows.Close()

	var out []InboxEntry
	for rows.Next() {
		var e InboxEntry
		var meta []byte
		var createdAt time.Time
		if err := rows.Scan(&e.RecipientID, &e.Category, &e.Title, &e.Body, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("ошибка разбора метаданных: %w", err)
			}
		}
		e.SentAt = common.FormatDateTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan удаляет записи старше retentionDays.
// Вызывается ночной cron-задачей.
func (r *Repository) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE created_at < NOW() - make_interval(days => $1)
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки истории уведомлений: %w", err)
	}
	return tag.RowsAffected(), nil
}
