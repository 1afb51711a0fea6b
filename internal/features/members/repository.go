// Package members — repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campushub.ru/gamification/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет участника или обновляет его данные.
// На конфликте по id обновляет только имя/username/привязку чата
// (не трогает бан и баланс — ими владеет движок).
func (r *Repository) Upsert(ctx context.Context, id string, info UpsertInfo) error {
	query := `
		INSERT INTO members (id, username, display_name, telegram_chat_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    display_name = EXCLUDED.display_name,
		    telegram_chat_id = COALESCE(EXCLUDED.telegram_chat_id, members.telegram_chat_id),
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, id, info.Username, info.DisplayName, info.TelegramChatID)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// GetByID: если не найден — common.ErrUserNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*Member, error) {
	query := `
		SELECT id, username, display_name, is_banned, total_points, telegram_chat_id,
		       created_at, updated_at
		FROM members
		WHERE id = $1
	`
	var m Member
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Username, &m.DisplayName, &m.IsBanned, &m.TotalPoints,
		&m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения участника (id=%s): %w", id, err)
	}
	return &m, nil
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

// GetPoints возвращает текущий баланс участника.
func (r *Repository) GetPoints(ctx context.Context, id string) (int64, error) {
	query := `SELECT total_points FROM members WHERE id = $1`
	var points int64
	err := r.db.QueryRow(ctx, query, id).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return points, nil
}

// SetBanned выставляет флаг блокировки (используется админкой).
func (r *Repository) SetBanned(ctx context.Context, id string, banned bool) error {
	query := `UPDATE members SET is_banned = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, banned)
	if err != nil {
		return fmt.Errorf("ошибка обновления блокировки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}
