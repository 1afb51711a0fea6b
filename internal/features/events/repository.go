// Package events — repository.go выполняет операции с таблицей events.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventNotFound — мероприятие не найдено в базе.
var ErrEventNotFound = errors.New("мероприятие не найдено")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет мероприятие или обновляет название/клуб.
func (r *Repository) Upsert(ctx context.Context, id, clubID, title string) error {
	query := `
		INSERT INTO events (id, club_id, title)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (id) DO UPDATE
		SET club_id = EXCLUDED.club_id, title = EXCLUDED.title, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, id, clubID, title); err != nil {
		return fmt.Errorf("ошибка создания/обновления мероприятия: %w", err)
	}
	return nil
}

// GetByID: если не найдено — ErrEventNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*Event, error) {
	query := `
		SELECT id, COALESCE(club_id, ''), title, total_points, created_at, updated_at
		FROM events WHERE id = $1
	`
	var e Event
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.ClubID, &e.Title, &e.TotalPoints, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("ошибка чтения мероприятия (id=%s): %w", id, err)
	}
	return &e, nil
}
