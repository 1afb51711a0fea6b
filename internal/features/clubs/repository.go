// Package clubs — repository.go выполняет операции с таблицей clubs.
package clubs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrClubNotFound — клуб не найден в базе.
var ErrClubNotFound = errors.New("клуб не найден")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет клуб или обновляет его название/владельца.
// Баланс на конфликте не трогается — им владеет движок.
func (r *Repository) Upsert(ctx context.Context, id, name, ownerID string) error {
	query := `
		INSERT INTO clubs (id, name, owner_id)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, owner_id = EXCLUDED.owner_id, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, id, name, ownerID); err != nil {
		return fmt.Errorf("ошибка создания/обновления клуба: %w", err)
	}
	return nil
}

// GetByID: если не найден — ErrClubNotFound.
func (r *Repository) GetByID(ctx context.Context, id string) (*Club, error) {
	query := `
		SELECT id, name, COALESCE(owner_id, ''), total_points, created_at, updated_at
		FROM clubs WHERE id = $1
	`
	var c Club
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.OwnerID, &c.TotalPoints, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("ошибка чтения клуба (id=%s): %w", id, err)
	}
	return &c, nil
}

// GetPoints возвращает текущий счёт клуба.
func (r *Repository) GetPoints(ctx context.Context, id string) (int64, error) {
	var points int64
	err := r.db.QueryRow(ctx, `SELECT total_points FROM clubs WHERE id = $1`, id).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrClubNotFound
		}
		return 0, fmt.Errorf("ошибка получения счёта клуба: %w", err)
	}
	return points, nil
}
