// Package engine — cooldown_pg.go хранит кулдауны в общей БД.
// Проверка и запись выполняются одним условным UPSERT (check-and-set),
// поэтому несколько инстансов движка видят одно состояние и дубль
// награды в окне гонки невозможен.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLimiter реализует Limiter поверх таблицы cooldowns.
type PGLimiter struct {
	db *pgxpool.Pool
}

// NewPGLimiter создаёт лимитер с хранением в PostgreSQL.
func NewPGLimiter(db *pgxpool.Pool) *PGLimiter {
	return &PGLimiter{db: db}
}

// Allow выполняет атомарный check-and-set по ключу кулдауна.
// Вставка проходит, если ключа нет; обновление — только если прежний
// вызов старше кулдауна. Ноль затронутых строк означает отказ.
func (l *PGLimiter) Allow(ctx context.Context, actorID, action, targetID string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}

	tag, err := l.db.Exec(ctx, `
		INSERT INTO cooldowns (actor_id, action, target_id, last_invoked_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (actor_id, action, target_id) DO UPDATE
		SET last_invoked_at = NOW()
		WHERE cooldowns.last_invoked_at <= NOW() - make_interval(secs => $4)
	`, actorID, action, targetID, cooldown.Seconds())
	if err != nil {
		return false, fmt.Errorf("ошибка проверки кулдауна: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Close ничего не делает: фоновых горутин нет,
// устаревшие записи чистит cron-задача.
func (l *PGLimiter) Close() {}
