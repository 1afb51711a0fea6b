// Package postgres — migrate.go применяет встроенные SQL-миграции схемы.
// Применённые версии отмечаются в schema_migrations, поэтому повторный
// старт процесса пропускает уже выполненные шаги. Каждая миграция идёт
// в своей транзакции: упавший шаг откатывается целиком и не отмечается.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Migration — один версионированный шаг схемы.
type Migration struct {
	Version int
	SQL     string
}

// Migrate применяет миграции по возрастанию версий.
// Список должен быть отсортирован вызывающим: порядок здесь не проверяется.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		applied, err := apply(ctx, pool, m)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.Version, err)
		}
		if applied {
			log.WithField("version", m.Version).Info("Миграция применена")
		}
	}
	return nil
}

// apply выполняет один шаг в транзакции; false — версия уже отмечена.
func apply(ctx context.Context, pool *pgxpool.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var done bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
	).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки версии: %w", err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("ошибка выполнения SQL: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", m.Version,
	); err != nil {
		return false, fmt.Errorf("ошибка отметки версии: %w", err)
	}

	return true, tx.Commit(ctx)
}
