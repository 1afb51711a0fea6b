// Package ledger — repository.go выполняет атомарное применение начислений.
// Все балансы обновляются в одной транзакции БД: либо изменятся все
// затронутые сущности, либо ни одна. Инкременты всегда аддитивные
// (total_points = total_points + N), чтобы параллельные действия
// по одной сущности складывались без потерянных обновлений.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campushub.ru/gamification/internal/common"
)

// querier — срез pgxpool.Pool, который нужен репозиторию.
// В тестах подменяется фейком для инъекции сбоев отдельных запросов.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository работает с таблицами members/clubs/events/activities/processed_actions.
type Repository struct {
	db querier
}

// NewRepository создаёт репозиторий начислений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Apply применяет начисление ко всем затронутым сущностям атомарно.
//
// Внутри транзакции:
//  1. Если задан idempotencyKey — ставится маркер обработки; повторный
//     ключ означает дубликат, начисление не применяется.
//  2. Строка инициатора блокируется (FOR UPDATE) и пол баланса
//     перепроверяется: проверка допуска снаружи транзакции не
//     сериализована с записью.
//  3. Балансы инициатора, цели и коллектива увеличиваются на подписанные
//     дельты с обновлением updated_at.
//  4. Пишется запись аудита.
//
// Любая ошибка откатывает транзакцию целиком. Движок выполняет ровно
// одну попытку; повтор — на усмотрение вызывающего.
func (r *Repository) Apply(ctx context.Context, delta Delta, activity Activity, idempotencyKey string) (*Outcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Маркер идемпотентности ставим первым: конфликт ключа означает,
	// что начисление уже применялось, и трогать балансы нельзя.
	if idempotencyKey != "" {
		tag, err := tx.Exec(ctx, `
			INSERT INTO processed_actions (idempotency_key, activity_id)
			VALUES ($1, $2)
			ON CONFLICT (idempotency_key) DO NOTHING
		`, idempotencyKey, activity.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка записи маркера идемпотентности: %w", err)
		}
		if tag.RowsAffected() == 0 {
			prior, err := r.getProcessed(ctx, tx, idempotencyKey)
			if err != nil {
				return nil, err
			}
			return &Outcome{Duplicate: true, Activity: *prior}, nil
		}
	}

	// Блокируем строку инициатора и перепроверяем пол баланса
	var actorPoints int64
	err = tx.QueryRow(ctx, `
		SELECT total_points FROM members WHERE id = $1 FOR UPDATE
	`, delta.ActorID).Scan(&actorPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения баланса инициатора: %w", err)
	}
	if actorPoints+delta.ActorPoints < 0 {
		return nil, common.ErrInsufficientPoints
	}

	// Начисление инициатору
	if delta.ActorPoints != 0 {
		_, err = tx.Exec(ctx, `
			UPDATE members
			SET total_points = total_points + $2, updated_at = NOW()
			WHERE id = $1
		`, delta.ActorID, delta.ActorPoints)
		if err != nil {
			return nil, fmt.Errorf("ошибка начисления инициатору: %w", err)
		}
	}

	// Начисление цели (участник или мероприятие)
	if delta.TargetPoints != 0 && delta.TargetID != "" {
		if err := r.applyTarget(ctx, tx, delta); err != nil {
			return nil, err
		}
	}

	// Начисление коллективу (клубу)
	if delta.CollectivePoints != 0 && delta.CollectiveID != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE clubs
			SET total_points = total_points + $2, updated_at = NOW()
			WHERE id = $1
		`, delta.CollectiveID, delta.CollectivePoints)
		if err != nil {
			return nil, fmt.Errorf("ошибка начисления клубу: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("клуб %s не найден при начислении", delta.CollectiveID)
		}
	}

	// Запись аудита в той же транзакции
	_, err = tx.Exec(ctx, `
		INSERT INTO activities (id, actor_id, action, target_id, actor_delta, target_delta, collective_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.ActorID, activity.Action, activity.TargetID,
		activity.ActorDelta, activity.TargetDelta, activity.CollectiveDelta)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи аудита: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &Outcome{Activity: activity}, nil
}

// applyTarget обновляет баланс целевой сущности в зависимости от её вида.
// Пол баланса цели не защищается — это осознанная асимметрия.
func (r *Repository) applyTarget(ctx context.Context, tx pgx.Tx, delta Delta) error {
	var query string
	switch delta.TargetKind {
	case TargetKindUser:
		query = `UPDATE members SET total_points = total_points + $2, updated_at = NOW() WHERE id = $1`
	case TargetKindEvent:
		query = `UPDATE events SET total_points = total_points + $2, updated_at = NOW() WHERE id = $1`
	default:
		return fmt.Errorf("неизвестный вид цели %q: %w", delta.TargetKind, common.ErrInvalidRequest)
	}

	tag, err := tx.Exec(ctx, query, delta.TargetID, delta.TargetPoints)
	if err != nil {
		return fmt.Errorf("ошибка начисления цели: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("цель %s (%s) не найдена при начислении", delta.TargetID, delta.TargetKind)
	}
	return nil
}

// getProcessed читает исходное начисление по маркеру идемпотентности.
func (r *Repository) getProcessed(ctx context.Context, tx pgx.Tx, key string) (*Activity, error) {
	var a Activity
	err := tx.QueryRow(ctx, `
		SELECT a.id, a.actor_id, a.action, a.target_id,
		       a.actor_delta, a.target_delta, a.collective_delta, a.created_at
		FROM processed_actions p
		JOIN activities a ON a.id = p.activity_id
		WHERE p.idempotency_key = $1
	`, key).Scan(
		&a.ID, &a.ActorID, &a.Action, &a.TargetID,
		&a.ActorDelta, &a.TargetDelta, &a.CollectiveDelta, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения исходного начисления: %w", err)
	}
	return &a, nil
}

// LookupProcessed читает исходное начисление по ключу идемпотентности
// вне транзакции. Возвращает nil без ошибки, если ключ не встречался;
// маркер внутри транзакции остаётся последней защитой от гонки
// параллельных ретраев.
func (r *Repository) LookupProcessed(ctx context.Context, key string) (*Activity, error) {
	var a Activity
	err := r.db.QueryRow(ctx, `
		SELECT a.id, a.actor_id, a.action, a.target_id,
		       a.actor_delta, a.target_delta, a.collective_delta, a.created_at
		FROM processed_actions p
		JOIN activities a ON a.id = p.activity_id
		WHERE p.idempotency_key = $1
	`, key).Scan(
		&a.ID, &a.ActorID, &a.Action, &a.TargetID,
		&a.ActorDelta, &a.TargetDelta, &a.CollectiveDelta, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка проверки ключа идемпотентности: %w", err)
	}
	return &a, nil
}

// GetActivity возвращает запись аудита по идентификатору.
func (r *Repository) GetActivity(ctx context.Context, id string) (*Activity, error) {
	var a Activity
	err := r.db.QueryRow(ctx, `
		SELECT id, actor_id, action, target_id, actor_delta, target_delta, collective_delta, created_at
		FROM activities WHERE id = $1
	`, id).Scan(
		&a.ID, &a.ActorID, &a.Action, &a.TargetID,
		&a.ActorDelta, &a.TargetDelta, &a.CollectiveDelta, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("запись аудита не найдена: %w", err)
	}
	return &a, nil
}

// DeleteStaleCooldowns удаляет устаревшие записи кулдаунов.
// Вызывается фоновой задачей; записи старше maxAge уже не влияют
// ни на одну проверку частоты.
func (r *Repository) DeleteStaleCooldowns(ctx context.Context, maxAgeSeconds int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM cooldowns
		WHERE last_invoked_at < NOW() - make_interval(secs => $1)
	`, maxAgeSeconds)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки кулдаунов: %w", err)
	}
	return tag.RowsAffected(), nil
}
