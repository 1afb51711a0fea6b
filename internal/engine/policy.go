// Package engine — policy.go содержит таблицу правил начисления.
// Таблица статична, заполняется на старте процесса и только читается.
// Правила выражены данными, а не ветками кода: ядро фасада не знает
// о конкретных действиях, новые действия добавляются строкой в таблицу.
package engine

import (
	"time"

	"campushub.ru/gamification/internal/common"
	"campushub.ru/gamification/internal/features/ledger"
)

// Идентификаторы действий, которые движок умеет оценивать.
const (
	ActionLikeEvent     = "LIKE_EVENT"
	ActionUnlikeEvent   = "UNLIKE_EVENT"
	ActionJoinEvent     = "JOIN_EVENT"
	ActionLeaveEvent    = "LEAVE_EVENT"
	ActionFollowClub    = "FOLLOW_CLUB"
	ActionUnfollowClub  = "UNFOLLOW_CLUB"
	ActionJoinClub      = "JOIN_CLUB"
	ActionLeaveClub     = "LEAVE_CLUB"
	ActionLikeComment   = "LIKE_COMMENT"
	ActionUnlikeComment = "UNLIKE_COMMENT"
	ActionApproveMember = "APPROVE_MEMBER"
	ActionCreateEvent   = "CREATE_EVENT"
	ActionDailyCheckin  = "DAILY_CHECKIN"
)

// ActionPolicy — правило начисления для одного действия.
// Обратные действия (UNLIKE_EVENT и т.п.) заведены отдельными строками
// с отрицательными дельтами, а не автоинверсией: Reversible — справочный флаг.
type ActionPolicy struct {
	ActorDelta      int64         // Баллы инициатору
	TargetDelta     int64         // Баллы целевой сущности (0 — не затрагивается)
	TargetKind      string        // Вид цели при ненулевой дельте: user | event
	CollectiveDelta int64         // Баллы клубу из метаданных (0 — не затрагивается)
	Reversible      bool          // Есть ли парное обратное действие
	Cooldown        time.Duration // Минимальный интервал повтора по одной цели (0 — без ограничения)
}

// Registry — реестр правил. Только чтение после создания,
// поэтому безопасен для параллельного доступа без блокировок.
type Registry struct {
	policies map[string]ActionPolicy
}

// NewRegistry создаёт реестр со штатной таблицей правил.
func NewRegistry() *Registry {
	return &Registry{policies: map[string]ActionPolicy{
		ActionLikeEvent:     {ActorDelta: 10, CollectiveDelta: 15, Reversible: true, Cooldown: 30 * time.Second},
		ActionUnlikeEvent:   {ActorDelta: -10, CollectiveDelta: -15, Reversible: true, Cooldown: 30 * time.Second},
		ActionJoinEvent:     {ActorDelta: 30, CollectiveDelta: 20, Reversible: true, Cooldown: 60 * time.Second},
		ActionLeaveEvent:    {ActorDelta: -30, CollectiveDelta: -20, Reversible: true, Cooldown: 60 * time.Second},
		ActionFollowClub:    {ActorDelta: 15, CollectiveDelta: 25, Reversible: true, Cooldown: 24 * time.Hour},
		ActionUnfollowClub:  {ActorDelta: -15, CollectiveDelta: -25, Reversible: true, Cooldown: 24 * time.Hour},
		ActionJoinClub:      {ActorDelta: 50, CollectiveDelta: 30, Reversible: true},
		ActionLeaveClub:     {ActorDelta: -50, CollectiveDelta: -30, Reversible: true},
		ActionLikeComment:   {ActorDelta: 2, TargetDelta: 5, TargetKind: ledger.TargetKindUser, Reversible: true, Cooldown: 30 * time.Second},
		ActionUnlikeComment: {ActorDelta: -2, TargetDelta: -5, TargetKind: ledger.TargetKindUser, Reversible: true, Cooldown: 30 * time.Second},
		ActionApproveMember: {ActorDelta: 5, TargetDelta: 40, TargetKind: ledger.TargetKindUser, CollectiveDelta: 10},
		ActionCreateEvent:   {ActorDelta: 25, CollectiveDelta: 15, Cooldown: 5 * time.Minute},
		ActionDailyCheckin:  {ActorDelta: 10, Cooldown: 24 * time.Hour},
	}}
}

// Lookup возвращает правило для действия.
// Неизвестное действие — ошибка запроса, а не тихий ноль:
// молчаливый дефолт скрывал бы ошибки интеграции.
func (r *Registry) Lookup(action string) (ActionPolicy, error) {
	p, ok := r.policies[action]
	if !ok {
		return ActionPolicy{}, common.ErrUnknownAction
	}
	return p, nil
}

// MaxCooldown возвращает самый длинный кулдаун таблицы.
// Записи старше него заведомо мертвы — порог для фоновой очистки.
func (r *Registry) MaxCooldown() time.Duration {
	var max time.Duration
	for _, p := range r.policies {
		if p.Cooldown > max {
			max = p.Cooldown
		}
	}
	return max
}
