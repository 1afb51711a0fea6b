// Package ledger применяет начисления баллов к затронутым сущностям.
// models.go описывает транзитные структуры начисления и запись аудита.
package ledger

import "time"

// Виды целевой сущности. От вида зависит, в какой таблице
// лежит баланс цели.
const (
	TargetKindUser  = "user"
	TargetKindEvent = "event"
)

// Delta — вычисленное начисление за одно действие.
// Поля цели и коллектива могут быть пустыми, если действие их не затрагивает.
// Структура транзитная: хранится не она, а инкременты балансов.
type Delta struct {
	ActorID     string // Инициатор действия (всегда участник)
	ActorPoints int64  // Подписанное начисление инициатору

	TargetID     string // Целевая сущность (может быть пустой)
	TargetKind   string // user | event
	TargetPoints int64

	CollectiveID     string // Клуб, связанный с действием через метаданные
	CollectivePoints int64
}

// Activity — запись аудита одного начисления.
// Идентификатор возвращается вызывающему как корреляционный токен.
type Activity struct {
	ID              string    `db:"id"`
	ActorID         string    `db:"actor_id"`
	Action          string    `db:"action"`
	TargetID        string    `db:"target_id"`
	ActorDelta      int64     `db:"actor_delta"`
	TargetDelta     int64     `db:"target_delta"`
	CollectiveDelta int64     `db:"collective_delta"`
	CreatedAt       time.Time `db:"created_at"`
}

// Outcome — результат применения начисления.
// Если Duplicate=true, запрос с этим idempotency key уже обрабатывался:
// балансы не менялись, Activity описывает исходное начисление.
type Outcome struct {
	Duplicate bool
	Activity  Activity
}
