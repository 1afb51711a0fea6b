// Package clubs управляет клубами (коллективами) платформы.
// models.go описывает структуры для работы с таблицей clubs.
package clubs

import "time"

// Club представляет клуб в базе данных.
// Баланс клуба меняется только движком начислений; отрицательный
// счёт клуба допустим (пол защищается только у участников).
type Club struct {
	ID          string    `db:"id"`           // Идентификатор клуба в платформе
	Name        string    `db:"name"`         // Отображаемое название
	OwnerID     string    `db:"owner_id"`     // Владелец клуба — получатель уведомлений коллектива
	TotalPoints int64     `db:"total_points"` // Текущий счёт клуба
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
