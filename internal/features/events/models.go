// Package events управляет мероприятиями платформы.
// models.go описывает структуры для работы с таблицей events.
package events

import "time"

// Event представляет мероприятие в базе данных.
type Event struct {
	ID          string    `db:"id"`           // Идентификатор мероприятия
	ClubID      string    `db:"club_id"`      // Клуб-организатор
	Title       string    `db:"title"`        // Название для уведомлений
	TotalPoints int64     `db:"total_points"` // Счёт мероприятия
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
