// Package members управляет участниками платформы: регистрацией, блокировками, балансом.
// models.go описывает структуры данных для работы с таблицей members.
package members

import "time"

// Member представляет участника платформы в базе данных.
// Записи синхронизируются внешним слоем платформы (экраны, формы)
// через эндпоинт upsert; движок их только читает и меняет баланс.
type Member struct {
	ID          string    `db:"id"`           // Идентификатор пользователя в платформе
	Username    string    `db:"username"`     // @username (может быть пустым)
	DisplayName string    `db:"display_name"` // Отображаемое имя
	IsBanned    bool      `db:"is_banned"`    // Флаг блокировки
	TotalPoints int64     `db:"total_points"` // Текущий баланс баллов
	// Привязанный Telegram-чат для доставки пушей (nil — пуши не доставляются)
	TelegramChatID *int64    `db:"telegram_chat_id"`
	CreatedAt      time.Time `db:"created_at"` // Когда запись создана в БД
	UpdatedAt      time.Time `db:"updated_at"` // Последнее обновление записи
}

// UpsertInfo содержит данные для создания/обновления участника
// при синхронизации со стороны платформы.
type UpsertInfo struct {
	Username       string // Новый @username
	DisplayName    string // Новое отображаемое имя
	TelegramChatID *int64 // Привязанный чат (nil — не менять привязку)
}

// Name возвращает имя участника для подстановки в уведомления.
// Если есть @username — возвращает его, иначе — отображаемое имя.
func (m *Member) Name() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	return m.DisplayName
}
