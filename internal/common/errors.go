// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях движка.
// Эти ошибки позволяют фасаду различать типы проблем
// и переводить их в понятный ответ для вызывающей стороны.
package common

import "errors"

// Ошибки запроса (виноват вызывающий)
var (
	// ErrUnknownAction — действие не зарегистрировано в таблице правил
	ErrUnknownAction = errors.New("неизвестное действие")
	// ErrInvalidRequest — некорректные поля запроса (пустой actor_id и т.п.)
	ErrInvalidRequest = errors.New("некорректный запрос")
)

// Ошибки допуска (нарушение доменных правил)
var (
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrUserBanned — пользователь заблокирован и не может получать баллы
	ErrUserBanned = errors.New("пользователь заблокирован")
	// ErrInsufficientPoints — списание увело бы баланс пользователя в минус
	ErrInsufficientPoints = errors.New("недостаточно баллов на счёте")
)

// Ограничение частоты
var (
	// ErrRateLimited — то же действие по той же цели повторено слишком рано.
	// Это штатный отказ без побочных эффектов, а не сбой.
	ErrRateLimited = errors.New("слишком часто, подождите")
)

// Идемпотентность
var (
	// ErrDuplicateAction — запрос с таким idempotency key уже обработан
	ErrDuplicateAction = errors.New("действие уже обработано")
)

// Ошибки админки
var (
	// ErrNotAdmin — неверный админ-токен
	ErrNotAdmin = errors.New("нет прав администратора")
)
