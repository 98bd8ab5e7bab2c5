// Пакет service — бизнес-логика Dashboard Module:
// кэш записей сервисов, политика опроса backend, потоки create/delete,
// журнал действий и настройки UI.
package service

import "errors"

// Ошибки сервисного слоя.
var (
	// ErrServiceNotFound — запись сервиса отсутствует в кэше и на backend.
	ErrServiceNotFound = errors.New("сервис не найден")
	// ErrNoCredential — для владельца нет действующего токена
	// (фоновый опрос невозможен до следующего запроса пользователя).
	ErrNoCredential = errors.New("нет действующего токена владельца")
	// ErrNotFound — запрошенный объект не существует.
	ErrNotFound = errors.New("объект не найден")
	// ErrValidation — входные данные не прошли валидацию.
	ErrValidation = errors.New("ошибка валидации")
)
