// Package models содержит доменные структуры зала: пользователей, абонементы,
// слоты расписания, брони и отметки посещений, а также доменные ошибки.
package models

import "time"

// Роли пользователей системы.
const (
	RoleClient  = "client"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// User представляет зарегистрированного пользователя системы.
//
// Движок бронирования читает только идентификацию и роль, а изменяет
// лишь счетчик посещений и кешированный процент скидки.
type User struct {
	ID              int       // Внутренний числовой идентификатор
	UID             string    // Публичный идентификатор (uuid), попадает в JWT
	Email           string    // Электронная почта
	Username        string    // Имя пользователя (уникальное)
	PasswordHash    string    // Хэш пароля пользователя
	Role            string    // Роль: client, trainer или admin
	LifetimeVisits  int       // Количество посещений за все время, только растет
	DiscountPercent int       // Кешированный процент накопительной скидки
	CreatedAt       time.Time // Дата регистрации
}
