package models

import "time"

// Attendance — неизменяемый факт физического присутствия пользователя
// на занятии. Наличие или отсутствие этой строки — источник истины для
// вопроса «потрачен ли визит»; статус брони лишь денормализованное
// отражение. На пару (пользователь, слот) существует не более одной строки.
type Attendance struct {
	ID         int       // Идентификатор записи
	UserID     int       // Кто присутствовал
	ScheduleID int       // На каком занятии
	TrainerID  int       // Тренер, зафиксировавший посещение
	MarkedAt   time.Time // Когда зафиксировано
}
