package models

import "time"

// Статусы брони.
const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
	BookingStatusAttended  = "attended"
)

// Booking — запись пользователя на слот расписания.
//
// Для пары (пользователь, слот) существует не более одной строки в статусе
// booked — это обеспечивает частичный уникальный индекс в базе.
// VisitDebited и SubscriptionID фиксируют, был ли визит списан уже при
// бронировании и с какого абонемента: по ним регистратор посещений решает,
// нужно ли списывать визит при отметке.
type Booking struct {
	ID             int       // Идентификатор брони
	UserID         int       // Кто записан
	ScheduleID     int       // На какой слот
	Status         string    // booked, cancelled или attended
	SubscriptionID *int      // Абонемент, с которого списан визит (если списан)
	VisitDebited   bool      // Визит уже списан при бронировании
	CreatedAt      time.Time // Время создания брони
}
