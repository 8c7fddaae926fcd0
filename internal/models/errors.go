package models

import "errors"

// Доменные ошибки движка бронирования. Обработчики сопоставляют их
// с HTTP-статусами через errors.Is; все прочие ошибки считаются сбоем
// хранилища и наружу отдаются обезличенно.
var (
	// ErrSlotNotFound — слот отсутствует или отменен.
	ErrSlotNotFound = errors.New("schedule slot not found")
	// ErrBookingNotFound — бронь не существует, принадлежит другому
	// пользователю или уже не в статусе booked.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrUserNotFound — пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubscriptionTypeNotFound — тип абонемента отсутствует в каталоге.
	ErrSubscriptionTypeNotFound = errors.New("subscription type not found")

	// ErrAlreadyBooked — активная бронь на этот слот уже есть.
	ErrAlreadyBooked = errors.New("already booked for this session")
	// ErrCapacityExceeded — свободных мест не осталось.
	ErrCapacityExceeded = errors.New("no free seats for this session")
	// ErrNoEligibleSubscription — нет подходящего активного абонемента.
	ErrNoEligibleSubscription = errors.New("no suitable subscription")
	// ErrTrainerUnavailable — у тренера нет свободного индивидуального
	// слота на запрошенную дату и время.
	ErrTrainerUnavailable = errors.New("trainer has no free slot at this time")

	// ErrForbidden — тренер действует на чужом слоте.
	ErrForbidden = errors.New("trainer does not own this slot")
)
