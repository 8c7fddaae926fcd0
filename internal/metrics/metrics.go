// Package metrics объявляет счетчики Prometheus движка бронирования.
// Сами значения отдаются обработчиком promhttp на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated — успешно созданные брони.
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_bookings_created_total",
		Help: "Number of successfully created bookings.",
	})

	// BookingsCancelled — отмененные брони.
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_bookings_cancelled_total",
		Help: "Number of cancelled bookings.",
	})

	// CapacityConflicts — отказы из-за отсутствия свободных мест.
	CapacityConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_capacity_conflicts_total",
		Help: "Number of booking attempts rejected because the slot was full.",
	})

	// AttendanceMarked — зафиксированные посещения.
	AttendanceMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_attendance_marked_total",
		Help: "Number of attendance records created.",
	})

	// VisitsDebited — списанные с абонементов посещения.
	VisitsDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_visits_debited_total",
		Help: "Number of visits debited from subscriptions.",
	})
)
