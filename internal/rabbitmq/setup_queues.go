package rabbitmq

// QueueConfig описывает очередь и ключ маршрутизации в обменнике notifications.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации событий движка бронирования.
const (
	RoutingKeyBookingCreated   = "booking.created"
	RoutingKeyBookingCancelled = "booking.cancelled"
	RoutingKeyAttendanceMarked = "attendance.marked"
)

// DefaultQueues возвращает очереди, которые слушает подсистема уведомлений.
func DefaultQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "booking_created_queue", RoutingKey: RoutingKeyBookingCreated},
		{QueueName: "booking_cancelled_queue", RoutingKey: RoutingKeyBookingCancelled},
		{QueueName: "attendance_marked_queue", RoutingKey: RoutingKeyAttendanceMarked},
	}
}
