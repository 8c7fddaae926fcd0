package models

import "time"

// Виды занятий.
const (
	SessionIndividual = "individual"
	SessionGroup      = "group"
)

// ScheduleSlot — единица расписания, на которую можно записаться.
//
// Инвариант: 0 <= CurrentParticipants <= MaxParticipants в любой момент;
// для индивидуальных занятий MaxParticipants равен 1.
type ScheduleSlot struct {
	ID                  int       // Идентификатор слота
	TrainerID           int       // Тренер, ведущий занятие
	Name                *string   // Название программы, опционально
	SessionType         string    // individual или group
	StartsAt            time.Time // Начало занятия
	EndsAt              time.Time // Окончание занятия
	MaxParticipants     int       // Вместимость
	CurrentParticipants int       // Живой счетчик занятых мест
	IsCancelled         bool      // Слот отменен расписанием
}

// AvailableSlot — слот расписания, обогащенный именем тренера,
// в таком виде список доступных занятий отдается клиенту.
type AvailableSlot struct {
	ScheduleSlot
	TrainerName string // Имя тренера для отображения
}

// CategoryForSession возвращает категорию абонемента, которой оплачивается
// занятие данного вида. Абонементы категории combined подходят всегда
// и учитываются на уровне запросов к хранилищу.
func CategoryForSession(sessionType string) string {
	if sessionType == SessionGroup {
		return CategoryGroup
	}
	return CategoryGym
}
