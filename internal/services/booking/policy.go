package booking

import "github.com/magabrotheeeer/gym-booking/internal/models"

// DebitMoment определяет момент списания посещения для визита.
type DebitMoment int

const (
	// DebitAtBooking — визит списывается при создании брони.
	DebitAtBooking DebitMoment = iota
	// DebitAtAttendance — визит списывается при отметке посещения тренером.
	DebitAtAttendance
)

type policyKey struct {
	sessionType string
	hasTrainer  bool
}

// Таблица моментов списания по (вид занятия, есть ли тренер).
//
// Групповые занятия оплачиваются при бронировании. Индивидуальное занятие
// с тренером списывается при отметке посещения — иначе связка
// «зал + тренировка» стоила бы клиенту два визита вместо одного.
// Самостоятельный визит в зал без тренера списывается сразу: события
// отметки от тренера для него не будет. Асимметрия намеренная, правило
// держится здесь одной таблицей, чтобы оставаться проверяемым.
var debitPolicy = map[policyKey]DebitMoment{
	{sessionType: models.SessionGroup, hasTrainer: true}:       DebitAtBooking,
	{sessionType: models.SessionGroup, hasTrainer: false}:      DebitAtBooking,
	{sessionType: models.SessionIndividual, hasTrainer: true}:  DebitAtAttendance,
	{sessionType: models.SessionIndividual, hasTrainer: false}: DebitAtBooking,
}

// DebitMomentFor возвращает момент списания для вида занятия и наличия тренера.
func DebitMomentFor(sessionType string, hasTrainer bool) DebitMoment {
	return debitPolicy[policyKey{sessionType: sessionType, hasTrainer: hasTrainer}]
}
