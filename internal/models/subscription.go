package models

import "time"

// Категории абонементов.
//
// gym дает доступ к индивидуальным занятиям (тренажерный зал),
// group — к групповым, combined — к обоим видам.
const (
	CategoryGym      = "gym"
	CategoryGroup    = "group"
	CategoryCombined = "combined"
)

// SubscriptionType — запись каталога абонементов. Справочные данные,
// ведутся CRUD-ом каталога и здесь не изменяются.
type SubscriptionType struct {
	ID             int      // Идентификатор типа
	Name           string   // Название тарифа
	Category       string   // gym, group или combined
	DurationMonths *int     // Срок действия в месяцах, nil — без ограничения
	VisitsCount    *int     // Количество посещений, nil — безлимит
	BasePrice      float64  // Базовая цена без скидки
}

// Subscription — купленный экземпляр абонемента.
//
// VisitsRemaining никогда не уходит в минус и не превышает VisitsCount типа;
// nil означает безлимит. При достижении нуля абонемент деактивируется
// той же операцией списания.
type Subscription struct {
	ID              int       // Идентификатор абонемента
	UserID          int       // Владелец
	TypeID          int       // Ссылка на тип из каталога
	TypeName        string    // Название типа (для выдачи клиенту)
	Category        string    // Категория типа (для выдачи клиенту)
	StartDate       time.Time // Дата начала действия
	EndDate         time.Time // Дата окончания действия
	VisitsRemaining *int      // Остаток посещений, nil — безлимит
	IsActive        bool      // Флаг активности
}
