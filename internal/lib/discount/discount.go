// Package discount реализует расчет накопительной скидки клиента
// по количеству посещений за все время.
//
// Скидка — ступенчатая неубывающая функция: каждые 10 посещений добавляют
// 10 процентов, верхняя граница задается конфигурацией.
package discount

// Calculator вычисляет процент скидки по счетчику посещений.
// Cap — максимальный процент скидки; в исходных данных встречались
// два разных значения на разных участках, поэтому значение вынесено
// в конфигурацию и нигде не зашито в код.
type Calculator struct {
	Cap int
}

// New создает Calculator с заданным максимальным процентом скидки.
func New(cap int) Calculator {
	return Calculator{Cap: cap}
}

// Tier возвращает процент скидки для указанного количества посещений.
// Функция чистая и монотонно неубывающая: floor(visits/10)*10, но не более Cap.
func (c Calculator) Tier(lifetimeVisits int) int {
	if lifetimeVisits < 0 {
		return 0
	}
	tier := lifetimeVisits / 10 * 10
	if tier > c.Cap {
		return c.Cap
	}
	return tier
}
