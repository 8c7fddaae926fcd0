// Package sl — атрибуты slog, общие для сервисов движка бронирования.
package sl

import "log/slog"

// Err кладет текст ошибки в атрибут "error", чтобы все записи об ошибках
// в логах движка имели одинаковый ключ:
//
//	log.Error("failed to reserve seat", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
