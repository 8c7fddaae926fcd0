// Package repository реализует хранилище данных на основе PostgreSQL
// для движка бронирования: пользователи, абонементы, расписание, брони
// и отметки посещений. Все изменяемые счетчики (занятые места, остаток
// посещений) обновляются одиночными условными UPDATE с проверкой числа
// затронутых строк — никогда не через чтение с последующей записью.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с доменными сущностями зала.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'schedule'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table schedule missing or query error: %w", err)
	}
	return nil
}
