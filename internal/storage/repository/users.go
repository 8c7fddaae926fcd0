package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// RegisterUser сохраняет нового пользователя и возвращает его публичный uid.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (uid, email, username, password_hash, role)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid`
	var uid string
	err := s.DB.QueryRowContext(ctx, query,
		user.UID, user.Email, user.Username, user.PasswordHash, user.Role).Scan(&uid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// GetUserByUsername возвращает пользователя по имени.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, uid, email, username, password_hash, role,
			      lifetime_visits, discount_percent, created_at
			  FROM users WHERE username = $1`
	row := s.DB.QueryRowContext(ctx, query, username)

	var u models.User
	if err := row.Scan(&u.ID, &u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&u.LifetimeVisits, &u.DiscountPercent, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// GetUserByUID возвращает пользователя по публичному uid из JWT.
func (s *Storage) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.GetUserByUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, uid, email, username, password_hash, role,
			      lifetime_visits, discount_percent, created_at
			  FROM users WHERE uid = $1`
	row := s.DB.QueryRowContext(ctx, query, uid)

	var u models.User
	if err := row.Scan(&u.ID, &u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&u.LifetimeVisits, &u.DiscountPercent, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, uid, email, username, password_hash, role,
			      lifetime_visits, discount_percent, created_at
			  FROM users WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var u models.User
	if err := row.Scan(&u.ID, &u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&u.LifetimeVisits, &u.DiscountPercent, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// IncrementLifetimeVisits увеличивает счетчик посещений пользователя на 1
// и возвращает новое значение.
func (s *Storage) IncrementLifetimeVisits(ctx context.Context, userID int) (int, error) {
	const op = "storage.IncrementLifetimeVisits"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET lifetime_visits = lifetime_visits + 1
			  WHERE id = $1
			  RETURNING lifetime_visits`
	var visits int
	if err := s.DB.QueryRowContext(ctx, query, userID).Scan(&visits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrUserNotFound
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return visits, nil
}

// DecrementLifetimeVisits уменьшает счетчик посещений на 1, не опускаясь
// ниже нуля. Используется только как компенсация незавершенной отметки.
func (s *Storage) DecrementLifetimeVisits(ctx context.Context, userID int) error {
	const op = "storage.DecrementLifetimeVisits"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET lifetime_visits = lifetime_visits - 1
			  WHERE id = $1 AND lifetime_visits > 0`
	if _, err := s.DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateDiscountPercent сохраняет пересчитанный процент скидки пользователя.
func (s *Storage) UpdateDiscountPercent(ctx context.Context, userID, percent int) error {
	const op = "storage.UpdateDiscountPercent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET discount_percent = $2 WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, userID, percent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
