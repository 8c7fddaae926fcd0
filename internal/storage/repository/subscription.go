package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/gym-booking/internal/models"
)

// FindEligible возвращает активные непросроченные абонементы пользователя,
// категория которых combined или совпадает с запрошенной, с ненулевым
// (или безлимитным) остатком посещений. Первым идет абонемент с ближайшей
// датой окончания — списывать сгорающее раньше выгоднее клиенту, и это
// осознанная политика выбора, а не деталь реализации.
func (s *Storage) FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error) {
	const op = "storage.FindEligible"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT sub.id, sub.user_id, sub.type_id, st.name, st.category,
			      sub.start_date, sub.end_date, sub.visits_remaining, sub.is_active
			  FROM subscriptions sub
			  JOIN subscription_types st ON st.id = sub.type_id
			  WHERE sub.user_id = $1
			    AND sub.is_active = true
			    AND sub.start_date <= CURRENT_DATE
			    AND sub.end_date >= CURRENT_DATE
			    AND (st.category = 'combined' OR st.category = $2)
			    AND (sub.visits_remaining IS NULL OR sub.visits_remaining > 0)
			  ORDER BY sub.end_date`
	rows, err := s.DB.QueryContext(ctx, query, userID, category)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.ID, &item.UserID, &item.TypeID, &item.TypeName,
			&item.Category, &item.StartDate, &item.EndDate, &item.VisitsRemaining,
			&item.IsActive); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DebitVisit атомарно списывает одно посещение: декремент выполняется
// только при положительном остатке, и в той же операции абонемент
// деактивируется, если остаток стал нулевым. Для безлимитных абонементов
// (visits_remaining IS NULL) строка не затрагивается.
// false означает, что списывать было нечего.
func (s *Storage) DebitVisit(ctx context.Context, subscriptionID int) (bool, error) {
	const op = "storage.DebitVisit"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET visits_remaining = visits_remaining - 1,
			      is_active = CASE WHEN visits_remaining - 1 = 0 THEN false ELSE is_active END
			  WHERE id = $1
			    AND visits_remaining IS NOT NULL
			    AND visits_remaining > 0`
	result, err := s.DB.ExecContext(ctx, query, subscriptionID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// DebitVisitForBooking списывает посещение и помечает бронь оплаченной
// одной транзакцией, чтобы сбой между двумя записями не оставил
// рассогласованного следа. false — остаток исчерпан конкурентной операцией.
func (s *Storage) DebitVisitForBooking(ctx context.Context, bookingID, subscriptionID int) (bool, error) {
	const op = "storage.DebitVisitForBooking"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET visits_remaining = visits_remaining - 1,
		    is_active = CASE WHEN visits_remaining - 1 = 0 THEN false ELSE is_active END
		WHERE id = $1
		  AND visits_remaining IS NOT NULL
		  AND visits_remaining > 0`, subscriptionID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings SET visit_debited = true, subscription_id = $2
		WHERE id = $1`, bookingID, subscriptionID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// CreateSubscription вставляет купленный абонемент и возвращает его ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, type_id, start_date, end_date,
			      visits_remaining, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, sub.TypeID, sub.StartDate, sub.EndDate,
		sub.VisitsRemaining, sub.IsActive).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListActiveByUser возвращает активные непросроченные абонементы пользователя.
// Остаток посещений в выдаче ограничивается сверху вместимостью типа —
// страховка от исторических строк, где остаток превышал лимит.
func (s *Storage) ListActiveByUser(ctx context.Context, userID int) ([]*models.Subscription, error) {
	const op = "storage.ListActiveByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT sub.id, sub.user_id, sub.type_id, st.name, st.category,
			      sub.start_date, sub.end_date,
			      LEAST(sub.visits_remaining, st.visits_count) AS visits_remaining,
			      sub.is_active
			  FROM subscriptions sub
			  JOIN subscription_types st ON st.id = sub.type_id
			  WHERE sub.user_id = $1
			    AND sub.is_active = true
			    AND sub.end_date >= CURRENT_DATE
			  ORDER BY sub.end_date`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.ID, &item.UserID, &item.TypeID, &item.TypeName,
			&item.Category, &item.StartDate, &item.EndDate, &item.VisitsRemaining,
			&item.IsActive); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetSubscriptionType возвращает запись каталога абонементов.
func (s *Storage) GetSubscriptionType(ctx context.Context, typeID int) (*models.SubscriptionType, error) {
	const op = "storage.GetSubscriptionType"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, category, duration_months, visits_count, base_price
			  FROM subscription_types WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, typeID)

	var st models.SubscriptionType
	if err := row.Scan(&st.ID, &st.Name, &st.Category, &st.DurationMonths,
		&st.VisitsCount, &st.BasePrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSubscriptionTypeNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}
