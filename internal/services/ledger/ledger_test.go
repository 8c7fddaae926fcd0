package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gym-booking/internal/models"
	"github.com/magabrotheeeer/gym-booking/internal/services/ledger"
)

// Мок для SubscriptionRepository
type SubRepoMock struct {
	mock.Mock
}

func (m *SubRepoMock) FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *SubRepoMock) DebitVisit(ctx context.Context, subscriptionID int) (bool, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Bool(0), args.Error(1)
}

func (m *SubRepoMock) DebitVisitForBooking(ctx context.Context, bookingID, subscriptionID int) (bool, error) {
	args := m.Called(ctx, bookingID, subscriptionID)
	return args.Bool(0), args.Error(1)
}

func (m *SubRepoMock) SetVisitDebited(ctx context.Context, bookingID, subscriptionID int) error {
	args := m.Called(ctx, bookingID, subscriptionID)
	return args.Error(0)
}

func (m *SubRepoMock) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}

func (m *SubRepoMock) ListActiveByUser(ctx context.Context, userID int) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *SubRepoMock) GetSubscriptionType(ctx context.Context, typeID int) (*models.SubscriptionType, error) {
	args := m.Called(ctx, typeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionType), args.Error(1)
}

func (m *SubRepoMock) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// Мок для Cache
type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *CacheMock) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func intPtr(v int) *int { return &v }

func TestLedger_DebitVisit(t *testing.T) {
	tests := []struct {
		name       string
		sub        *models.Subscription
		setupMocks func(r *SubRepoMock, c *CacheMock)
		wantErr    error
	}{
		{
			name: "limited subscription debited",
			sub:  &models.Subscription{ID: 7, UserID: 3, VisitsRemaining: intPtr(5)},
			setupMocks: func(r *SubRepoMock, c *CacheMock) {
				r.On("DebitVisit", mock.Anything, 7).Return(true, nil).Once()
				c.On("Invalidate", "subscriptions:user:3").Return(nil).Once()
			},
		},
		{
			name:       "unlimited subscription is a no-op",
			sub:        &models.Subscription{ID: 7, UserID: 3, VisitsRemaining: nil},
			setupMocks: func(_ *SubRepoMock, _ *CacheMock) {},
		},
		{
			name: "exhausted by concurrent debit",
			sub:  &models.Subscription{ID: 7, UserID: 3, VisitsRemaining: intPtr(1)},
			setupMocks: func(r *SubRepoMock, _ *CacheMock) {
				r.On("DebitVisit", mock.Anything, 7).Return(false, nil).Once()
			},
			wantErr: models.ErrNoEligibleSubscription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(SubRepoMock)
			cache := new(CacheMock)
			l := ledger.New(repo, cache, newTestLogger())

			tt.setupMocks(repo, cache)

			err := l.DebitVisit(context.Background(), tt.sub)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestLedger_DebitForBooking_Unlimited(t *testing.T) {
	repo := new(SubRepoMock)
	cache := new(CacheMock)
	l := ledger.New(repo, cache, newTestLogger())

	sub := &models.Subscription{ID: 9, UserID: 4, VisitsRemaining: nil}
	repo.On("SetVisitDebited", mock.Anything, 42, 9).Return(nil).Once()

	err := l.DebitForBooking(context.Background(), sub, 42)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLedger_DebitForBooking_Limited(t *testing.T) {
	repo := new(SubRepoMock)
	cache := new(CacheMock)
	l := ledger.New(repo, cache, newTestLogger())

	sub := &models.Subscription{ID: 9, UserID: 4, VisitsRemaining: intPtr(3)}
	repo.On("DebitVisitForBooking", mock.Anything, 42, 9).Return(true, nil).Once()
	cache.On("Invalidate", "subscriptions:user:4").Return(nil).Once()

	err := l.DebitForBooking(context.Background(), sub, 42)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestLedger_PriceFor(t *testing.T) {
	tests := []struct {
		name      string
		basePrice float64
		discount  int
		want      float64
	}{
		{name: "no discount", basePrice: 1000, discount: 0, want: 1000},
		{name: "ten percent", basePrice: 1000, discount: 10, want: 900},
		{name: "rounding to two digits", basePrice: 999.99, discount: 15, want: 849.99},
		{name: "thirty percent cap", basePrice: 2500, discount: 30, want: 1750},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(SubRepoMock)
			cache := new(CacheMock)
			l := ledger.New(repo, cache, newTestLogger())

			repo.On("GetSubscriptionType", mock.Anything, 1).
				Return(&models.SubscriptionType{ID: 1, BasePrice: tt.basePrice}, nil).Once()
			repo.On("GetUserByID", mock.Anything, 5).
				Return(&models.User{ID: 5, DiscountPercent: tt.discount}, nil).Once()

			price, err := l.PriceFor(context.Background(), 5, 1)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, price, 0.001)
		})
	}
}

func TestLedger_Purchase(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("type with duration and visits", func(t *testing.T) {
		repo := new(SubRepoMock)
		cache := new(CacheMock)
		l := ledger.New(repo, cache, newTestLogger())

		st := &models.SubscriptionType{
			ID: 2, Name: "Group 8", Category: models.CategoryGroup,
			DurationMonths: intPtr(3), VisitsCount: intPtr(8), BasePrice: 4000,
		}
		repo.On("GetSubscriptionType", mock.Anything, 2).Return(st, nil).Twice()
		repo.On("GetUserByID", mock.Anything, 5).
			Return(&models.User{ID: 5, DiscountPercent: 10}, nil).Once()
		repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
			return sub.UserID == 5 &&
				sub.TypeID == 2 &&
				sub.EndDate.Equal(start.AddDate(0, 3, 0)) &&
				sub.VisitsRemaining != nil && *sub.VisitsRemaining == 8 &&
				sub.IsActive
		})).Return(11, nil).Once()
		cache.On("Invalidate", "subscriptions:user:5").Return(nil).Once()

		id, price, err := l.Purchase(context.Background(), 5, 2, start)
		require.NoError(t, err)
		assert.Equal(t, 11, id)
		assert.InDelta(t, 3600.0, price, 0.001)
	})

	t.Run("unlimited type defaults to a year", func(t *testing.T) {
		repo := new(SubRepoMock)
		cache := new(CacheMock)
		l := ledger.New(repo, cache, newTestLogger())

		st := &models.SubscriptionType{
			ID: 3, Name: "Unlimited", Category: models.CategoryCombined, BasePrice: 10000,
		}
		repo.On("GetSubscriptionType", mock.Anything, 3).Return(st, nil).Twice()
		repo.On("GetUserByID", mock.Anything, 5).
			Return(&models.User{ID: 5, DiscountPercent: 0}, nil).Once()
		repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
			return sub.VisitsRemaining == nil &&
				sub.EndDate.Equal(start.AddDate(0, 12, 0))
		})).Return(12, nil).Once()
		cache.On("Invalidate", "subscriptions:user:5").Return(nil).Once()

		id, price, err := l.Purchase(context.Background(), 5, 3, start)
		require.NoError(t, err)
		assert.Equal(t, 12, id)
		assert.InDelta(t, 10000.0, price, 0.001)
	})

	t.Run("unknown type", func(t *testing.T) {
		repo := new(SubRepoMock)
		cache := new(CacheMock)
		l := ledger.New(repo, cache, newTestLogger())

		repo.On("GetSubscriptionType", mock.Anything, 99).
			Return(nil, models.ErrSubscriptionTypeNotFound).Once()

		_, _, err := l.Purchase(context.Background(), 5, 99, start)
		assert.ErrorIs(t, err, models.ErrSubscriptionTypeNotFound)
	})
}

func TestLedger_ListActive_CacheMiss(t *testing.T) {
	repo := new(SubRepoMock)
	cache := new(CacheMock)
	l := ledger.New(repo, cache, newTestLogger())

	subs := []*models.Subscription{{ID: 1, UserID: 5, TypeName: "Gym 12"}}
	cache.On("Get", "subscriptions:user:5", mock.Anything).Return(false, nil).Once()
	repo.On("ListActiveByUser", mock.Anything, 5).Return(subs, nil).Once()
	cache.On("Set", "subscriptions:user:5", subs, time.Hour).Return(nil).Once()

	got, err := l.ListActive(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, subs, got)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestLedger_ListActive_RepoError(t *testing.T) {
	repo := new(SubRepoMock)
	cache := new(CacheMock)
	l := ledger.New(repo, cache, newTestLogger())

	cache.On("Get", "subscriptions:user:5", mock.Anything).Return(false, nil).Once()
	repo.On("ListActiveByUser", mock.Anything, 5).Return(nil, errors.New("db error")).Once()

	_, err := l.ListActive(context.Background(), 5)
	assert.Error(t, err)
}

func TestLedger_HasCategory(t *testing.T) {
	repo := new(SubRepoMock)
	cache := new(CacheMock)
	l := ledger.New(repo, cache, newTestLogger())

	sub := &models.Subscription{ID: 7, UserID: 5, Category: models.CategoryGym}
	repo.On("FindEligible", mock.Anything, 5, models.CategoryGym).
		Return([]*models.Subscription{sub}, nil).Once()
	repo.On("FindEligible", mock.Anything, 6, models.CategoryGym).
		Return([]*models.Subscription{}, nil).Once()

	ok, err := l.HasCategory(context.Background(), 5, models.CategoryGym)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.HasCategory(context.Background(), 6, models.CategoryGym)
	require.NoError(t, err)
	assert.False(t, ok)
}
