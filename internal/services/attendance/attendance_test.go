package attendance_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/gym-booking/internal/lib/discount"
	"github.com/magabrotheeeer/gym-booking/internal/models"
	"github.com/magabrotheeeer/gym-booking/internal/services/attendance"
)

// Мок для SlotRegistry
type SlotRegistryMock struct {
	mock.Mock
}

func (m *SlotRegistryMock) Get(ctx context.Context, slotID int) (*models.ScheduleSlot, error) {
	args := m.Called(ctx, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduleSlot), args.Error(1)
}

func (m *SlotRegistryMock) MarkPresence(ctx context.Context, slotID int) (bool, error) {
	args := m.Called(ctx, slotID)
	return args.Bool(0), args.Error(1)
}

func (m *SlotRegistryMock) Release(ctx context.Context, slotID int) error {
	args := m.Called(ctx, slotID)
	return args.Error(0)
}

// Мок для Ledger
type LedgerMock struct {
	mock.Mock
}

func (m *LedgerMock) FindEligible(ctx context.Context, userID int, category string) ([]*models.Subscription, error) {
	args := m.Called(ctx, userID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *LedgerMock) DebitVisit(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *LedgerMock) DebitForBooking(ctx context.Context, sub *models.Subscription, bookingID int) error {
	args := m.Called(ctx, sub, bookingID)
	return args.Error(0)
}

// Мок для BookingRepository
type BookingRepoMock struct {
	mock.Mock
}

func (m *BookingRepoMock) GetBookingForUser(ctx context.Context, bookingID, userID int) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *BookingRepoMock) GetBookedRow(ctx context.Context, userID, scheduleID int) (*models.Booking, error) {
	args := m.Called(ctx, userID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *BookingRepoMock) GetAttendedRow(ctx context.Context, userID, scheduleID int) (*models.Booking, error) {
	args := m.Called(ctx, userID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *BookingRepoMock) UpdateBookingStatus(ctx context.Context, bookingID int, from, to string) (bool, error) {
	args := m.Called(ctx, bookingID, from, to)
	return args.Bool(0), args.Error(1)
}

// Мок для AttendanceRepository
type AttendanceRepoMock struct {
	mock.Mock
}

func (m *AttendanceRepoMock) CreateAttendance(ctx context.Context, userID, scheduleID, trainerID int) (bool, error) {
	args := m.Called(ctx, userID, scheduleID, trainerID)
	return args.Bool(0), args.Error(1)
}

func (m *AttendanceRepoMock) DeleteAttendance(ctx context.Context, userID, scheduleID int) (bool, error) {
	args := m.Called(ctx, userID, scheduleID)
	return args.Bool(0), args.Error(1)
}

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) IncrementLifetimeVisits(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *UserRepoMock) DecrementLifetimeVisits(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *UserRepoMock) UpdateDiscountPercent(ctx context.Context, userID, percent int) error {
	args := m.Called(ctx, userID, percent)
	return args.Error(0)
}

// Мок для EventPublisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

type mocks struct {
	slots    *SlotRegistryMock
	ledger   *LedgerMock
	bookings *BookingRepoMock
	repo     *AttendanceRepoMock
	users    *UserRepoMock
	events   *PublisherMock
}

func newRecorder() (*attendance.Recorder, mocks) {
	m := mocks{
		slots:    new(SlotRegistryMock),
		ledger:   new(LedgerMock),
		bookings: new(BookingRepoMock),
		repo:     new(AttendanceRepoMock),
		users:    new(UserRepoMock),
		events:   new(PublisherMock),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	r := attendance.New(m.slots, m.ledger, m.bookings, m.repo, m.users,
		discount.New(30), m.events, logger)
	return r, m
}

func intPtr(v int) *int { return &v }

func groupSlot(id, trainerID int) *models.ScheduleSlot {
	return &models.ScheduleSlot{
		ID:          id,
		TrainerID:   trainerID,
		SessionType: models.SessionGroup,
		StartsAt:    time.Now().Add(time.Hour),
	}
}

func individualSlot(id, trainerID int) *models.ScheduleSlot {
	return &models.ScheduleSlot{
		ID:              id,
		TrainerID:       trainerID,
		SessionType:     models.SessionIndividual,
		MaxParticipants: 1,
	}
}

func TestRecorder_MarkAttended_GroupWithBooking(t *testing.T) {
	r, m := newRecorder()

	b := &models.Booking{ID: 31, UserID: 5, ScheduleID: 100,
		Status: models.BookingStatusBooked, VisitDebited: true}
	m.slots.On("Get", mock.Anything, 100).Return(groupSlot(100, 2), nil).Once()
	m.bookings.On("GetBookedRow", mock.Anything, 5, 100).Return(b, nil).Once()
	m.repo.On("CreateAttendance", mock.Anything, 5, 100, 2).Return(true, nil).Once()
	m.bookings.On("UpdateBookingStatus", mock.Anything, 31,
		models.BookingStatusBooked, models.BookingStatusAttended).Return(true, nil).Once()
	m.users.On("IncrementLifetimeVisits", mock.Anything, 5).Return(10, nil).Once()
	m.users.On("UpdateDiscountPercent", mock.Anything, 5, 10).Return(nil).Once()
	m.events.On("Publish", "attendance.marked", mock.Anything).Return(nil).Once()

	err := r.MarkAttended(context.Background(), 2, 5, 100, nil)
	assert.NoError(t, err)

	// Место занято бронью при резервировании, живой счетчик не трогается.
	m.slots.AssertNotCalled(t, "MarkPresence", mock.Anything, mock.Anything)
	// Групповое занятие оплачено при бронировании, позднего списания нет.
	m.ledger.AssertNotCalled(t, "DebitVisit", mock.Anything, mock.Anything)
	m.ledger.AssertNotCalled(t, "DebitForBooking", mock.Anything, mock.Anything, mock.Anything)
	m.slots.AssertExpectations(t)
	m.users.AssertExpectations(t)
}

func TestRecorder_MarkAttended_Idempotent(t *testing.T) {
	r, m := newRecorder()

	b := &models.Booking{ID: 31, UserID: 5, ScheduleID: 100, VisitDebited: true}
	m.slots.On("Get", mock.Anything, 100).Return(groupSlot(100, 2), nil).Once()
	m.bookings.On("GetBookedRow", mock.Anything, 5, 100).Return(b, nil).Once()
	m.repo.On("CreateAttendance", mock.Anything, 5, 100, 2).Return(false, nil).Once()

	err := r.MarkAttended(context.Background(), 2, 5, 100, nil)
	assert.NoError(t, err)

	// Повторная отметка не имеет никаких побочных эффектов.
	m.slots.AssertNotCalled(t, "MarkPresence", mock.Anything, mock.Anything)
	m.users.AssertNotCalled(t, "IncrementLifetimeVisits", mock.Anything, mock.Anything)
	m.bookings.AssertNotCalled(t, "UpdateBookingStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRecorder_MarkAttended_ForeignSlotForbidden(t *testing.T) {
	r, m := newRecorder()

	m.slots.On("Get", mock.Anything, 100).Return(groupSlot(100, 9), nil).Once()

	err := r.MarkAttended(context.Background(), 2, 5, 100, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)

	m.repo.AssertNotCalled(t, "CreateAttendance",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecorder_MarkAttended_WalkInDebitsLate(t *testing.T) {
	r, m := newRecorder()

	sub := &models.Subscription{ID: 7, UserID: 5, VisitsRemaining: intPtr(3)}
	m.slots.On("Get", mock.Anything, 200).Return(individualSlot(200, 2), nil).Once()
	m.bookings.On("GetBookedRow", mock.Anything, 5, 200).
		Return(nil, models.ErrBookingNotFound).Once()
	m.repo.On("CreateAttendance", mock.Anything, 5, 200, 2).Return(true, nil).Once()
	m.slots.On("MarkPresence", mock.Anything, 200).Return(true, nil).Once()
	m.users.On("IncrementLifetimeVisits", mock.Anything, 5).Return(3, nil).Once()
	m.users.On("UpdateDiscountPercent", mock.Anything, 5, 0).Return(nil).Once()
	m.ledger.On("FindEligible", mock.Anything, 5, models.CategoryGym).
		Return([]*models.Subscription{sub}, nil).Once()
	m.ledger.On("DebitVisit", mock.Anything, sub).Return(nil).Once()
	m.events.On("Publish", "attendance.marked", mock.Anything).Return(nil).Once()

	err := r.MarkAttended(context.Background(), 2, 5, 200, nil)
	assert.NoError(t, err)

	m.ledger.AssertExpectations(t)
}

func TestRecorder_MarkAttended_DebitFailureCompensates(t *testing.T) {
	r, m := newRecorder()

	b := &models.Booking{ID: 33, UserID: 5, ScheduleID: 200,
		Status: models.BookingStatusBooked, VisitDebited: false}
	sub := &models.Subscription{ID: 7, UserID: 5, VisitsRemaining: intPtr(1)}

	m.slots.On("Get", mock.Anything, 200).Return(individualSlot(200, 2), nil).Once()
	m.bookings.On("GetBookingForUser", mock.Anything, 33, 5).Return(b, nil).Once()
	m.repo.On("CreateAttendance", mock.Anything, 5, 200, 2).Return(true, nil).Once()
	m.bookings.On("UpdateBookingStatus", mock.Anything, 33,
		models.BookingStatusBooked, models.BookingStatusAttended).Return(true, nil).Once()
	m.users.On("IncrementLifetimeVisits", mock.Anything, 5).Return(4, nil).Once()
	m.users.On("UpdateDiscountPercent", mock.Anything, 5, 0).Return(nil).Once()
	m.ledger.On("FindEligible", mock.Anything, 5, models.CategoryGym).
		Return([]*models.Subscription{sub}, nil).Once()
	m.ledger.On("DebitForBooking", mock.Anything, sub, 33).
		Return(models.ErrNoEligibleSubscription).Once()

	// Компенсации в обратном порядке.
	m.users.On("DecrementLifetimeVisits", mock.Anything, 5).Return(nil).Once()
	m.bookings.On("UpdateBookingStatus", mock.Anything, 33,
		models.BookingStatusAttended, models.BookingStatusBooked).Return(true, nil).Once()
	m.repo.On("DeleteAttendance", mock.Anything, 5, 200).Return(true, nil).Once()

	err := r.MarkAttended(context.Background(), 2, 5, 200, intPtr(33))
	assert.ErrorIs(t, err, models.ErrNoEligibleSubscription)

	m.users.AssertExpectations(t)
	m.bookings.AssertExpectations(t)
	m.repo.AssertExpectations(t)
	m.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRecorder_MarkAttended_WalkInWithoutSubscriptionStillCounts(t *testing.T) {
	r, m := newRecorder()

	m.slots.On("Get", mock.Anything, 200).Return(individualSlot(200, 2), nil).Once()
	m.bookings.On("GetBookedRow", mock.Anything, 5, 200).
		Return(nil, models.ErrBookingNotFound).Once()
	m.repo.On("CreateAttendance", mock.Anything, 5, 200, 2).Return(true, nil).Once()
	m.slots.On("MarkPresence", mock.Anything, 200).Return(true, nil).Once()
	m.users.On("IncrementLifetimeVisits", mock.Anything, 5).Return(1, nil).Once()
	m.users.On("UpdateDiscountPercent", mock.Anything, 5, 0).Return(nil).Once()
	m.ledger.On("FindEligible", mock.Anything, 5, models.CategoryGym).
		Return([]*models.Subscription{}, nil).Once()
	m.events.On("Publish", "attendance.marked", mock.Anything).Return(nil).Once()

	// Посещение состоялось: отметка остается, даже если списывать нечего.
	err := r.MarkAttended(context.Background(), 2, 5, 200, nil)
	assert.NoError(t, err)

	m.ledger.AssertNotCalled(t, "DebitVisit", mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "DeleteAttendance", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecorder_UnmarkAttended(t *testing.T) {
	r, m := newRecorder()

	m.slots.On("Get", mock.Anything, 100).Return(groupSlot(100, 2), nil).Once()
	m.repo.On("DeleteAttendance", mock.Anything, 5, 100).Return(true, nil).Once()
	m.bookings.On("UpdateBookingStatus", mock.Anything, 31,
		models.BookingStatusAttended, models.BookingStatusBooked).Return(true, nil).Once()

	err := r.UnmarkAttended(context.Background(), 2, 5, 100, intPtr(31))
	assert.NoError(t, err)

	// Возвращенная в booked бронь продолжает держать место — счетчик
	// не уменьшается. Счетчик посещений и списанный визит тоже не трогаются.
	m.slots.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.users.AssertNotCalled(t, "DecrementLifetimeVisits", mock.Anything, mock.Anything)
	m.ledger.AssertNotCalled(t, "DebitVisit", mock.Anything, mock.Anything)
	m.bookings.AssertExpectations(t)
}

func TestRecorder_UnmarkAttended_WalkInReleasesSeat(t *testing.T) {
	r, m := newRecorder()

	m.slots.On("Get", mock.Anything, 200).Return(individualSlot(200, 2), nil).Once()
	m.repo.On("DeleteAttendance", mock.Anything, 5, 200).Return(true, nil).Once()
	m.bookings.On("GetAttendedRow", mock.Anything, 5, 200).
		Return(nil, models.ErrBookingNotFound).Once()
	// Визит без брони был посчитан при отметке — место освобождается.
	m.slots.On("Release", mock.Anything, 200).Return(nil).Once()

	err := r.UnmarkAttended(context.Background(), 2, 5, 200, nil)
	assert.NoError(t, err)

	m.slots.AssertExpectations(t)
}

func TestRecorder_BookedSlot_MarkUnmarkKeepsCounter(t *testing.T) {
	r, m := newRecorder()

	// Индивидуальный слот полностью занят бронью: отметка и снятие отметки
	// не должны менять живой счетчик — иначе место брони утекает и слот
	// можно забронировать повторно при живой записи.
	slot := individualSlot(200, 2)
	slot.CurrentParticipants = 1
	b := &models.Booking{ID: 33, UserID: 5, ScheduleID: 200,
		Status: models.BookingStatusBooked, VisitDebited: true}

	m.slots.On("Get", mock.Anything, 200).Return(slot, nil).Twice()
	m.bookings.On("GetBookedRow", mock.Anything, 5, 200).Return(b, nil).Once()
	m.repo.On("CreateAttendance", mock.Anything, 5, 200, 2).Return(true, nil).Once()
	m.bookings.On("UpdateBookingStatus", mock.Anything, 33,
		models.BookingStatusBooked, models.BookingStatusAttended).Return(true, nil).Once()
	m.users.On("IncrementLifetimeVisits", mock.Anything, 5).Return(6, nil).Once()
	m.users.On("UpdateDiscountPercent", mock.Anything, 5, 0).Return(nil).Once()
	m.events.On("Publish", "attendance.marked", mock.Anything).Return(nil).Once()

	m.repo.On("DeleteAttendance", mock.Anything, 5, 200).Return(true, nil).Once()
	m.bookings.On("GetAttendedRow", mock.Anything, 5, 200).Return(
		&models.Booking{ID: 33, UserID: 5, ScheduleID: 200,
			Status: models.BookingStatusAttended, VisitDebited: true}, nil).Once()
	m.bookings.On("UpdateBookingStatus", mock.Anything, 33,
		models.BookingStatusAttended, models.BookingStatusBooked).Return(true, nil).Once()

	err := r.MarkAttended(context.Background(), 2, 5, 200, nil)
	assert.NoError(t, err)
	err = r.UnmarkAttended(context.Background(), 2, 5, 200, nil)
	assert.NoError(t, err)

	m.slots.AssertNotCalled(t, "MarkPresence", mock.Anything, mock.Anything)
	m.slots.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.bookings.AssertExpectations(t)
}

func TestRecorder_UnmarkAttended_MissingIsNoop(t *testing.T) {
	r, m := newRecorder()

	m.slots.On("Get", mock.Anything, 100).Return(groupSlot(100, 2), nil).Once()
	m.repo.On("DeleteAttendance", mock.Anything, 5, 100).Return(false, nil).Once()

	err := r.UnmarkAttended(context.Background(), 2, 5, 100, nil)
	assert.NoError(t, err)

	m.slots.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestRecorder_UnmarkAttended_ForeignSlotForbidden(t *testing.T) {
	r, m := newRecorder()

	m.slots.On("Get", mock.Anything, 100).Return(groupSlot(100, 9), nil).Once()

	err := r.UnmarkAttended(context.Background(), 2, 5, 100, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)

	m.repo.AssertNotCalled(t, "DeleteAttendance", mock.Anything, mock.Anything, mock.Anything)
}
