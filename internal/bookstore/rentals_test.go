package bookstore

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/ButyrinIA/bookblog/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysLeft(t *testing.T) {
	end := testStart.Add(30 * day)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"начало аренды", testStart, 30},
		{"ровно два дня", end.Add(-2 * day), 2},
		{"чуть больше двух дней", end.Add(-2*day - time.Minute), 3},
		{"последний час", end.Add(-time.Hour), 1},
		{"момент окончания", end, 0},
		{"через час после окончания", end.Add(time.Hour), 0},
		{"через день после окончания", end.Add(day), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysLeft(end, tt.now))
		})
	}
}

func TestRent_Month(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rental, err := s.Rent(ctx, 1, models.PlanMonth)
	require.NoError(t, err)
	assert.Equal(t, testStart, rental.StartDate)
	assert.Equal(t, testStart.Add(30*24*time.Hour), rental.EndDate)
	assert.Equal(t, 350.0, rental.Price)
	assert.Equal(t, "Война и мир", rental.BookTitle)
	assert.False(t, rental.Notified)

	book, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRented, book.Status)
	assert.False(t, book.Available)
	assert.Equal(t, rental.ID, book.RentalID)

	// занятая книга не сдаётся и не продаётся
	_, err = s.Rent(ctx, 1, models.PlanTwoWeeks)
	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable))
	_, err = s.Purchase(ctx, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable))

	rentals, err := s.ListRentals(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 1)
	assert.Equal(t, 30, rentals[0].DaysLeft)
	assert.False(t, rentals[0].Expiring)
}

func TestRent_Errors(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Rent(ctx, 1, models.RentalPlan("rent-year"))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = s.Rent(ctx, 404, models.PlanMonth)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestPurchase_SoldIsUnavailable(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	sold, err := s.Purchase(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, sold.Status)

	before, err := s.Get(ctx, 3)
	require.NoError(t, err)

	_, err = s.Purchase(ctx, 3)
	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable))

	after, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = s.Purchase(ctx, 404)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSweep_ReminderFiresOnce(t *testing.T) {
	s, c, rec := newTestStore(t)
	ctx := context.Background()

	rental, err := s.Rent(ctx, 1, models.PlanMonth)
	require.NoError(t, err)

	c.Set(testStart.Add(28 * day))
	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, res.Reminded, 1)
	assert.Equal(t, rental.ID, res.Reminded[0].RentalID)
	assert.Equal(t, 2, res.Reminded[0].DaysLeft)
	assert.Empty(t, res.Reclaimed)

	rentals, err := s.ListRentals(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 1)
	assert.True(t, rentals[0].Notified)
	assert.True(t, rentals[0].Expiring)

	c.Set(testStart.Add(29 * day))
	res, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Reminded)
	assert.Equal(t, []string{TopicReminders}, rec.topics)
}

func TestSweep_ReclaimIsIdempotent(t *testing.T) {
	s, _, rec := newTestStore(t)
	ctx := context.Background()

	rental, err := s.Rent(ctx, 1, models.PlanMonth)
	require.NoError(t, err)

	res, err := s.SweepAt(ctx, testStart.Add(31*day))
	require.NoError(t, err)
	require.Len(t, res.Reclaimed, 1)
	assert.Equal(t, rental.ID, res.Reclaimed[0].ID)

	book, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, book.Status)
	assert.True(t, book.Available)
	assert.Empty(t, book.RentalID)

	rentals, err := s.ListRentals(ctx)
	require.NoError(t, err)
	assert.Empty(t, rentals)

	res, err = s.SweepAt(ctx, testStart.Add(32*day))
	require.NoError(t, err)
	assert.Empty(t, res.Reclaimed)
	assert.Empty(t, res.Reminded)
	assert.Equal(t, []string{TopicReclaimed}, rec.topics)

	// освобождённую книгу снова можно взять
	_, err = s.Rent(ctx, 1, models.PlanTwoWeeks)
	assert.NoError(t, err)
}

func TestSweep_OverdueWithoutReminderSkipsNotification(t *testing.T) {
	s, _, rec := newTestStore(t)
	ctx := context.Background()

	_, err := s.Rent(ctx, 5, models.PlanTwoWeeks)
	require.NoError(t, err)

	res, err := s.SweepAt(ctx, testStart.Add(20*day))
	require.NoError(t, err)
	assert.Empty(t, res.Reminded)
	assert.Len(t, res.Reclaimed, 1)
	assert.Equal(t, []string{TopicReclaimed}, rec.topics)
}

func TestSweep_NothingToDo(t *testing.T) {
	s, _, rec := newTestStore(t)
	ctx := context.Background()

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Reminded)
	assert.Empty(t, res.Reclaimed)

	_, err = s.Rent(ctx, 1, models.PlanThreeMonths)
	require.NoError(t, err)
	res, err = s.SweepAt(ctx, testStart.Add(10*day))
	require.NoError(t, err)
	assert.Empty(t, res.Reminded)
	assert.Empty(t, rec.topics)
}

func TestRent_RollsBackWhenBookWriteFails(t *testing.T) {
	st := &failingStore{MemoryStorage: memory.New()}
	s, _, _ := newTestStoreWith(t, st)
	ctx := context.Background()

	st.failOn(KeyBooks)
	_, err := s.Rent(ctx, 1, models.PlanMonth)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)

	st.failOn("")
	rentals, err := s.ListRentals(ctx)
	require.NoError(t, err)
	assert.Empty(t, rentals)

	book, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, book.Available)
}

func TestSweep_RollsBackWhenRentalWriteFails(t *testing.T) {
	st := &failingStore{MemoryStorage: memory.New()}
	s, _, _ := newTestStoreWith(t, st)
	ctx := context.Background()

	_, err := s.Rent(ctx, 1, models.PlanTwoWeeks)
	require.NoError(t, err)

	st.failOn(KeyRentals)
	_, err = s.SweepAt(ctx, testStart.Add(15*day))
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))

	st.failOn("")
	book, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRented, book.Status)

	res, err := s.SweepAt(ctx, testStart.Add(15*day))
	require.NoError(t, err)
	assert.Len(t, res.Reclaimed, 1)
}
