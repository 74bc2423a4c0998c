package confirm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *clock.Manual) {
	c := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewRegistry(time.Minute, c, slog.New(slog.NewTextHandler(io.Discard, nil))), c
}

func TestAnswer_YesRunsActionOnce(t *testing.T) {
	r, _ := newTestRegistry()
	calls := 0
	p := r.Ask("u1", "Удаление книги", "Удалить?", func(ctx context.Context) error {
		calls++
		return nil
	})

	ok, err := r.Answer(context.Background(), p.ID, "u1", true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	<-p.Done()
	assert.True(t, p.Confirmed())

	// повторный ответ невозможен
	_, err = r.Answer(context.Background(), p.ID, "u1", true)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, 1, calls)
}

func TestAnswer_NoAndDismissResolveFalse(t *testing.T) {
	r, _ := newTestRegistry()
	action := func(ctx context.Context) error {
		t.Fatal("действие не должно выполняться")
		return nil
	}

	p := r.Ask("u1", "t", "m", action)
	ok, err := r.Answer(context.Background(), p.ID, "u1", false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, p.Confirmed())

	p = r.Ask("u1", "t", "m", action)
	require.NoError(t, r.Dismiss(p.ID, "u1"))
	<-p.Done()
	assert.False(t, p.Confirmed())
	assert.Equal(t, 0, r.Pending())
}

func TestAnswer_ActionError(t *testing.T) {
	r, _ := newTestRegistry()
	p := r.Ask("u1", "t", "m", func(ctx context.Context) error { return errors.New("boom") })

	ok, err := r.Answer(context.Background(), p.ID, "u1", true)
	assert.EqualError(t, err, "boom")
	assert.False(t, ok)
	assert.False(t, p.Confirmed())
}

func TestAnswer_OtherOwner(t *testing.T) {
	r, _ := newTestRegistry()
	p := r.Ask("u1", "t", "m", func(ctx context.Context) error { return nil })

	_, err := r.Answer(context.Background(), p.ID, "u2", true)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	assert.Equal(t, 1, r.Pending())
}

func TestExpiry(t *testing.T) {
	r, c := newTestRegistry()
	p := r.Ask("u1", "t", "m", func(ctx context.Context) error { return nil })

	c.Advance(2 * time.Minute)
	_, err := r.Answer(context.Background(), p.ID, "u1", true)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.False(t, p.Confirmed())

	p = r.Ask("u1", "t", "m", func(ctx context.Context) error { return nil })
	assert.Equal(t, 0, r.Expire(c.Now()))
	assert.Equal(t, 1, r.Expire(c.Now().Add(time.Minute)))
	<-p.Done()
	assert.False(t, p.Confirmed())
	assert.Equal(t, 0, r.Pending())
}
