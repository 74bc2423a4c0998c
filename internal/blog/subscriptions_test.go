package blog

import (
	"context"
	"testing"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_Idempotent(t *testing.T) {
	b, _, _ := newTestBlog(t)
	ctx := context.Background()
	a := mustRegister(t, b, "alice")
	bob := mustRegister(t, b, "bob")
	carol := mustRegister(t, b, "carol")

	require.NoError(t, b.Subscriptions.Subscribe(ctx, a.ID, bob.ID))
	require.NoError(t, b.Subscriptions.Subscribe(ctx, a.ID, carol.ID))
	require.NoError(t, b.Subscriptions.Subscribe(ctx, a.ID, bob.ID))

	list, err := b.Subscriptions.List(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID, carol.ID}, list)

	ok, err := b.Subscriptions.IsSubscribed(ctx, a.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// подписка направленная
	ok, err = b.Subscriptions.IsSubscribed(ctx, bob.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b, _, _ := newTestBlog(t)
	ctx := context.Background()
	a := mustRegister(t, b, "alice")
	bob := mustRegister(t, b, "bob")
	carol := mustRegister(t, b, "carol")

	require.NoError(t, b.Subscriptions.Subscribe(ctx, a.ID, bob.ID))
	require.NoError(t, b.Subscriptions.Unsubscribe(ctx, a.ID, carol.ID))

	list, err := b.Subscriptions.List(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, list)

	require.NoError(t, b.Subscriptions.Unsubscribe(ctx, a.ID, bob.ID))
	require.NoError(t, b.Subscriptions.Unsubscribe(ctx, a.ID, bob.ID))

	list, err = b.Subscriptions.List(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubscribe_Errors(t *testing.T) {
	b, _, _ := newTestBlog(t)
	ctx := context.Background()
	a := mustRegister(t, b, "alice")

	err := b.Subscriptions.Subscribe(ctx, a.ID, a.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = b.Subscriptions.Subscribe(ctx, a.ID, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	err = b.Subscriptions.Subscribe(ctx, "", a.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
}
