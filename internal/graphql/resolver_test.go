package graphql

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/ButyrinIA/bookblog/internal/confirm"
	"github.com/ButyrinIA/bookblog/internal/events"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/ButyrinIA/bookblog/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	resolver *Resolver
	clock    *clock.Manual
	hub      *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(testStart)
	hub := events.NewHub(16)
	store := memory.New()

	books := bookstore.New(store, bookstore.Options{Clock: clk, Notifier: hub})
	_, err := books.Seed(context.Background())
	require.NoError(t, err)

	resolver := NewResolver(
		blog.New(store, blog.Options{Clock: clk, Notifier: hub}),
		books,
		confirm.NewRegistry(time.Minute, clk, nil),
		hub,
		auth.NewIssuer("test-secret", time.Hour, clk),
	)
	return &fixture{resolver: resolver, clock: clk, hub: hub}
}

// as возвращает контекст запроса от имени пользователя с загрузчиком.
func (f *fixture) as(userID string) context.Context {
	ctx := WithUserLoader(context.Background(), NewUserLoader(f.resolver.Blog.Users))
	if userID == "" {
		return ctx
	}
	return auth.WithUserID(ctx, userID)
}

func (f *fixture) register(t *testing.T, username string) *User {
	t.Helper()
	payload, err := f.resolver.Mutation().Register(context.Background(), username, "secret123", nil)
	require.NoError(t, err)
	require.NotEmpty(t, payload.Token)
	return payload.User
}

func TestRegisterAndMe(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	me, err := f.resolver.Query().Me(f.as(alice.ID))
	assert.NoError(t, err)
	require.NotNil(t, me)
	assert.Equal(t, "alice", me.Username)

	anonymous, err := f.resolver.Query().Me(f.as(""))
	assert.NoError(t, err)
	assert.Nil(t, anonymous)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	payload, err := f.resolver.Mutation().Login(context.Background(), "alice", "wrong-password")
	assert.Error(t, err)
	assert.Nil(t, payload)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
}

func TestCreatePost_RequiresLogin(t *testing.T) {
	f := newFixture(t)

	post, err := f.resolver.Mutation().CreatePost(f.as(""), blog.PostInput{Title: "t", Content: "c", IsPublic: true})
	assert.Error(t, err)
	assert.Nil(t, post)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := f.as(alice.ID)

	view, err := f.resolver.Mutation().CreatePost(ctx, blog.PostInput{
		Title:    "Тестовый пост",
		Content:  "**жирный** текст",
		Tags:     "go, книги",
		IsPublic: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Тестовый пост", view.Title)
	assert.Equal(t, []string{"go", "книги"}, view.Tags)
	assert.True(t, view.CanView)

	author, err := f.resolver.Post().Author(ctx, view)
	assert.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "alice", author.Username)

	html, err := f.resolver.Post().HTML(ctx, view)
	assert.NoError(t, err)
	assert.Contains(t, html, "<strong>жирный</strong>")
}

func TestAuthor_NoLoader(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	view, err := f.resolver.Mutation().CreatePost(f.as(alice.ID), blog.PostInput{Title: "t", Content: "c", IsPublic: true})
	require.NoError(t, err)

	author, err := f.resolver.Post().Author(auth.WithUserID(context.Background(), alice.ID), view)
	assert.Error(t, err)
	assert.Nil(t, author)
	assert.Equal(t, "userLoader not found in context", err.Error())
}

func TestComments_HiddenPost(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	view, err := f.resolver.Mutation().CreatePost(f.as(alice.ID), blog.PostInput{
		Title:         "Только по запросу",
		Content:       "секрет",
		IsRequestOnly: true,
	})
	require.NoError(t, err)
	_, err = f.resolver.Mutation().AddComment(f.as(alice.ID), view.ID, "первый")
	require.NoError(t, err)

	hidden, err := f.resolver.Query().Post(f.as(bob.ID), view.ID)
	require.NoError(t, err)
	assert.False(t, hidden.CanView)
	assert.True(t, hidden.CanRequest)

	comments, err := f.resolver.Post().Comments(f.as(bob.ID), hidden)
	assert.NoError(t, err)
	assert.Empty(t, comments)

	comments, err = f.resolver.Post().Comments(f.as(alice.ID), view)
	assert.NoError(t, err)
	require.Len(t, comments, 1)

	commenter, err := f.resolver.Comment().Author(f.as(alice.ID), &comments[0])
	assert.NoError(t, err)
	require.NotNil(t, commenter)
	assert.Equal(t, "alice", commenter.Username)
}

func TestRequestAndApproveAccess(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	view, err := f.resolver.Mutation().CreatePost(f.as(alice.ID), blog.PostInput{
		Title:         "Только по запросу",
		Content:       "секрет",
		IsRequestOnly: true,
	})
	require.NoError(t, err)

	message := "пусти"
	req, err := f.resolver.Mutation().RequestAccess(f.as(bob.ID), view.ID, &message)
	require.NoError(t, err)
	assert.False(t, req.Approved)

	requester, err := f.resolver.AccessRequest().User(f.as(alice.ID), req)
	assert.NoError(t, err)
	require.NotNil(t, requester)
	assert.Equal(t, "bob", requester.Username)

	_, err = f.resolver.Query().AccessRequests(f.as(bob.ID), view.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	pending, err := f.resolver.Query().AccessRequests(f.as(alice.ID), view.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := f.resolver.Mutation().ApproveRequest(f.as(alice.ID), view.ID, req.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	visible, err := f.resolver.Query().Post(f.as(bob.ID), view.ID)
	require.NoError(t, err)
	assert.True(t, visible.CanView)
	assert.Equal(t, "секрет", visible.Content)
}

func TestUsers_SubscribedFlag(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	f.register(t, "carol")

	ok, err := f.resolver.Mutation().Subscribe(f.as(alice.ID), bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	users, err := f.resolver.Query().Users(f.as(alice.ID))
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotNil(t, u.Subscribed)
		assert.Equal(t, u.ID == bob.ID, *u.Subscribed, u.Username)
	}

	subs, err := f.resolver.Query().Subscriptions(f.as(alice.ID))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "bob", subs[0].Username)

	_, err = f.resolver.Mutation().Unsubscribe(f.as(alice.ID), bob.ID)
	require.NoError(t, err)
	subs, err = f.resolver.Query().Subscriptions(f.as(alice.ID))
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestDeletePost_ConfirmedByPrompt(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	ctx := f.as(alice.ID)

	view, err := f.resolver.Mutation().CreatePost(ctx, blog.PostInput{Title: "t", Content: "c", IsPublic: true})
	require.NoError(t, err)

	_, err = f.resolver.Mutation().DeletePost(f.as(bob.ID), view.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	prompt, err := f.resolver.Mutation().DeletePost(ctx, view.ID)
	require.NoError(t, err)
	assert.Contains(t, prompt.Message, `"t"`)

	_, err = f.resolver.Query().Post(ctx, view.ID)
	assert.NoError(t, err)

	done, err := f.resolver.Mutation().AnswerPrompt(ctx, prompt.ID, true)
	require.NoError(t, err)
	assert.True(t, done)

	_, err = f.resolver.Query().Post(ctx, view.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDismissPrompt_KeepsBook(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := f.as(alice.ID)

	prompt, err := f.resolver.Mutation().DeleteBook(ctx, 1)
	require.NoError(t, err)

	ok, err := f.resolver.Mutation().DismissPrompt(ctx, prompt.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	book, err := f.resolver.Query().Book(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.ID)

	_, err = f.resolver.Mutation().AnswerPrompt(ctx, prompt.ID, true)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRentAndSweep(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := f.as(alice.ID)

	_, err := f.resolver.Mutation().Rent(f.as(""), 1, string(models.PlanTwoWeeks))
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))

	rental, err := f.resolver.Mutation().Rent(ctx, 1, string(models.PlanTwoWeeks))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rental.BookID)

	rentals, err := f.resolver.Query().Rentals(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 1)
	assert.Equal(t, rental.ID, rentals[0].ID)

	book, err := f.resolver.Query().Book(ctx, 1)
	require.NoError(t, err)
	assert.False(t, book.Available)

	f.clock.Advance(15 * 24 * time.Hour)
	result, err := f.resolver.Mutation().Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, result.Reclaimed, 1)
	assert.Equal(t, rental.ID, result.Reclaimed[0].ID)

	book, err = f.resolver.Query().Book(ctx, 1)
	require.NoError(t, err)
	assert.True(t, book.Available)
}

func TestBooks_Filter(t *testing.T) {
	f := newFixture(t)
	ctx := f.as("")

	facets, err := f.resolver.Query().Facets(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, facets.Categories)

	category := facets.Categories[0]
	books, err := f.resolver.Query().Books(ctx, &category, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, books)
	for _, b := range books {
		assert.Equal(t, category, b.Category)
	}
}

func TestCommentAdded_Subscription(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	hidden, err := f.resolver.Mutation().CreatePost(f.as(alice.ID), blog.PostInput{Title: "t", Content: "c", IsRequestOnly: true})
	require.NoError(t, err)

	_, err = f.resolver.Subscription().CommentAdded(f.as(bob.ID), hidden.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	ctx, cancel := context.WithCancel(f.as(alice.ID))
	defer cancel()
	ch, err := f.resolver.Subscription().CommentAdded(ctx, hidden.ID)
	require.NoError(t, err)

	comment, err := f.resolver.Mutation().AddComment(f.as(alice.ID), hidden.ID, "привет")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		got, ok := ev.Payload.(*models.Comment)
		require.True(t, ok)
		assert.Equal(t, comment.ID, got.ID)
		assert.Equal(t, "привет", got.Text)
	case <-time.After(time.Second):
		t.Fatal("comment event not delivered")
	}
}

func TestAccessRequested_RequiresLogin(t *testing.T) {
	f := newFixture(t)

	ch, err := f.resolver.Subscription().AccessRequested(f.as(""))
	assert.Error(t, err)
	assert.Nil(t, ch)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
}
