package graphql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/ButyrinIA/bookblog/internal/confirm"
	"github.com/ButyrinIA/bookblog/internal/events"
	"github.com/ButyrinIA/bookblog/internal/models"
)

// Resolver - основная структура, реализующая ResolverRoot
type Resolver struct {
	Blog    *blog.Blog
	Books   *bookstore.Store
	Prompts *confirm.Registry
	Hub     *events.Hub
	Issuer  *auth.Issuer
	Logger  *slog.Logger
}

// queryResolver реализует QueryResolver
type queryResolver struct{ *Resolver }

// mutationResolver реализует MutationResolver
type mutationResolver struct{ *Resolver }

// subscriptionResolver реализует SubscriptionResolver поверх событий Hub
type subscriptionResolver struct{ *Resolver }

type postResolver struct{ *Resolver }

type commentResolver struct{ *Resolver }

type accessRequestResolver struct{ *Resolver }

// NewResolver создает новый Resolver
func NewResolver(b *blog.Blog, books *bookstore.Store, prompts *confirm.Registry, hub *events.Hub, issuer *auth.Issuer) *Resolver {
	return &Resolver{
		Blog:    b,
		Books:   books,
		Prompts: prompts,
		Hub:     hub,
		Issuer:  issuer,
		Logger:  slog.Default(),
	}
}

// Query возвращает QueryResolver
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

// Mutation возвращает MutationResolver
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

// Subscription возвращает SubscriptionResolver
func (r *Resolver) Subscription() SubscriptionResolver { return &subscriptionResolver{r} }

// Post возвращает PostResolver
func (r *Resolver) Post() PostResolver { return &postResolver{r} }

func (r *Resolver) Comment() CommentResolver { return &commentResolver{r} }

func (r *Resolver) AccessRequest() AccessRequestResolver { return &accessRequestResolver{r} }

func currentUser(ctx context.Context) (string, error) {
	id := auth.UserIDFromContext(ctx)
	if id == "" {
		return "", apperr.Unauthenticated("authorization required")
	}
	return id, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// sweep сверяет аренды перед чтением каталога; ошибка только логируется.
func (r *Resolver) sweep(ctx context.Context) {
	if _, err := r.Books.Sweep(ctx); err != nil {
		r.Logger.Error("rental sweep failed", "error", err)
	}
}

func bookView(b *models.Book) *bookstore.BookView {
	return &bookstore.BookView{Book: *b, Available: b.Available()}
}

// Me реализует запрос me
func (r *queryResolver) Me(ctx context.Context) (*User, error) {
	id := auth.UserIDFromContext(ctx)
	if id == "" {
		return nil, nil
	}
	u, err := r.Blog.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUser(u), nil
}

// Users реализует запрос users: все, кроме текущего, с признаком подписки
func (r *queryResolver) Users(ctx context.Context) ([]*User, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	users, err := r.Blog.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := r.Blog.Subscriptions.List(ctx, me)
	if err != nil {
		return nil, err
	}
	subscribed := make(map[string]bool, len(subs))
	for _, id := range subs {
		subscribed[id] = true
	}

	result := []*User{}
	for i := range users {
		if users[i].ID == me {
			continue
		}
		u := toUser(&users[i])
		flag := subscribed[u.ID]
		u.Subscribed = &flag
		result = append(result, u)
	}
	return result, nil
}

// Feed реализует запрос feed
func (r *queryResolver) Feed(ctx context.Context, kind string, tag *string) ([]blog.PostView, error) {
	return r.Blog.Posts.Feed(ctx, blog.FeedKind(kind), auth.UserIDFromContext(ctx), deref(tag))
}

// Post реализует запрос post
func (r *queryResolver) Post(ctx context.Context, id string) (*blog.PostView, error) {
	return r.Blog.Posts.View(ctx, id, auth.UserIDFromContext(ctx))
}

func (r *queryResolver) Tags(ctx context.Context) ([]string, error) {
	return r.Blog.Posts.Tags(ctx)
}

// Subscriptions реализует запрос subscriptions
func (r *queryResolver) Subscriptions(ctx context.Context) ([]*User, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := r.Blog.Subscriptions.List(ctx, me)
	if err != nil {
		return nil, err
	}
	users, err := r.Blog.Users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := []*User{}
	for _, id := range ids {
		if u, ok := users[id]; ok {
			result = append(result, toUser(u))
		}
	}
	return result, nil
}

// AccessRequests реализует запрос accessRequests, доступный автору поста
func (r *queryResolver) AccessRequests(ctx context.Context, postID string) ([]models.AccessRequest, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return r.Blog.Requests.ListByPost(ctx, me, postID)
}

// Books реализует запрос books
func (r *queryResolver) Books(ctx context.Context, category, author *string, year *int) ([]bookstore.BookView, error) {
	r.sweep(ctx)
	return r.Resolver.Books.List(ctx, bookstore.Filter{
		Category: deref(category),
		Author:   deref(author),
		Year:     deref(year),
	})
}

// Book реализует запрос book
func (r *queryResolver) Book(ctx context.Context, id int64) (*bookstore.BookView, error) {
	return r.Resolver.Books.Get(ctx, id)
}

func (r *queryResolver) Facets(ctx context.Context) (*bookstore.Facets, error) {
	return r.Resolver.Books.Facets(ctx)
}

// Rentals реализует запрос rentals
func (r *queryResolver) Rentals(ctx context.Context) ([]bookstore.RentalView, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	r.sweep(ctx)
	return r.Resolver.Books.ListRentals(ctx)
}

func (r *mutationResolver) issue(u *models.User) (*AuthPayload, error) {
	token, err := r.Issuer.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	return &AuthPayload{Token: token, User: toUser(u)}, nil
}

// Register реализует мутацию register
func (r *mutationResolver) Register(ctx context.Context, username, password string, email *string) (*AuthPayload, error) {
	u, err := r.Blog.Users.Register(ctx, blog.RegisterInput{
		Username: username,
		Password: password,
		Email:    deref(email),
	})
	if err != nil {
		return nil, err
	}
	return r.issue(u)
}

// Login реализует мутацию login
func (r *mutationResolver) Login(ctx context.Context, username, password string) (*AuthPayload, error) {
	u, err := r.Blog.Users.Login(ctx, blog.LoginInput{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return r.issue(u)
}

// CreatePost реализует мутацию createPost
func (r *mutationResolver) CreatePost(ctx context.Context, input blog.PostInput) (*blog.PostView, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	post, err := r.Blog.Posts.Create(ctx, me, input)
	if err != nil {
		return nil, err
	}
	return r.Blog.Posts.View(ctx, post.ID, me)
}

// UpdatePost реализует мутацию updatePost
func (r *mutationResolver) UpdatePost(ctx context.Context, id string, input blog.PostInput) (*blog.PostView, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.Blog.Posts.Update(ctx, me, id, input); err != nil {
		return nil, err
	}
	return r.Blog.Posts.View(ctx, id, me)
}

// DeletePost открывает подтверждение удаления; пост удаляется ответом
// answerPrompt(confirm: true).
func (r *mutationResolver) DeletePost(ctx context.Context, id string) (*confirm.Prompt, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	post, err := r.Blog.Posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != me {
		return nil, apperr.Forbidden("only the author can delete the post")
	}
	return r.Prompts.Ask(me, "Удаление поста",
		fmt.Sprintf("Вы уверены, что хотите удалить пост %q? Это действие нельзя отменить.", post.Title),
		func(ctx context.Context) error {
			return r.Blog.Posts.Delete(ctx, me, id)
		}), nil
}

// AddComment реализует мутацию addComment
func (r *mutationResolver) AddComment(ctx context.Context, postID, text string) (*models.Comment, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return r.Blog.Comments.Add(ctx, postID, me, blog.CommentInput{Text: text})
}

// RequestAccess реализует мутацию requestAccess
func (r *mutationResolver) RequestAccess(ctx context.Context, postID string, message *string) (*models.AccessRequest, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	req, _, err := r.Blog.Requests.Request(ctx, postID, me, blog.RequestInput{Message: deref(message)})
	return req, err
}

// ApproveRequest реализует мутацию approveRequest
func (r *mutationResolver) ApproveRequest(ctx context.Context, postID, requestID string) (*models.AccessRequest, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return r.Blog.Requests.Approve(ctx, me, postID, requestID)
}

// Subscribe реализует мутацию subscribe
func (r *mutationResolver) Subscribe(ctx context.Context, userID string) (bool, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return false, err
	}
	if err := r.Blog.Subscriptions.Subscribe(ctx, me, userID); err != nil {
		return false, err
	}
	return true, nil
}

func (r *mutationResolver) Unsubscribe(ctx context.Context, userID string) (bool, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return false, err
	}
	if err := r.Blog.Subscriptions.Unsubscribe(ctx, me, userID); err != nil {
		return false, err
	}
	return true, nil
}

// AddBook реализует мутацию addBook
func (r *mutationResolver) AddBook(ctx context.Context, input bookstore.BookInput) (*bookstore.BookView, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	b, err := r.Books.Add(ctx, input)
	if err != nil {
		return nil, err
	}
	return bookView(b), nil
}

func (r *mutationResolver) UpdateBook(ctx context.Context, id int64, input bookstore.BookInput) (*bookstore.BookView, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	b, err := r.Books.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	return bookView(b), nil
}

// DeleteBook открывает подтверждение удаления книги
func (r *mutationResolver) DeleteBook(ctx context.Context, id int64) (*confirm.Prompt, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	book, err := r.Books.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Prompts.Ask(me, "Удаление книги",
		fmt.Sprintf("Вы уверены, что хотите удалить книгу %q?", book.Title),
		func(ctx context.Context) error {
			return r.Books.Delete(ctx, id)
		}), nil
}

// Purchase реализует мутацию purchase
func (r *mutationResolver) Purchase(ctx context.Context, bookID int64) (*bookstore.BookView, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	b, err := r.Books.Purchase(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return bookView(b), nil
}

// Rent реализует мутацию rent
func (r *mutationResolver) Rent(ctx context.Context, bookID int64, plan string) (*models.Rental, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	return r.Books.Rent(ctx, bookID, models.RentalPlan(plan))
}

// Sweep запускает проход по арендам вне расписания
func (r *mutationResolver) Sweep(ctx context.Context) (*bookstore.SweepResult, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}
	return r.Books.Sweep(ctx)
}

// AnswerPrompt отвечает на подтверждение; true означает, что действие выполнено
func (r *mutationResolver) AnswerPrompt(ctx context.Context, id string, yes bool) (bool, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return false, err
	}
	return r.Prompts.Answer(ctx, id, me, yes)
}

func (r *mutationResolver) DismissPrompt(ctx context.Context, id string) (bool, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return false, err
	}
	if err := r.Prompts.Dismiss(id, me); err != nil {
		return false, err
	}
	return true, nil
}

// Reminders реализует подписку reminders
func (r *subscriptionResolver) Reminders(ctx context.Context) (<-chan events.Event, error) {
	return r.Hub.Subscribe(ctx, bookstore.TopicReminders), nil
}

// Reclaimed реализует подписку reclaimed
func (r *subscriptionResolver) Reclaimed(ctx context.Context) (<-chan events.Event, error) {
	return r.Hub.Subscribe(ctx, bookstore.TopicReclaimed), nil
}

// CommentAdded реализует подписку commentAdded для тех, кто видит пост
func (r *subscriptionResolver) CommentAdded(ctx context.Context, postID string) (<-chan events.Event, error) {
	ok, err := r.Blog.Requests.CanView(ctx, postID, auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("cannot subscribe to comments of post %s", postID)
	}
	return r.Hub.Subscribe(ctx, blog.CommentsTopic(postID)), nil
}

// AccessRequested реализует подписку accessRequested: запросы к постам текущего автора
func (r *subscriptionResolver) AccessRequested(ctx context.Context) (<-chan events.Event, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return r.Hub.Subscribe(ctx, blog.RequestsTopic(me)), nil
}

// AccessApproved реализует подписку accessApproved: одобрения запросов текущего пользователя
func (r *subscriptionResolver) AccessApproved(ctx context.Context) (<-chan events.Event, error) {
	me, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return r.Hub.Subscribe(ctx, blog.AccessTopic(me)), nil
}

// Author реализует поле Post.author через загрузчик
func (r *postResolver) Author(ctx context.Context, obj *blog.PostView) (*User, error) {
	return loadUser(ctx, obj.AuthorID)
}

// HTML - текст поста в HTML; пуст, если читать пост нельзя
func (r *postResolver) HTML(ctx context.Context, obj *blog.PostView) (string, error) {
	html, err := RenderMarkdown(obj.Content)
	if err != nil {
		return "", fmt.Errorf("render post %s: %w", obj.ID, err)
	}
	return html, nil
}

// Comments реализует поле Post.comments; для скрытого поста список пуст
func (r *postResolver) Comments(ctx context.Context, obj *blog.PostView) ([]models.Comment, error) {
	if !obj.CanView {
		return []models.Comment{}, nil
	}
	return r.Blog.Comments.ListByPost(ctx, obj.ID, auth.UserIDFromContext(ctx))
}

func (r *commentResolver) Author(ctx context.Context, obj *models.Comment) (*User, error) {
	return loadUser(ctx, obj.AuthorID)
}

func (r *accessRequestResolver) User(ctx context.Context, obj *models.AccessRequest) (*User, error) {
	return loadUser(ctx, obj.UserID)
}
