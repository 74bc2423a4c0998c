package graphql

import (
	"context"

	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/ButyrinIA/bookblog/internal/confirm"
	"github.com/ButyrinIA/bookblog/internal/events"
	"github.com/ButyrinIA/bookblog/internal/models"
)

// ResolverRoot - корень резолверов схемы
type ResolverRoot interface {
	Query() QueryResolver
	Mutation() MutationResolver
	Subscription() SubscriptionResolver
	Post() PostResolver
	Comment() CommentResolver
	AccessRequest() AccessRequestResolver
}

// QueryResolver - резолверы запросов
type QueryResolver interface {
	Me(ctx context.Context) (*User, error)
	Users(ctx context.Context) ([]*User, error)
	Feed(ctx context.Context, kind string, tag *string) ([]blog.PostView, error)
	Post(ctx context.Context, id string) (*blog.PostView, error)
	Tags(ctx context.Context) ([]string, error)
	Subscriptions(ctx context.Context) ([]*User, error)
	AccessRequests(ctx context.Context, postID string) ([]models.AccessRequest, error)
	Books(ctx context.Context, category, author *string, year *int) ([]bookstore.BookView, error)
	Book(ctx context.Context, id int64) (*bookstore.BookView, error)
	Facets(ctx context.Context) (*bookstore.Facets, error)
	Rentals(ctx context.Context) ([]bookstore.RentalView, error)
}

// MutationResolver - резолверы мутаций
type MutationResolver interface {
	Register(ctx context.Context, username, password string, email *string) (*AuthPayload, error)
	Login(ctx context.Context, username, password string) (*AuthPayload, error)
	CreatePost(ctx context.Context, input blog.PostInput) (*blog.PostView, error)
	UpdatePost(ctx context.Context, id string, input blog.PostInput) (*blog.PostView, error)
	DeletePost(ctx context.Context, id string) (*confirm.Prompt, error)
	AddComment(ctx context.Context, postID, text string) (*models.Comment, error)
	RequestAccess(ctx context.Context, postID string, message *string) (*models.AccessRequest, error)
	ApproveRequest(ctx context.Context, postID, requestID string) (*models.AccessRequest, error)
	Subscribe(ctx context.Context, userID string) (bool, error)
	Unsubscribe(ctx context.Context, userID string) (bool, error)
	AddBook(ctx context.Context, input bookstore.BookInput) (*bookstore.BookView, error)
	UpdateBook(ctx context.Context, id int64, input bookstore.BookInput) (*bookstore.BookView, error)
	DeleteBook(ctx context.Context, id int64) (*confirm.Prompt, error)
	Purchase(ctx context.Context, bookID int64) (*bookstore.BookView, error)
	Rent(ctx context.Context, bookID int64, plan string) (*models.Rental, error)
	Sweep(ctx context.Context) (*bookstore.SweepResult, error)
	AnswerPrompt(ctx context.Context, id string, yes bool) (bool, error)
	DismissPrompt(ctx context.Context, id string) (bool, error)
}

// SubscriptionResolver - резолверы подписок; каналы закрываются с отменой ctx
type SubscriptionResolver interface {
	Reminders(ctx context.Context) (<-chan events.Event, error)
	Reclaimed(ctx context.Context) (<-chan events.Event, error)
	CommentAdded(ctx context.Context, postID string) (<-chan events.Event, error)
	AccessRequested(ctx context.Context) (<-chan events.Event, error)
	AccessApproved(ctx context.Context) (<-chan events.Event, error)
}

// PostResolver - вычисляемые поля Post
type PostResolver interface {
	Author(ctx context.Context, obj *blog.PostView) (*User, error)
	HTML(ctx context.Context, obj *blog.PostView) (string, error)
	Comments(ctx context.Context, obj *blog.PostView) ([]models.Comment, error)
}

type CommentResolver interface {
	Author(ctx context.Context, obj *models.Comment) (*User, error)
}

type AccessRequestResolver interface {
	User(ctx context.Context, obj *models.AccessRequest) (*User, error)
}

// as приводит родительский объект поля к ожидаемому типу.
func as[T any](obj any) *T {
	switch v := obj.(type) {
	case *T:
		return v
	case T:
		return &v
	}
	return nil
}

func bindFields(r ResolverRoot) map[string]map[string]fieldFunc {
	q, m := r.Query(), r.Mutation()
	post, comment, request := r.Post(), r.Comment(), r.AccessRequest()

	return map[string]map[string]fieldFunc{
		"Query": {
			"me": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return q.Me(ctx)
			},
			"users": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return q.Users(ctx)
			},
			"feed": func(ctx context.Context, _ any, a arguments) (any, error) {
				return q.Feed(ctx, a.str("kind"), a.optStr("tag"))
			},
			"post": func(ctx context.Context, _ any, a arguments) (any, error) {
				return q.Post(ctx, a.str("id"))
			},
			"tags": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return q.Tags(ctx)
			},
			"subscriptions": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return q.Subscriptions(ctx)
			},
			"accessRequests": func(ctx context.Context, _ any, a arguments) (any, error) {
				return q.AccessRequests(ctx, a.str("postId"))
			},
			"books": func(ctx context.Context, _ any, a arguments) (any, error) {
				return q.Books(ctx, a.optStr("category"), a.optStr("author"), a.optInt("year"))
			},
			"book": func(ctx context.Context, _ any, a arguments) (any, error) {
				return q.Book(ctx, a.integer("id"))
			},
			"facets": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return q.Facets(ctx)
			},
			"rentals": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return q.Rentals(ctx)
			},
		},
		"Mutation": {
			"register": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.Register(ctx, a.str("username"), a.str("password"), a.optStr("email"))
			},
			"login": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.Login(ctx, a.str("username"), a.str("password"))
			},
			"createPost": func(ctx context.Context, _ any, a arguments) (any, error) {
				var in blog.PostInput
				if err := a.decode("input", &in); err != nil {
					return nil, err
				}
				return m.CreatePost(ctx, in)
			},
			"updatePost": func(ctx context.Context, _ any, a arguments) (any, error) {
				var in blog.PostInput
				if err := a.decode("input", &in); err != nil {
					return nil, err
				}
				return m.UpdatePost(ctx, a.str("id"), in)
			},
			"deletePost": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.DeletePost(ctx, a.str("id"))
			},
			"addComment": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.AddComment(ctx, a.str("postId"), a.str("text"))
			},
			"requestAccess": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.RequestAccess(ctx, a.str("postId"), a.optStr("message"))
			},
			"approveRequest": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.ApproveRequest(ctx, a.str("postId"), a.str("requestId"))
			},
			"subscribe": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.Subscribe(ctx, a.str("userId"))
			},
			"unsubscribe": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.Unsubscribe(ctx, a.str("userId"))
			},
			"addBook": func(ctx context.Context, _ any, a arguments) (any, error) {
				var in bookstore.BookInput
				if err := a.decode("input", &in); err != nil {
					return nil, err
				}
				return m.AddBook(ctx, in)
			},
			"updateBook": func(ctx context.Context, _ any, a arguments) (any, error) {
				var in bookstore.BookInput
				if err := a.decode("input", &in); err != nil {
					return nil, err
				}
				return m.UpdateBook(ctx, a.integer("id"), in)
			},
			"deleteBook": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.DeleteBook(ctx, a.integer("id"))
			},
			"purchase": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.Purchase(ctx, a.integer("bookId"))
			},
			"rent": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.Rent(ctx, a.integer("bookId"), a.str("plan"))
			},
			"sweep": func(ctx context.Context, _ any, _ arguments) (any, error) {
				return m.Sweep(ctx)
			},
			"answerPrompt": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.AnswerPrompt(ctx, a.str("id"), a.boolean("confirm"))
			},
			"dismissPrompt": func(ctx context.Context, _ any, a arguments) (any, error) {
				return m.DismissPrompt(ctx, a.str("id"))
			},
		},
		"Post": {
			"author": func(ctx context.Context, obj any, _ arguments) (any, error) {
				return post.Author(ctx, as[blog.PostView](obj))
			},
			"html": func(ctx context.Context, obj any, _ arguments) (any, error) {
				return post.HTML(ctx, as[blog.PostView](obj))
			},
			"comments": func(ctx context.Context, obj any, _ arguments) (any, error) {
				return post.Comments(ctx, as[blog.PostView](obj))
			},
		},
		"Comment": {
			"author": func(ctx context.Context, obj any, _ arguments) (any, error) {
				return comment.Author(ctx, as[models.Comment](obj))
			},
		},
		"AccessRequest": {
			"user": func(ctx context.Context, obj any, _ arguments) (any, error) {
				return request.User(ctx, as[models.AccessRequest](obj))
			},
		},
	}
}

func bindStreams(s SubscriptionResolver) map[string]streamFunc {
	return map[string]streamFunc{
		"reminders": func(ctx context.Context, _ arguments) (<-chan events.Event, error) {
			return s.Reminders(ctx)
		},
		"reclaimed": func(ctx context.Context, _ arguments) (<-chan events.Event, error) {
			return s.Reclaimed(ctx)
		},
		"commentAdded": func(ctx context.Context, a arguments) (<-chan events.Event, error) {
			return s.CommentAdded(ctx, a.str("postId"))
		},
		"accessRequested": func(ctx context.Context, _ arguments) (<-chan events.Event, error) {
			return s.AccessRequested(ctx)
		},
		"accessApproved": func(ctx context.Context, _ arguments) (<-chan events.Event, error) {
			return s.AccessApproved(ctx)
		},
	}
}
