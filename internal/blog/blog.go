// Package blog реализует блог с подписками: пользователей, посты с
// правилами видимости, запросы доступа, подписки и комментарии.
// Все коллекции хранятся целыми снимками в storage.Storage.
package blog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/go-playground/validator/v10"
)

const (
	KeyUsers         = "blog_users"
	KeyPosts         = "blog_posts"
	KeySubscriptions = "blog_subscriptions"
	KeyRequests      = "blog_requests"
	KeyComments      = "blog_comments"
)

// Notifier получает доменные события; доставка не гарантируется.
type Notifier interface {
	Publish(topic string, payload any)
}

// Темы уведомлений блога.
func CommentsTopic(postID string) string   { return "comments:" + postID }
func RequestsTopic(authorID string) string { return "requests:" + authorID }
func AccessTopic(userID string) string     { return "access:" + userID }

type nopNotifier struct{}

func (nopNotifier) Publish(string, any) {}

// Options - зависимости Blog; пустые поля заменяются значениями по умолчанию
type Options struct {
	Clock    clock.Clock
	Logger   *slog.Logger
	Notifier Notifier
}

// core - общее состояние менеджеров. Один мьютекс на все коллекции блога:
// удаление поста и одобрение запроса затрагивают несколько ключей.
type core struct {
	store    storage.Storage
	mu       sync.RWMutex
	clock    clock.Clock
	log      *slog.Logger
	notifier Notifier
	validate *validator.Validate
}

// Blog объединяет менеджеры блога над одним хранилищем
type Blog struct {
	Users         *Users
	Posts         *Posts
	Requests      *Requests
	Subscriptions *Subscriptions
	Comments      *Comments
}

// New создает Blog над хранилищем store
func New(store storage.Storage, opts Options) *Blog {
	c := &core{
		store:    store,
		clock:    opts.Clock,
		log:      opts.Logger,
		notifier: opts.Notifier,
		validate: validator.New(),
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	return &Blog{
		Users:         &Users{c},
		Posts:         &Posts{c},
		Requests:      &Requests{c},
		Subscriptions: &Subscriptions{c},
		Comments:      &Comments{c},
	}
}

func load[T any](ctx context.Context, s storage.Storage, key string) (T, error) {
	var v T
	if _, err := storage.Load(ctx, s, key, &v); err != nil {
		return v, apperr.Storage(err, "load %s", key)
	}
	return v, nil
}

func save[T any](ctx context.Context, s storage.Storage, key string, v T) error {
	if err := storage.Save(ctx, s, key, v); err != nil {
		return apperr.Storage(err, "save %s", key)
	}
	return nil
}

func (c *core) users(ctx context.Context) ([]models.User, error) {
	return load[[]models.User](ctx, c.store, KeyUsers)
}

func (c *core) posts(ctx context.Context) ([]models.Post, error) {
	return load[[]models.Post](ctx, c.store, KeyPosts)
}

func (c *core) subscriptions(ctx context.Context) (map[string][]string, error) {
	subs, err := load[map[string][]string](ctx, c.store, KeySubscriptions)
	if subs == nil {
		subs = make(map[string][]string)
	}
	return subs, err
}

func (c *core) requests(ctx context.Context) (map[string][]models.AccessRequest, error) {
	reqs, err := load[map[string][]models.AccessRequest](ctx, c.store, KeyRequests)
	if reqs == nil {
		reqs = make(map[string][]models.AccessRequest)
	}
	return reqs, err
}

func (c *core) comments(ctx context.Context) (map[string][]models.Comment, error) {
	comments, err := load[map[string][]models.Comment](ctx, c.store, KeyComments)
	if comments == nil {
		comments = make(map[string][]models.Comment)
	}
	return comments, err
}

func (c *core) findPost(ctx context.Context, postID string) (*models.Post, error) {
	posts, err := c.posts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].ID == postID {
			return &posts[i], nil
		}
	}
	return nil, apperr.NotFound("post %s not found", postID)
}

func (c *core) userExists(ctx context.Context, userID string) (bool, error) {
	users, err := c.users(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (c *core) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid input")
	}
	return nil
}
