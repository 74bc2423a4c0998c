package graphql

import (
	"context"
	"errors"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/graph-gophers/dataloader/v7"
)

type loaderKey struct{}

// UserLoader - загрузчик пользователей на один запрос
type UserLoader = dataloader.Loader[string, *models.User]

// UserSource - откуда загрузчик берет пользователей пачкой.
type UserSource interface {
	GetMany(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// NewUserLoader собирает авторов постов и комментариев одним чтением
// хранилища на запрос.
func NewUserLoader(users UserSource) *UserLoader {
	return dataloader.NewBatchedLoader(
		func(ctx context.Context, keys []string) []*dataloader.Result[*models.User] {
			results := make([]*dataloader.Result[*models.User], len(keys))
			found, err := users.GetMany(ctx, keys)
			for i, key := range keys {
				switch {
				case err != nil:
					results[i] = &dataloader.Result[*models.User]{Error: err}
				case found[key] == nil:
					results[i] = &dataloader.Result[*models.User]{Error: apperr.NotFound("user %s not found", key)}
				default:
					results[i] = &dataloader.Result[*models.User]{Data: found[key]}
				}
			}
			return results
		},
		dataloader.WithWait[string, *models.User](time.Millisecond),
	)
}

// WithUserLoader кладет загрузчик в контекст запроса
func WithUserLoader(ctx context.Context, l *UserLoader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

func userLoaderFrom(ctx context.Context) (*UserLoader, error) {
	l, ok := ctx.Value(loaderKey{}).(*UserLoader)
	if !ok {
		return nil, errors.New("userLoader not found in context")
	}
	return l, nil
}

// loadUser возвращает nil без ошибки, если пользователя уже нет.
func loadUser(ctx context.Context, id string) (*User, error) {
	loader, err := userLoaderFrom(ctx)
	if err != nil {
		return nil, err
	}
	u, err := loader.Load(ctx, id)()
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toUser(u), nil
}

// Usernames возвращает имена пользователей по id; неизвестные пропускаются.
func Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	loader, err := userLoaderFrom(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			keys = append(keys, id)
		}
	}

	users, errs := loader.LoadMany(ctx, keys)()
	names := make(map[string]string, len(keys))
	for i, key := range keys {
		if i < len(errs) && errs[i] != nil {
			if apperr.IsKind(errs[i], apperr.KindNotFound) {
				continue
			}
			return nil, errs[i]
		}
		if i < len(users) && users[i] != nil {
			names[key] = users[i].Username
		}
	}
	return names, nil
}
