package blog

import (
	"context"
	"slices"

	"github.com/ButyrinIA/bookblog/internal/apperr"
)

// Subscriptions - направленный граф подписок, список смежности по
// подписчику в порядке добавления.
type Subscriptions struct {
	*core
}

// Subscribe подписывает userID на автора targetID; повторная подписка не ошибка
func (m *Subscriptions) Subscribe(ctx context.Context, userID, targetID string) error {
	if userID == "" {
		return apperr.Unauthenticated("login required to subscribe")
	}
	if userID == targetID {
		return apperr.Validation("cannot subscribe to yourself")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.userExists(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user %s not found", targetID)
	}

	subs, err := m.subscriptions(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(subs[userID], targetID) {
		return nil
	}
	subs[userID] = append(subs[userID], targetID)
	if err := save(ctx, m.store, KeySubscriptions, subs); err != nil {
		return err
	}
	m.log.Info("subscribed", "user_id", userID, "target_id", targetID)
	return nil
}

func (m *Subscriptions) Unsubscribe(ctx context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, err := m.subscriptions(ctx)
	if err != nil {
		return err
	}
	i := slices.Index(subs[userID], targetID)
	if i < 0 {
		return nil
	}
	subs[userID] = slices.Delete(subs[userID], i, i+1)
	if err := save(ctx, m.store, KeySubscriptions, subs); err != nil {
		return err
	}
	m.log.Info("unsubscribed", "user_id", userID, "target_id", targetID)
	return nil
}

// IsSubscribed сообщает, подписан ли userID на targetID
func (m *Subscriptions) IsSubscribed(ctx context.Context, userID, targetID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs, err := m.subscriptions(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(subs[userID], targetID), nil
}

// List возвращает id авторов, на которых подписан userID
func (m *Subscriptions) List(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs, err := m.subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(subs[userID]), nil
}
