package blog

import (
	"context"
	"strings"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/google/uuid"
)

// CommentInput - тело нового комментария
type CommentInput struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Comments управляет комментариями к постам
type Comments struct {
	*core
}

// Add добавляет комментарий; комментировать может только тот, кто видит пост.
func (m *Comments) Add(ctx context.Context, postID, authorID string, in CommentInput) (*models.Comment, error) {
	if authorID == "" {
		return nil, apperr.Unauthenticated("login required to comment")
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := m.check(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureVisible(ctx, postID, authorID); err != nil {
		return nil, err
	}

	all, err := m.comments(ctx)
	if err != nil {
		return nil, err
	}
	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		Text:      in.Text,
		CreatedAt: m.clock.Now(),
	}
	all[postID] = append(all[postID], comment)
	if err := save(ctx, m.store, KeyComments, all); err != nil {
		return nil, err
	}

	// Уведомление подписчиков
	m.notifier.Publish(CommentsTopic(postID), comment)
	return &comment, nil
}

// ListByPost возвращает комментарии поста в порядке создания, если читатель видит пост
func (m *Comments) ListByPost(ctx context.Context, postID, viewerID string) ([]models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureVisible(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	all, err := m.comments(ctx)
	if err != nil {
		return nil, err
	}
	if all[postID] == nil {
		return []models.Comment{}, nil
	}
	return all[postID], nil
}

func (m *Comments) ensureVisible(ctx context.Context, postID, viewerID string) error {
	post, err := m.findPost(ctx, postID)
	if err != nil {
		return err
	}
	reqs, err := m.requests(ctx)
	if err != nil {
		return err
	}
	if !CanView(post, viewerID, reqs[postID]) {
		return apperr.Forbidden("post %s is not visible", postID)
	}
	return nil
}
