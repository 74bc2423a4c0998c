package blog

import (
	"context"
	"strings"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/google/uuid"
)

// CanView решает, видит ли viewerID полный текст поста. Порядок правил
// важен: флаг "по запросу" перекрывает публичность.
func CanView(post *models.Post, viewerID string, requests []models.AccessRequest) bool {
	if viewerID != "" && viewerID == post.AuthorID {
		return true
	}
	if post.IsPublic && !post.IsRequestOnly {
		return true
	}
	if post.IsRequestOnly {
		if viewerID == "" {
			return false
		}
		for _, r := range requests {
			if r.PostID == post.ID && r.UserID == viewerID && r.Approved {
				return true
			}
		}
		return false
	}
	return false
}

// Visibility - что читатель может сделать с постом
type Visibility struct {
	CanView    bool `json:"canView"`
	CanRequest bool `json:"canRequest"`
}

// VisibilityOf дополняет CanView признаком доступности запроса доступа.
// Анонимному пользователю запрос не предлагается.
func VisibilityOf(post *models.Post, viewerID string, requests []models.AccessRequest) Visibility {
	v := Visibility{CanView: CanView(post, viewerID, requests)}
	v.CanRequest = !v.CanView && post.IsRequestOnly && viewerID != ""
	return v
}

// StatusOf сводит запросы пары (пост, пользователь) к одному состоянию.
func StatusOf(requests []models.AccessRequest, postID, userID string) models.RequestStatus {
	status := models.RequestNone
	for _, r := range requests {
		if r.PostID != postID || r.UserID != userID {
			continue
		}
		if r.Approved {
			return models.RequestApproved
		}
		status = models.RequestPending
	}
	return status
}

// RequestInput - тело запроса доступа
type RequestInput struct {
	Message string `json:"message" validate:"max=1000"`
}

// Requests управляет запросами доступа к постам по запросу
type Requests struct {
	*core
}

// Request создаёт запрос доступа или обновляет сообщение существующего
// ожидающего запроса той же пары. Одобренный запрос возвращается как есть.
// created истинно, только если запрос появился впервые.
func (m *Requests) Request(ctx context.Context, postID, userID string, in RequestInput) (req *models.AccessRequest, created bool, err error) {
	if userID == "" {
		return nil, false, apperr.Unauthenticated("login required to request access")
	}
	in.Message = strings.TrimSpace(in.Message)
	if err := m.check(in); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	post, err := m.findPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	if !post.IsRequestOnly {
		return nil, false, apperr.Validation("post %s does not accept access requests", postID)
	}
	if post.AuthorID == userID {
		return nil, false, apperr.Validation("author cannot request access to own post")
	}

	all, err := m.requests(ctx)
	if err != nil {
		return nil, false, err
	}
	list := all[postID]
	for i := range list {
		if list[i].UserID != userID {
			continue
		}
		if list[i].Approved || list[i].Message == in.Message {
			req := list[i]
			return &req, false, nil
		}
		list[i].Message = in.Message
		if err := save(ctx, m.store, KeyRequests, all); err != nil {
			return nil, false, err
		}
		req := list[i]
		return &req, false, nil
	}

	fresh := models.AccessRequest{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Message:   in.Message,
		CreatedAt: m.clock.Now(),
	}
	all[postID] = append(list, fresh)
	if err := save(ctx, m.store, KeyRequests, all); err != nil {
		return nil, false, err
	}
	m.log.Info("access requested", "post_id", postID, "user_id", userID, "request_id", fresh.ID)
	m.notifier.Publish(RequestsTopic(post.AuthorID), fresh)
	return &fresh, true, nil
}

// Approve одобряет один запрос по id. Остальные запросы к посту не меняются.
// Повторное одобрение ничего не делает.
func (m *Requests) Approve(ctx context.Context, actorID, postID, requestID string) (*models.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, err := m.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, apperr.Forbidden("only the author can approve requests")
	}

	all, err := m.requests(ctx)
	if err != nil {
		return nil, err
	}
	list := all[postID]
	for i := range list {
		if list[i].ID != requestID {
			continue
		}
		if list[i].Approved {
			req := list[i]
			return &req, nil
		}
		now := m.clock.Now()
		list[i].Approved = true
		list[i].ApprovedAt = &now
		if err := save(ctx, m.store, KeyRequests, all); err != nil {
			return nil, err
		}
		req := list[i]
		m.log.Info("access approved", "post_id", postID, "request_id", requestID, "user_id", req.UserID)
		m.notifier.Publish(AccessTopic(req.UserID), req)
		return &req, nil
	}
	return nil, apperr.NotFound("request %s not found", requestID)
}

// ListByPost доступен только автору поста.
func (m *Requests) ListByPost(ctx context.Context, actorID, postID string) ([]models.AccessRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, err := m.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, apperr.Forbidden("only the author can list requests")
	}
	all, err := m.requests(ctx)
	if err != nil {
		return nil, err
	}
	return all[postID], nil
}

// Status возвращает состояние запроса пользователя к посту
func (m *Requests) Status(ctx context.Context, postID, userID string) (models.RequestStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all, err := m.requests(ctx)
	if err != nil {
		return models.RequestNone, err
	}
	return StatusOf(all[postID], postID, userID), nil
}

// CanView проверяет доступ к сохранённому посту.
func (m *Requests) CanView(ctx context.Context, postID, viewerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, err := m.findPost(ctx, postID)
	if err != nil {
		return false, err
	}
	all, err := m.requests(ctx)
	if err != nil {
		return false, err
	}
	return CanView(post, viewerID, all[postID]), nil
}
