package blog

import (
	"context"
	"slices"
	"strings"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/google/uuid"
)

// PostInput - поля создаваемого или изменяемого поста
type PostInput struct {
	Title         string `json:"title" validate:"required,max=200"`
	Content       string `json:"content" validate:"required,max=20000"`
	Tags          string `json:"tags" validate:"max=500"`
	IsPublic      bool   `json:"isPublic"`
	IsRequestOnly bool   `json:"isRequestOnly"`
}

// PostView - пост глазами конкретного читателя. Если читать нельзя,
// Content пуст.
type PostView struct {
	models.Post
	Visibility
	RequestStatus models.RequestStatus `json:"requestStatus"`
}

// FeedKind - вид ленты: public, subscriptions или own
type FeedKind string

const (
	FeedPublic        FeedKind = "public"
	FeedSubscriptions FeedKind = "subscriptions"
	FeedOwn           FeedKind = "own"
)

func (k FeedKind) Valid() bool {
	return k == FeedPublic || k == FeedSubscriptions || k == FeedOwn
}

// ParseTags разбирает теги через запятую: пробелы по краям обрезаются,
// пустые и повторные теги отбрасываются.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(tags, t) {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// Posts управляет постами и лентами
type Posts struct {
	*core
}

// Create публикует пост от имени authorID
func (m *Posts) Create(ctx context.Context, authorID string, in PostInput) (*models.Post, error) {
	if authorID == "" {
		return nil, apperr.Unauthenticated("login required to create posts")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := m.check(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.userExists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("user %s not found", authorID)
	}

	posts, err := m.posts(ctx)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	post := models.Post{
		ID:            uuid.NewString(),
		AuthorID:      authorID,
		Title:         in.Title,
		Content:       in.Content,
		Tags:          ParseTags(in.Tags),
		IsPublic:      in.IsPublic,
		IsRequestOnly: in.IsRequestOnly,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	posts = append(posts, post)
	if err := save(ctx, m.store, KeyPosts, posts); err != nil {
		return nil, err
	}
	m.log.Info("post created", "post_id", post.ID, "author_id", authorID)
	return &post, nil
}

// Update изменяет пост; менять может только автор
func (m *Posts) Update(ctx context.Context, actorID, postID string, in PostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := m.check(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	posts, err := m.posts(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(posts, func(p models.Post) bool { return p.ID == postID })
	if i < 0 {
		return nil, apperr.NotFound("post %s not found", postID)
	}
	if posts[i].AuthorID != actorID {
		return nil, apperr.Forbidden("only the author can edit the post")
	}

	posts[i].Title = in.Title
	posts[i].Content = in.Content
	posts[i].Tags = ParseTags(in.Tags)
	posts[i].IsPublic = in.IsPublic
	posts[i].IsRequestOnly = in.IsRequestOnly
	posts[i].UpdatedAt = m.clock.Now()
	if err := save(ctx, m.store, KeyPosts, posts); err != nil {
		return nil, err
	}
	post := posts[i]
	return &post, nil
}

// Delete удаляет пост вместе с комментариями. Запросы доступа остаются.
func (m *Posts) Delete(ctx context.Context, actorID, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	posts, err := m.posts(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(posts, func(p models.Post) bool { return p.ID == postID })
	if i < 0 {
		return apperr.NotFound("post %s not found", postID)
	}
	if posts[i].AuthorID != actorID {
		return apperr.Forbidden("only the author can delete the post")
	}

	comments, err := m.comments(ctx)
	if err != nil {
		return err
	}
	previous := slices.Clone(posts)
	posts = slices.Delete(posts, i, i+1)
	if err := save(ctx, m.store, KeyPosts, posts); err != nil {
		return err
	}
	if _, ok := comments[postID]; ok {
		delete(comments, postID)
		if err := save(ctx, m.store, KeyComments, comments); err != nil {
			m.log.Error("failed to cascade comments", "post_id", postID, "error", err)
			if rbErr := save(ctx, m.store, KeyPosts, previous); rbErr != nil {
				m.log.Error("failed to roll back post", "post_id", postID, "error", rbErr)
			}
			return err
		}
	}
	m.log.Info("post deleted", "post_id", postID)
	return nil
}

// Get возвращает пост без проверки доступа
func (m *Posts) Get(ctx context.Context, postID string) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findPost(ctx, postID)
}

// View возвращает пост с вычисленной видимостью для viewerID.
func (m *Posts) View(ctx context.Context, postID, viewerID string) (*PostView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, err := m.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	all, err := m.requests(ctx)
	if err != nil {
		return nil, err
	}
	view := newView(*post, viewerID, all[postID])
	return &view, nil
}

// Feed собирает ленту: базовый фильтр, затем тег, затем сортировка
// от новых к старым.
func (m *Posts) Feed(ctx context.Context, kind FeedKind, viewerID, tag string) ([]PostView, error) {
	if !kind.Valid() {
		return nil, apperr.Validation("unknown feed %s", kind)
	}
	if kind != FeedPublic && viewerID == "" {
		return nil, apperr.Unauthenticated("login required for %s feed", kind)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	posts, err := m.posts(ctx)
	if err != nil {
		return nil, err
	}

	var include func(p *models.Post) bool
	switch kind {
	case FeedPublic:
		include = func(p *models.Post) bool { return p.IsPublic && !p.IsRequestOnly }
	case FeedSubscriptions:
		subs, err := m.subscriptions(ctx)
		if err != nil {
			return nil, err
		}
		targets := subs[viewerID]
		include = func(p *models.Post) bool {
			return slices.Contains(targets, p.AuthorID) && (p.IsPublic || p.AuthorID == viewerID)
		}
	case FeedOwn:
		include = func(p *models.Post) bool { return p.AuthorID == viewerID }
	}

	var selected []models.Post
	for i := range posts {
		if !include(&posts[i]) {
			continue
		}
		if tag != "" && !posts[i].HasTag(tag) {
			continue
		}
		selected = append(selected, posts[i])
	}
	sortNewestFirst(selected)

	all, err := m.requests(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PostView, 0, len(selected))
	for _, p := range selected {
		views = append(views, newView(p, viewerID, all[p.ID]))
	}
	return views, nil
}

// Tags возвращает все различные теги в порядке первого появления.
func (m *Posts) Tags(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts, err := m.posts(ctx)
	if err != nil {
		return nil, err
	}
	tags := []string{}
	seen := make(map[string]bool)
	for _, p := range posts {
		for _, t := range p.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags, nil
}

func newView(p models.Post, viewerID string, requests []models.AccessRequest) PostView {
	view := PostView{
		Post:       p,
		Visibility: VisibilityOf(&p, viewerID, requests),
	}
	if viewerID != "" && viewerID != p.AuthorID {
		view.RequestStatus = StatusOf(requests, p.ID, viewerID)
	}
	if !view.CanView {
		view.Content = ""
	}
	return view
}

func sortNewestFirst(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
