package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/graphql"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/go-chi/chi/v5"
)

type userResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Subscribed *bool     `json:"subscribed,omitempty"`
}

func toUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type postResponse struct {
	blog.PostView
	AuthorName string `json:"authorName,omitempty"`
	HTML       string `json:"html,omitempty"`
}

type commentResponse struct {
	models.Comment
	AuthorName string `json:"authorName,omitempty"`
}

type promptResponse struct {
	Prompt any `json:"prompt"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, err := s.issuer.Issue(u.ID, u.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: toUser(u)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in blog.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.blog.Users.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issue(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in blog.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.blog.Users.Login(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issue(w, r, http.StatusOK, u)
}

// handleListUsers возвращает других пользователей с признаком подписки.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	me := auth.UserIDFromContext(ctx)

	users, err := s.blog.Users.List(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subs, err := s.blog.Subscriptions.List(ctx, me)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subscribed := make(map[string]bool, len(subs))
	for _, id := range subs {
		subscribed[id] = true
	}

	resp := []userResponse{}
	for i := range users {
		if users[i].ID == me {
			continue
		}
		u := toUser(&users[i])
		u.Email = ""
		flag := subscribed[u.ID]
		u.Subscribed = &flag
		resp = append(resp, u)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postResponses(ctx context.Context, views []blog.PostView) ([]postResponse, error) {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.AuthorID)
	}
	names, err := graphql.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	resp := make([]postResponse, 0, len(views))
	for _, v := range views {
		html, err := graphql.RenderMarkdown(v.Content)
		if err != nil {
			return nil, fmt.Errorf("render post %s: %w", v.ID, err)
		}
		resp = append(resp, postResponse{PostView: v, AuthorName: names[v.AuthorID], HTML: html})
	}
	return resp, nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind := blog.FeedKind(chi.URLParam(r, "kind"))
	views, err := s.blog.Posts.Feed(ctx, kind, auth.UserIDFromContext(ctx), r.URL.Query().Get("tag"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.postResponses(ctx, views)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.blog.Posts.Tags(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := s.blog.Posts.View(ctx, chi.URLParam(r, "id"), auth.UserIDFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.postResponses(ctx, []blog.PostView{*view})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp[0])
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in blog.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	post, err := s.blog.Posts.Create(ctx, auth.UserIDFromContext(ctx), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var in blog.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	post, err := s.blog.Posts.Update(ctx, auth.UserIDFromContext(ctx), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleDeletePost не удаляет сразу, а открывает подтверждение; удаление
// выполняется ответом "да" на /api/prompts/{id}.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	me := auth.UserIDFromContext(ctx)
	postID := chi.URLParam(r, "id")

	post, err := s.blog.Posts.Get(ctx, postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if post.AuthorID != me {
		s.writeError(w, r, apperr.Forbidden("only the author can delete the post"))
		return
	}

	prompt := s.prompts.Ask(me, "Удаление поста",
		fmt.Sprintf("Вы уверены, что хотите удалить пост %q? Это действие нельзя отменить.", post.Title),
		func(ctx context.Context) error {
			return s.blog.Posts.Delete(ctx, me, postID)
		})
	writeJSON(w, http.StatusAccepted, promptResponse{Prompt: prompt})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comments, err := s.blog.Comments.ListByPost(ctx, chi.URLParam(r, "id"), auth.UserIDFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	names, err := graphql.Usernames(ctx, ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		resp = append(resp, commentResponse{Comment: c, AuthorName: names[c.AuthorID]})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var in blog.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	comment, err := s.blog.Comments.Add(ctx, chi.URLParam(r, "id"), auth.UserIDFromContext(ctx), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	var in blog.RequestInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	req, created, err := s.blog.Requests.Request(ctx, chi.URLParam(r, "id"), auth.UserIDFromContext(ctx), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqs, err := s.blog.Requests.ListByPost(ctx, auth.UserIDFromContext(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []models.AccessRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := s.blog.Requests.Approve(ctx, auth.UserIDFromContext(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "requestID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := s.blog.Subscriptions.List(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	users, err := s.blog.Users.GetMany(ctx, ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := []userResponse{}
	for _, id := range ids {
		if u, ok := users[id]; ok {
			resp = append(resp, userResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.blog.Subscriptions.Subscribe(ctx, auth.UserIDFromContext(ctx), chi.URLParam(r, "userID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.blog.Subscriptions.Unsubscribe(ctx, auth.UserIDFromContext(ctx), chi.URLParam(r, "userID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) handleAnswerPrompt(w http.ResponseWriter, r *http.Request) {
	var in answerRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	ok, err := s.prompts.Answer(ctx, chi.URLParam(r, "id"), auth.UserIDFromContext(ctx), in.Confirm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"confirmed": ok})
}

func (s *Server) handleDismissPrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.prompts.Dismiss(chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
