package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// allowTopic проверяет, что пользователь может слушать тему: напоминания
// и возвраты книг общие, комментарии - только видимых постов, запросы и
// одобрения - только свои.
func (s *Server) allowTopic(ctx context.Context, userID, topic string) error {
	switch {
	case topic == bookstore.TopicReminders, topic == bookstore.TopicReclaimed:
		return nil
	case strings.HasPrefix(topic, "comments:"):
		ok, err := s.blog.Requests.CanView(ctx, strings.TrimPrefix(topic, "comments:"), userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbidden("cannot subscribe to %s", topic)
		}
		return nil
	case topic == blog.RequestsTopic(userID), topic == blog.AccessTopic(userID):
		if userID == "" {
			return apperr.Unauthenticated("login required for %s", topic)
		}
		return nil
	}
	return apperr.Forbidden("cannot subscribe to %s", topic)
}

// handleEvents отдаёт события выбранных тем через WebSocket. Токен можно
// передать параметром token, браузер не умеет ставить заголовки.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var userID string
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = r.Header.Get("Authorization")
	}
	if raw != "" {
		claims, err := s.issuer.Parse(raw)
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid or expired token"))
			return
		}
		userID = claims.UserID
	}

	topics := r.URL.Query()["topic"]
	if len(topics) == 0 {
		s.writeError(w, r, apperr.Validation("at least one topic is required"))
		return
	}
	for _, t := range topics {
		if err := s.allowTopic(ctx, userID, t); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Чтение нужно, чтобы заметить закрытие соединения клиентом
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := s.hub.Subscribe(ctx, topics...)
	s.log.Info("events stream opened", "user_id", userID, "topics", topics)
	for ev := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Warn("events stream write failed", "user_id", userID, "error", err)
			cancel()
			break
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.log.Info("events stream closed", "user_id", userID)
}
