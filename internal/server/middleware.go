package server

import (
	"net/http"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/graphql"
	"github.com/gorilla/websocket"
)

// authenticate кладёт в контекст пользователя из заголовка Authorization.
// Запрос без заголовка остаётся анонимным, неверный токен отклоняется.
// WebSocket-клиент из браузера передаёт токен параметром token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && websocket.IsWebSocketUpgrade(r) {
			header = r.URL.Query().Get("token")
		}
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.issuer.Parse(header)
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid or expired token"))
			return
		}
		ctx := auth.WithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserIDFromContext(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "authorization required",
				Kind:  apperr.KindUnauthenticated,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLoaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := graphql.WithUserLoader(r.Context(), graphql.NewUserLoader(s.blog.Users))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
