package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/ButyrinIA/bookblog/internal/config"
	"github.com/ButyrinIA/bookblog/internal/confirm"
	"github.com/ButyrinIA/bookblog/internal/events"
	"github.com/ButyrinIA/bookblog/internal/graphql"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Deps - менеджеры, которые обслуживает сервер
type Deps struct {
	Blog    *blog.Blog
	Books   *bookstore.Store
	Prompts *confirm.Registry
	Hub     *events.Hub
	Issuer  *auth.Issuer
	Logger  *slog.Logger
}

// Server - HTTP-сервер JSON API, GraphQL и WebSocket
type Server struct {
	cfg      *config.Config
	blog     *blog.Blog
	books    *bookstore.Store
	prompts  *confirm.Registry
	hub      *events.Hub
	issuer   *auth.Issuer
	log      *slog.Logger
	upgrader websocket.Upgrader
	handler  http.Handler
}

// New создает Server и собирает маршруты
func New(cfg *config.Config, d Deps) *Server {
	s := &Server{
		cfg:     cfg,
		blog:    d.Blog,
		books:   d.Books,
		prompts: d.Prompts,
		hub:     d.Hub,
		issuer:  d.Issuer,
		log:     d.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.handler = s.routes()
	return s
}

// Handler возвращает корневой обработчик
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws/events", s.handleEvents)

	r.Handle("/", playground.Handler("GraphQL playground", "/query"))
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.withLoaders)
		r.Handle("/query", s.graphqlHandler())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.withLoaders)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Доступно анонимно, видимость считается по текущему пользователю
		r.Get("/feeds/{kind}", s.handleFeed)
		r.Get("/tags", s.handleTags)
		r.Get("/posts/{id}", s.handleGetPost)
		r.Get("/posts/{id}/comments", s.handleListComments)
		r.Get("/books", s.handleListBooks)
		r.Get("/books/facets", s.handleFacets)
		r.Get("/books/{id}", s.handleGetBook)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/users", s.handleListUsers)

			r.Post("/posts", s.handleCreatePost)
			r.Put("/posts/{id}", s.handleUpdatePost)
			r.Delete("/posts/{id}", s.handleDeletePost)
			r.Post("/posts/{id}/comments", s.handleAddComment)
			r.Post("/posts/{id}/requests", s.handleRequestAccess)
			r.Get("/posts/{id}/requests", s.handleListRequests)
			r.Post("/posts/{id}/requests/{requestID}/approve", s.handleApproveRequest)

			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Put("/subscriptions/{userID}", s.handleSubscribe)
			r.Delete("/subscriptions/{userID}", s.handleUnsubscribe)

			r.Post("/books", s.handleAddBook)
			r.Put("/books/{id}", s.handleUpdateBook)
			r.Delete("/books/{id}", s.handleDeleteBook)
			r.Post("/books/{id}/purchase", s.handlePurchase)
			r.Post("/books/{id}/rent", s.handleRent)
			r.Get("/rentals", s.handleListRentals)
			r.Post("/rentals/sweep", s.handleSweep)

			r.Post("/prompts/{id}", s.handleAnswerPrompt)
			r.Delete("/prompts/{id}", s.handleDismissPrompt)
		})
	})
	return r
}

// graphqlHandler обслуживает GraphQL поверх тех же менеджеров, что и JSON API.
// Подписки идут через WebSocket по протоколам graphql-transport-ws и graphql-ws.
func (s *Server) graphqlHandler() http.Handler {
	resolver := graphql.NewResolver(s.blog, s.books, s.prompts, s.hub, s.issuer)
	resolver.Logger = s.log

	srv := handler.New(graphql.NewExecutableSchema(graphql.Config{
		Resolvers: resolver,
		Logger:    s.log,
	}))
	srv.AddTransport(transport.Websocket{
		Upgrader: websocket.Upgrader{
			CheckOrigin:  func(r *http.Request) bool { return true },
			Subprotocols: []string{"graphql-transport-ws", "graphql-ws"},
		},
		KeepAlivePingInterval: 10 * time.Second,
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.Use(extension.Introspection{})
	return srv
}

// Run слушает порт из конфигурации до завершения ctx, затем плавно
// останавливает сервер.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "port", s.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
