// Package httpapi exposes the chat services over HTTP with JSON bodies.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/export"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

type querier interface {
	HandleQuery(ctx context.Context, userID, query string, ref services.ConversationRef) (*services.QueryResult, error)
}

type exporter interface {
	Export(ctx context.Context, userID, convID string) (*export.Result, error)
}

// Deps are the services the HTTP layer dispatches to. Exporter may be nil.
type Deps struct {
	Users         *services.UserService
	Queries       querier
	Conversations services.ConversationStore
	Exporter      exporter
	Tokens        *auth.TokenManager
	CORSOrigins   []string
}

type HTTPServer struct {
	address       string
	logger        logging.Logger
	users         *services.UserService
	queries       querier
	conversations services.ConversationStore
	exporter      exporter
	tokens        *auth.TokenManager
	corsOrigins   []string
}

func NewHTTPServer(address string, l logging.Logger, d Deps) *HTTPServer {
	s := &HTTPServer{
		address:       address,
		logger:        l.With("module", "http_server"),
		users:         d.Users,
		queries:       d.Queries,
		conversations: d.Conversations,
		exporter:      d.Exporter,
		tokens:        d.Tokens,
		corsOrigins:   d.CORSOrigins,
	}
	if s.exporter == nil {
		s.exporter = (*export.Exporter)(nil)
	}
	return s
}

// Routes builds the router with all middleware attached.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/ping", s.handle(s.ping))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handle(s.register))
		r.Post("/login", s.handle(s.login))
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/query", s.handle(s.query))
		r.Get("/history", s.handle(s.history))
		r.Post("/conversations", s.handle(s.createConversation))
		r.Get("/conversations/{id}/messages", s.handle(s.messages))
		r.Post("/conversations/{id}/export", s.handle(s.export))
	})

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
