// Package httpapi exposes the user service over JSON/HTTP. The access token
// travels in the auth-token cookie or an Authorization: Bearer header.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkit/internal/logging"
	"github.com/dmitrijs2005/authkit/internal/server/models"
	"github.com/dmitrijs2005/authkit/internal/server/services"
)

// UserService is the part of *services.UserService the handlers use.
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	RefreshToken(ctx context.Context, userID string) (*services.Session, error)
	ChangePassword(ctx context.Context, userID, newPassword string) error
	InvalidateTokens(ctx context.Context, userID string) error
}

const shutdownTimeout = 5 * time.Second

type Server struct {
	address string
	users   UserService
	logger  logging.Logger
}

func NewServer(a string, l logging.Logger, users UserService) *Server {
	return &Server{
		address: a,
		users:   users,
		logger:  l.With("module", "http_server"),
	}
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("POST /api/logoff", s.logoff)
	mux.Handle("GET /api/me", s.requireAuth(s.me))
	mux.Handle("POST /api/password", s.requireAuth(s.changePassword))
	mux.Handle("POST /api/logout-all", s.requireAuth(s.logoutAll))

	return s.withRequestID(s.withLogging(mux))
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve handles requests on lis until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
