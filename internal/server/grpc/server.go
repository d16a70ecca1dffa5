package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkit/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TokenVerifier resolves an access token to a user id. It is satisfied by
// *services.UserService.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type GRPCServer struct {
	address string
	tokens  TokenVerifier
	logger  logging.Logger
	health  *health.Server
	public  map[string]bool
	srv     *grpc.Server
}

// NewGRPCServer builds a server whose methods all require an access token,
// except the health service.
func NewGRPCServer(a string, l logging.Logger, tokens TokenVerifier) *GRPCServer {
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		tokens:  tokens,
		health:  health.NewServer(),
		public: map[string]bool{
			healthpb.Health_Check_FullMethodName: true,
			healthpb.Health_Watch_FullMethodName: true,
			healthpb.Health_List_FullMethodName:  true,
		},
	}

	s.srv = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.accessTokenStreamInterceptor),
	)
	healthpb.RegisterHealthServer(s.srv, s.health)

	return s
}

// RegisterService adds an authenticated service to the server. It must be
// called before Run.
func (s *GRPCServer) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.srv.RegisterService(desc, impl)
	s.health.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return s.srv.Serve(lis)
}
