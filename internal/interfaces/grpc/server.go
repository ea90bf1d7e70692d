// Package grpc serves the standard grpc.health.v1 service so orchestrators
// can probe clauselens over gRPC. Serving status follows the same
// dependency checks as the HTTP readiness endpoint.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/pkg/errors"
)

// ServiceName is the health service key reported next to the overall "".
const ServiceName = "clauselens.Profiler"

const (
	defaultGracefulTimeout = 10 * time.Second
	defaultCheckInterval   = 15 * time.Second
)

var defaultKeepaliveParams = keepalive.ServerParameters{
	MaxConnectionIdle:     15 * time.Minute,
	MaxConnectionAge:      30 * time.Minute,
	MaxConnectionAgeGrace: 5 * time.Second,
	Time:                  5 * time.Minute,
	Timeout:               1 * time.Second,
}

var defaultKeepalivePolicy = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second,
	PermitWithoutStream: true,
}

// Checker is one dependency probe. handlers.HealthChecker satisfies it.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type Option func(*serverOptions)

type serverOptions struct {
	logger          logging.Logger
	metrics         *prometheus.AppMetrics
	checkers        []Checker
	checkInterval   time.Duration
	gracefulTimeout time.Duration
	reflection      bool
}

func WithLogger(l logging.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(o *serverOptions) { o.metrics = m }
}

// WithCheckers sets the probes that drive the serving status.
func WithCheckers(interval time.Duration, checkers ...Checker) Option {
	return func(o *serverOptions) {
		o.checkers = checkers
		if interval > 0 {
			o.checkInterval = interval
		}
	}
}

func WithGracefulTimeout(d time.Duration) Option {
	return func(o *serverOptions) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// WithReflection registers the reflection service, for grpcurl in debug builds.
func WithReflection() Option {
	return func(o *serverOptions) { o.reflection = true }
}

// Server owns the listener, the grpc.Server and the health status.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	opts         *serverOptions
	healthServer *health.Server

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewServer binds the listener on host:port and registers the health service.
func NewServer(host string, cfg config.GRPCConfig, opts ...Option) (*Server, error) {
	sopts := &serverOptions{
		checkInterval:   defaultCheckInterval,
		gracefulTimeout: defaultGracefulTimeout,
	}
	for _, o := range opts {
		o(sopts)
	}
	if sopts.logger == nil {
		sopts.logger = logging.NewNopLogger()
	}
	sopts.logger = sopts.logger.Named("grpc")

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInternal, "listen on %s", addr)
	}

	gs := grpc.NewServer(
		grpc.KeepaliveParams(defaultKeepaliveParams),
		grpc.KeepaliveEnforcementPolicy(defaultKeepalivePolicy),
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(sopts.logger),
			loggingUnaryInterceptor(sopts.logger),
		),
		grpc.ChainStreamInterceptor(recoveryStreamInterceptor(sopts.logger)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	initial := healthpb.HealthCheckResponse_SERVING
	if len(sopts.checkers) > 0 {
		initial = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", initial)
	hs.SetServingStatus(ServiceName, initial)

	if sopts.reflection {
		reflection.Register(gs)
		sopts.logger.Info("grpc reflection registered")
	}

	return &Server{
		grpcServer:   gs,
		listener:     lis,
		opts:         sopts,
		healthServer: hs,
	}, nil
}

// Start runs the readiness watcher and serves until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeConflict, "grpc server already started")
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.watch(ctx)

	s.opts.logger.Info("grpc server listening", logging.String("addr", s.Addr()))
	if err := s.grpcServer.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
		return errors.Wrap(err, errors.ErrCodeInternal, "grpc serve failed")
	}
	return nil
}

// Stop flips the status to NOT_SERVING and drains, forcing a stop once the
// graceful timeout or ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.done
	s.mu.Unlock()
	<-done

	s.healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(ctx, s.opts.gracefulTimeout)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.opts.logger.Info("grpc server stopped")
	case <-ctx.Done():
		s.opts.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
	return nil
}

// Addr is the bound address, useful with port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Refresh runs every checker once and updates the serving status.
func (s *Server) Refresh(ctx context.Context) bool {
	ready := true
	for _, c := range s.opts.checkers {
		err := c.Check(ctx)
		prometheus.RecordHealth(s.opts.metrics, c.Name(), err == nil)
		if err != nil {
			ready = false
			s.opts.logger.Warn("dependency unhealthy",
				logging.String("component", c.Name()), logging.Err(err))
		}
	}
	st := healthpb.HealthCheckResponse_SERVING
	if !ready {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.healthServer.SetServingStatus("", st)
	s.healthServer.SetServingStatus(ServiceName, st)
	return ready
}

func (s *Server) watch(ctx context.Context) {
	defer close(s.done)
	if len(s.opts.checkers) == 0 {
		return
	}
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, s.opts.checkInterval)
		defer cancel()
		s.Refresh(pctx)
	}
	probe()

	t := time.NewTicker(s.opts.checkInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())))
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func recoveryStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc stream panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)))
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

// loggingUnaryInterceptor logs every call except health probes.
func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isHealthCheck(info.FullMethod) {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			logging.String("method", info.FullMethod),
			logging.Duration("duration", time.Since(start)),
			logging.String("code", status.Code(err).String()))
		return resp, err
	}
}
