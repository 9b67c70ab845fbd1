package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/common/config"
	"github.com/OdoTrack/OdoTrack/internal/common/discovery"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
	"github.com/OdoTrack/OdoTrack/internal/common/middleware"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCRegisterFunc 用于注册业务 gRPC 服务（pb.RegisterXxxServer 等）。
type GRPCRegisterFunc func(s *grpc.Server) error

type RunOptions struct {
	GRPCRegister     GRPCRegisterFunc
	HTTPHandler      http.Handler
	EnableReflection bool
	ShutdownTimeout  time.Duration
}

func defaultRunOptions() RunOptions {
	return RunOptions{
		EnableReflection: true,
		ShutdownTimeout:  5 * time.Second,
	}
}

// WithGRPCRegister 注册业务 gRPC 服务。
func WithGRPCRegister(fn GRPCRegisterFunc) func(*RunOptions) {
	return func(o *RunOptions) {
		o.GRPCRegister = fn
	}
}

// WithHTTPHandler 挂载 HTTP API（会自动套上统一的中间件链）。
func WithHTTPHandler(h http.Handler) func(*RunOptions) {
	return func(o *RunOptions) {
		o.HTTPHandler = h
	}
}

// WithShutdownTimeout 修改优雅退出等待时间。
func WithShutdownTimeout(d time.Duration) func(*RunOptions) {
	return func(o *RunOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// WithReflection 控制是否启用 gRPC reflection。
func WithReflection(enable bool) func(*RunOptions) {
	return func(o *RunOptions) {
		o.EnableReflection = enable
	}
}

// Run 统一的服务启动模板：
// - gRPC 侧：listener + 拦截器链 + health / reflection + 业务注册
// - HTTP 侧：中间件链（recovery / tracing / access log / 限流 / 鉴权）+ 业务 handler
// - 两个端口分别注册到 Consul（gRPC check / HTTP check）
// - 统一的信号处理和优雅退出
func Run(cfg *config.Config, log logger.Logger, opts ...func(*RunOptions)) error {
	if cfg == nil {
		return fmt.Errorf("cfg is nil")
	}
	if log == nil {
		return fmt.Errorf("log is nil")
	}

	o := defaultRunOptions()
	for _, apply := range opts {
		if apply != nil {
			apply(&o)
		}
	}

	// 初始化 Consul 客户端（失败不阻塞服务启动）
	consulClient, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
	if err != nil {
		log.Warnf("failed to connect to Consul: %v", err)
		consulClient = nil
	}

	grpcLis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen grpc: %w", err)
	}

	// gRPC 拦截器链（按顺序执行）
	unaryInterceptors := UnaryChain(
		UnaryRecoveryInterceptor(log),            // 异常恢复，避免服务崩溃
		UnaryTracingInterceptor(cfg.Server.Name), // 链路追踪
		UnaryAccessLogInterceptor(log),           // 访问日志
	)

	s := grpc.NewServer(
		grpc.UnaryInterceptor(unaryInterceptors),
	)

	// gRPC 健康检查（供 Consul 的 GRPC check 探测）
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	if o.EnableReflection {
		reflection.Register(s)
	}

	if o.GRPCRegister != nil {
		if err := o.GRPCRegister(s); err != nil {
			return fmt.Errorf("failed to register grpc services: %w", err)
		}
	}

	// HTTP 侧：统一中间件链
	var httpSrv *http.Server
	if o.HTTPHandler != nil {
		mws := []HTTPMiddleware{
			HTTPRecoveryMiddleware(log),
			HTTPTracingMiddleware(cfg.Server.Name),
			HTTPAccessLogMiddleware(log),
		}
		if cfg.RateLimit.Enabled {
			mws = append(mws, HTTPRateLimitMiddleware(middleware.NewFromConfig(cfg.RateLimit), log))
		}
		if cfg.Auth.Enabled {
			mws = append(mws, HTTPAuthMiddleware(cfg.Auth, log))
		}

		httpSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
			Handler:           HTTPChain(o.HTTPHandler, mws...),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// 注册到 Consul（成功才 defer 注销）
	if consulClient != nil {
		grpcID := fmt.Sprintf("%s-grpc-%s", cfg.Server.Name, uuid.New().String())
		grpcRegistry := discovery.NewServiceRegistry(
			consulClient, grpcID, cfg.Server.Name,
			cfg.Server.Host, cfg.Server.GRPCPort, []string{"grpc"},
		)
		if err := grpcRegistry.Register(); err != nil {
			log.Warnf("failed to register grpc service to Consul: %v", err)
		} else {
			log.Infof("Service registered to Consul: %s", grpcID)
			defer func() {
				if err := grpcRegistry.Deregister(); err != nil {
					log.Warnf("failed to deregister grpc service from Consul: %v", err)
				}
			}()
		}

		if httpSrv != nil {
			httpID := fmt.Sprintf("%s-http-%s", cfg.Server.Name, uuid.New().String())
			httpRegistry := discovery.NewHTTPServiceRegistry(
				consulClient, httpID, cfg.Server.Name,
				cfg.Server.Host, cfg.Server.HTTPPort, "/healthz", []string{"http"},
			)
			if err := httpRegistry.Register(); err != nil {
				log.Warnf("failed to register http service to Consul: %v", err)
			} else {
				log.Infof("Service registered to Consul: %s", httpID)
				defer func() {
					if err := httpRegistry.Deregister(); err != nil {
						log.Warnf("failed to deregister http service from Consul: %v", err)
					}
				}()
			}
		}
	}

	log.Infof("%s grpc starting on %s:%d", cfg.Server.Name, cfg.Server.Host, cfg.Server.GRPCPort)

	serveErr := make(chan error, 2)
	go func() {
		if err := s.Serve(grpcLis); err != nil {
			serveErr <- fmt.Errorf("grpc serve failed: %w", err)
			return
		}
		serveErr <- nil
	}()

	if httpSrv != nil {
		log.Infof("%s http starting on %s", cfg.Server.Name, httpSrv.Addr)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErr <- fmt.Errorf("http serve failed: %w", err)
				return
			}
			serveErr <- nil
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("received signal %v, shutting down...", sig)
	case err := <-serveErr:
		if err != nil {
			return err
		}
		return nil
	}

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), o.ShutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Warnf("http shutdown: %v", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		log.Warn("grpc shutdown timeout, forcing stop...")
		s.Stop()
	case <-stopped:
		log.Info("grpc server stopped gracefully")
	}

	return nil
}
