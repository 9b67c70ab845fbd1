package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/common/auth"
	"github.com/OdoTrack/OdoTrack/internal/common/config"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
	"github.com/OdoTrack/OdoTrack/internal/common/middleware"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// HTTPMiddleware HTTP 中间件。
type HTTPMiddleware func(http.Handler) http.Handler

// HTTPChain 按传入顺序包裹 handler：第一个中间件最先接到请求。
func HTTPChain(h http.Handler, mws ...HTTPMiddleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}

// HTTPRecoveryMiddleware 捕获 handler panic，返回 500 并记录栈。
func HTTPRecoveryMiddleware(log logger.Logger) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Errorf("panic in http %s %s err=%v stack=%s",
							r.Method, r.URL.Path, rec, string(debug.Stack()))
					}
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder 捕获写出的状态码，供访问日志使用。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// HTTPAccessLogMiddleware 记录每个 HTTP 请求的方法/路径/状态码/耗时。
func HTTPAccessLogMiddleware(log logger.Logger) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if log != nil {
				fields := map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": rec.status,
					"cost":   time.Since(start).String(),
				}
				if rec.status >= http.StatusBadRequest {
					log.WithFields(fields).Warn("http request failed")
				} else {
					log.WithFields(fields).Info("http request ok")
				}
			}
		})
	}
}

// HTTPTracingMiddleware 从请求头提取上游 span context，创建 server span。
func HTTPTracingMiddleware(serviceName string) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := opentracing.GlobalTracer()

			var parent opentracing.SpanContext
			if sc, err := tracer.Extract(opentracing.HTTPHeaders,
				opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
				parent = sc
			}

			operation := r.Method + " " + r.URL.Path
			var span opentracing.Span
			if parent != nil {
				span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
			} else {
				span = tracer.StartSpan(operation)
			}
			defer span.Finish()

			ext.SpanKindRPCServer.Set(span)
			ext.Component.Set(span, "http")
			ext.HTTPMethod.Set(span, r.Method)
			ext.HTTPUrl.Set(span, r.URL.String())
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}

			next.ServeHTTP(w, r.WithContext(opentracing.ContextWithSpan(r.Context(), span)))
		})
	}
}

// HTTPRateLimitMiddleware 入口限流：超限直接返回 429。
func HTTPRateLimitMiddleware(rl middleware.RateLimiter, log logger.Logger) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl != nil && !rl.Allow(r.Context()) {
				if log != nil {
					log.Warnf("rate limited: %s %s", r.Method, r.URL.Path)
				}
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authContextKey struct{}

// AuthInfo 从 JWT 中解析出的最小用户信息（放入 ctx，供业务侧使用）。
type AuthInfo struct {
	Subject string   // 用户 ID
	Roles   []string // 角色列表（RBAC）
}

// AuthFromContext 从 ctx 中取出鉴权信息。
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// HTTPAuthMiddleware JWT 鉴权 + 路径前缀 RBAC：
// - 读取 `Authorization: Bearer <token>` 并校验（auth.ParseAccessToken）
// - cfg.PublicPaths 前缀命中的路径直接放行
// - cfg.RBAC 按最长前缀匹配要求角色，要求非空时 token roles 需有交集
// - 解析结果写入 ctx
func HTTPAuthMiddleware(cfg config.AuthConfig, log logger.Logger) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicPath(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				if log != nil {
					log.Warn("auth enabled but jwt_secret is empty")
				}
				http.Error(w, "auth not configured", http.StatusUnauthorized)
				return
			}

			tokenStr := bearerToken(r.Header.Get("Authorization"))
			if tokenStr == "" {
				http.Error(w, "missing authorization", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseAccessToken(cfg, tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if required := requiredRoles(cfg.RBAC, r.URL.Path); len(required) > 0 {
				if !hasAnyRole(claims.Roles, required) {
					http.Error(w, "permission denied", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, AuthInfo{
				Subject: claims.Subject,
				Roles:   claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[len("bearer "):])
	}
	return raw
}

func isPublicPath(public []string, path string) bool {
	for _, p := range public {
		p = strings.TrimSpace(p)
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// requiredRoles 取最长前缀命中的 RBAC 规则。
func requiredRoles(rbac map[string][]string, path string) []string {
	var (
		best    string
		matched []string
	)
	for prefix, roles := range rbac {
		if prefix == "" || !strings.HasPrefix(path, prefix) {
			continue
		}
		if len(prefix) > len(best) {
			best = prefix
			matched = roles
		}
	}
	return matched
}

func hasAnyRole(got, required []string) bool {
	if len(got) == 0 || len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(got))
	for _, r := range got {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	for _, r := range required {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
