package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OdoTrack/OdoTrack/internal/common/logger"
	"google.golang.org/grpc"
)

func TestHTTPChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) HTTPMiddleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := HTTPChain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") }),
		mw("a"), nil, mw("b"),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "handler" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestHTTPRecoveryMiddleware(t *testing.T) {
	h := HTTPChain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }),
		HTTPRecoveryMiddleware(logger.Nop()),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

type fakeLimiter struct{ allow bool }

func (f fakeLimiter) Allow(ctx context.Context) bool { return f.allow }

func TestHTTPRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	h := HTTPChain(ok, HTTPRateLimitMiddleware(fakeLimiter{allow: false}, logger.Nop()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	h = HTTPChain(ok, HTTPRateLimitMiddleware(fakeLimiter{allow: true}, logger.Nop()))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnaryChainOrderAndRecovery(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/x.y.Service/Do"}
	chain := UnaryChain(mk("a"), nil, mk("b"))
	resp, err := chain(context.Background(), "req", info,
		func(ctx context.Context, req any) (any, error) {
			order = append(order, "handler")
			return "resp", nil
		})
	if err != nil || resp != "resp" {
		t.Fatalf("chain failed: %v %v", resp, err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "handler" {
		t.Fatalf("unexpected order: %v", order)
	}

	rec := UnaryRecoveryInterceptor(logger.Nop())
	_, err = rec(context.Background(), "req", info,
		func(ctx context.Context, req any) (any, error) {
			panic("boom")
		})
	if err == nil {
		t.Fatalf("expected error after panic")
	}
}
