// XingCheng 行程规划引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xingcheng/xingcheng/internal/config"
	"github.com/xingcheng/xingcheng/internal/database"
	"github.com/xingcheng/xingcheng/internal/handler"
	"github.com/xingcheng/xingcheng/internal/metrics"
	"github.com/xingcheng/xingcheng/internal/middleware"
	"github.com/xingcheng/xingcheng/internal/repository"
	"github.com/xingcheng/xingcheng/pkg/logger"
	"github.com/xingcheng/xingcheng/pkg/planner"
	"github.com/xingcheng/xingcheng/pkg/planner/exact"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	fmt.Printf("XingCheng 行程规划引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 数据库可选：连不上时以无持久化模式运行
	var repo repository.TourRepositoryInterface
	db, err := database.Open(context.Background(), &cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("数据库不可用，以无持久化模式运行")
	} else {
		defer db.Close()
		repo = repository.NewTourRepository(db)
	}

	// 规划引擎
	solverCfg := exact.Config{
		TimeBudget: cfg.Planner.SolverTimeBudget,
		GapLimit:   cfg.Planner.SolverGapLimit,
		Workers:    cfg.Planner.SolverWorkers,
	}
	engine := planner.NewEngine(nil, solverCfg)

	tourHandler := handler.NewTourHandler(engine, repo)

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		dbState := "disabled"
		if db != nil {
			dbState = "ok"
			if err := db.Health(r.Context()); err != nil {
				dbState = "down"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"xingcheng","database":%q}`, dbState)
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "XingCheng 行程规划引擎 API v1",
			"endpoints": {
				"tour": {
					"generate": "POST /api/v1/tour/generate",
					"replace": "POST /api/v1/tour/replace",
					"validate": "POST /api/v1/tour/validate",
					"stats": "POST /api/v1/tour/stats",
					"get": "GET /api/v1/tour?id=<uuid>",
					"delete": "DELETE /api/v1/tour?id=<uuid>",
					"list": "GET /api/v1/tours"
				},
				"constraints": {
					"library": "GET /api/v1/constraints/library"
				}
			}
		}`))
	})

	mux.HandleFunc("/api/v1/tour/generate", tourHandler.Generate)
	mux.HandleFunc("/api/v1/tour/replace", tourHandler.Replace)
	mux.HandleFunc("/api/v1/tour/validate", tourHandler.Validate)
	mux.HandleFunc("/api/v1/tour/stats", tourHandler.Stats)
	mux.HandleFunc("/api/v1/tour", tourHandler.Get)
	mux.HandleFunc("/api/v1/tours", tourHandler.List)
	mux.HandleFunc("/api/v1/constraints/library", tourHandler.ConstraintLibrary)

	// ========================================
	// 监控端点
	// ========================================

	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	// ========================================
	// 中间件
	// ========================================

	rateLimiter := newRateLimiter(float64(cfg.API.RateLimit))
	chained := middleware.Chain(mux,
		middleware.RequestIDMiddleware,
		rateLimitMiddleware(rateLimiter),
		middleware.CORSMiddleware(cfg.API.CORS.Origins),
		middleware.SecurityHeadersMiddleware,
		middleware.LoggingMiddleware,
		middleware.MetricsMiddleware,
		middleware.RecoveryMiddleware,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      chained,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Str("api_docs", fmt.Sprintf("http://localhost:%d/api/v1/", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}

// rateLimiter 简单的令牌桶限流器
type rateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // 每秒添加的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// newRateLimiter 创建限流器
func newRateLimiter(requestsPerSecond float64) *rateLimiter {
	return &rateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond * 2, // 允许突发流量
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// allow 检查是否允许请求
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// rateLimitMiddleware 限流中间件
func rateLimitMiddleware(rl *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":   true,
					"code":    "RATE_LIMITED",
					"message": "请求过于频繁，请稍后重试",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
