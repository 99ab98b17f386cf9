// Package database 提供 PostgreSQL 连接管理
// 行程以整文档 JSONB 读写，连接池与慢语句阈值按文档型负载调校
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xingcheng/xingcheng/internal/config"
	"github.com/xingcheng/xingcheng/internal/metrics"
	"github.com/xingcheng/xingcheng/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

const (
	// pingTimeout 建连探活超时
	pingTimeout = 5 * time.Second

	// slowStatementThreshold 慢语句日志阈值
	// 整文档 upsert 体量大，阈值相应放宽
	slowStatementThreshold = 200 * time.Millisecond

	// poolStatsInterval 连接池指标上报间隔
	poolStatsInterval = 15 * time.Second
)

// 规划请求的并发度不高，写入以单文档 upsert 为主，小池即可
const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

// DB 数据库连接封装
type DB struct {
	*sql.DB
	cfg       *config.DatabaseConfig
	stopStats chan struct{}
}

// Open 建立连接、调校连接池并初始化表结构
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	conn.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, defaultMaxOpenConns))
	conn.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, defaultMaxIdleConns))
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	db := &DB{DB: conn, cfg: cfg, stopStats: make(chan struct{})}
	if err := db.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库就绪")

	go db.reportPoolStats()
	return db, nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	close(db.stopStats)
	logger.Info().Msg("关闭数据库连接")
	return db.DB.Close()
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// WithinTx 在单个事务内执行 fn
// fn 返回错误时整体回滚，行程写入对外只呈现整体成功或整体不发生
func (db *DB) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}
	return nil
}

// ExecContext 执行SQL语句，超过阈值时记慢语句日志
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return result, err
}

// QueryContext 执行查询，超过阈值时记慢语句日志
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return rows, err
}

// QueryRowContext 执行单行查询
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// reportPoolStats 周期性把连接池状态上报到指标
func (db *DB) reportPoolStats() {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-db.stopStats:
			return
		case <-ticker.C:
			s := db.DB.Stats()
			metrics.SetDBConnections("open", s.OpenConnections)
			metrics.SetDBConnections("in_use", s.InUse)
			metrics.SetDBConnections("idle", s.Idle)
		}
	}
}

// logSlow 记录慢语句
func logSlow(query string, duration time.Duration) {
	if duration <= slowStatementThreshold {
		return
	}
	logger.Warn().
		Str("component", "database").
		Str("statement", truncateStatement(query)).
		Dur("duration", duration).
		Msg("慢SQL语句")
}

// truncateStatement 截断长语句
func truncateStatement(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
