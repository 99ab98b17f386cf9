package database

import (
	"context"
	"fmt"
)

// 行程与矩阵快照的表结构
// 行程整文档存 JSONB，结构化列只留查询会用到的字段
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tours (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		document JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tours_start_date ON tours (start_date)`,
	`CREATE TABLE IF NOT EXISTS tour_matrices (
		tour_id UUID PRIMARY KEY REFERENCES tours (id) ON DELETE CASCADE,
		entries JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// InitSchema 初始化表结构（幂等）
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("初始化表结构失败: %w", err)
		}
	}
	return nil
}
