// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
)

// TourRepositoryInterface 行程仓储接口
// 行程写入总是连同矩阵快照一起提交
type TourRepositoryInterface interface {
	SaveWithMatrix(ctx context.Context, tour *model.Tour, m *matrix.Matrix) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tour, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*model.Tour, int, error)

	GetMatrix(ctx context.Context, tourID uuid.UUID) (*matrix.Matrix, error)
}

// TourRepository 行程仓储实现
// 行程以整文档 JSONB 存储，保存即整体替换
type TourRepository struct {
	db DB
}

// NewTourRepository 创建行程仓储
func NewTourRepository(db DB) *TourRepository {
	return &TourRepository{db: db}
}

// SaveWithMatrix 在同一事务里保存行程文档与矩阵快照
// 任一写入失败整体回滚，对外只呈现整体成功或整体不发生
func (r *TourRepository) SaveWithMatrix(ctx context.Context, tour *model.Tour, m *matrix.Matrix) error {
	touch(tour)
	return r.db.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := upsertTour(ctx, tx, tour); err != nil {
			return err
		}
		return upsertMatrix(ctx, tx, tour.ID, m)
	})
}

// touch 补齐ID与时间戳
func touch(tour *model.Tour) {
	if tour.ID == uuid.Nil {
		tour.ID = uuid.New()
	}
	now := time.Now()
	if tour.CreatedAt.IsZero() {
		tour.CreatedAt = now
	}
	tour.UpdatedAt = now
}

// upsertTour 整文档替换行程
func upsertTour(ctx context.Context, run Runner, tour *model.Tour) error {
	doc, err := json.Marshal(tour)
	if err != nil {
		return fmt.Errorf("序列化行程文档失败: %w", err)
	}

	query := `
		INSERT INTO tours (id, name, start_date, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_date = EXCLUDED.start_date,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err = run.ExecContext(ctx, query,
		tour.ID, tour.Name, tour.StartDate, doc, tour.CreatedAt, tour.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("保存行程失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取行程，不存在时返回 (nil, nil)
func (r *TourRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tour, error) {
	query := `SELECT document FROM tours WHERE id = $1`

	var doc []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询行程失败: %w", err)
	}

	tour := &model.Tour{}
	if err := json.Unmarshal(doc, tour); err != nil {
		return nil, fmt.Errorf("解析行程文档失败: %w", err)
	}

	return tour, nil
}

// Delete 删除行程及其矩阵
func (r *TourRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tour_matrices WHERE tour_id = $1", id); err != nil {
			return fmt.Errorf("删除行程矩阵失败: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tours WHERE id = $1", id); err != nil {
			return fmt.Errorf("删除行程失败: %w", err)
		}
		return nil
	})
}

// List 列出行程
func (r *TourRepository) List(ctx context.Context, filter ListFilter) ([]*model.Tour, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}
	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", argNum))
		args = append(args, filter.StartDate)
		argNum++
	}
	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", argNum))
		args = append(args, filter.EndDate)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tours %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计行程数量失败: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT document FROM tours %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, filter.OrderBy, filter.OrderDir, argNum, argNum+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询行程列表失败: %w", err)
	}
	defer rows.Close()

	var tours []*model.Tour
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("扫描行程文档失败: %w", err)
		}
		tour := &model.Tour{}
		if err := json.Unmarshal(doc, tour); err != nil {
			return nil, 0, fmt.Errorf("解析行程文档失败: %w", err)
		}
		tours = append(tours, tour)
	}

	return tours, total, nil
}

// matrixEntry 矩阵条目的持久化形态
// map 的结构体键无法直接序列化为 JSON，用数组替代
type matrixEntry struct {
	A          uuid.UUID `json:"a"`
	B          uuid.UUID `json:"b"`
	DistanceKm float64   `json:"distance_km"`
	Coherence  float64   `json:"coherence_score"`
}

// upsertMatrix 保存行程的距离/连贯性矩阵快照
func upsertMatrix(ctx context.Context, run Runner, tourID uuid.UUID, m *matrix.Matrix) error {
	snapshot := m.Snapshot()
	entries := make([]matrixEntry, 0, len(snapshot))
	for key, entry := range snapshot {
		entries = append(entries, matrixEntry{
			A:          key.A,
			B:          key.B,
			DistanceKm: entry.DistanceKm,
			Coherence:  entry.Coherence,
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("序列化矩阵快照失败: %w", err)
	}

	query := `
		INSERT INTO tour_matrices (tour_id, entries, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tour_id) DO UPDATE SET
			entries = EXCLUDED.entries,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := run.ExecContext(ctx, query, tourID, data, time.Now()); err != nil {
		return fmt.Errorf("保存矩阵快照失败: %w", err)
	}

	return nil
}

// GetMatrix 加载行程矩阵，不存在时返回 (nil, nil)
func (r *TourRepository) GetMatrix(ctx context.Context, tourID uuid.UUID) (*matrix.Matrix, error) {
	query := `SELECT entries FROM tour_matrices WHERE tour_id = $1`

	var data []byte
	err := r.db.QueryRowContext(ctx, query, tourID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询矩阵快照失败: %w", err)
	}

	var entries []matrixEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("解析矩阵快照失败: %w", err)
	}

	restored := make(map[matrix.Key]matrix.Entry, len(entries))
	for _, e := range entries {
		restored[matrix.NewKey(e.A, e.B)] = matrix.Entry{
			DistanceKm: e.DistanceKm,
			Coherence:  e.Coherence,
		}
	}

	return matrix.Restore(restored, nil), nil
}
