// Package repository 提供抽奖服务的数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository 基础仓储
// 所有仓储实现都应该嵌入此结构
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建基础仓储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// txKey 事务上下文键
type txKey struct{}

// DB 返回数据库连接
// 如果 context 中有事务，返回事务连接
func (r *Repository) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Transaction 执行事务
// fn 中的所有数据库操作都在同一事务中执行
func (r *Repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

// Pagination 分页参数
type Pagination struct {
	Page     int   // 页码 (从 1 开始)
	PageSize int   // 每页数量
	Total    int64 // 总数 (查询后填充)
}

// Offset 计算偏移量
func (p *Pagination) Offset() int {
	if p.Page <= 0 {
		p.Page = 1
	}
	return (p.Page - 1) * p.PageSize
}

// Limit 返回限制数量
func (p *Pagination) Limit() int {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	return p.PageSize
}

// nowMilli 返回当前毫秒时间戳
func nowMilli() int64 {
	return time.Now().UnixMilli()
}
