package repository

import (
	"context"

	"licitacao/internal/model"

	"gorm.io/gorm"
)

// AuditFilter narrows the audit trail; empty fields match everything.
type AuditFilter struct {
	EntityID string
	Action   string
	Page     int
	Limit    int
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, f AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	q := func() *gorm.DB {
		db := GetDB(ctx, r.db).Model(&model.AuditLog{})
		if f.EntityID != "" {
			db = db.Where("entity_id = ?", f.EntityID)
		}
		if f.Action != "" {
			db = db.Where("action = ?", f.Action)
		}
		return db
	}

	if err := q().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q().Preload("User").Order("created_at desc").
		Offset(pageOffset(f.Page, f.Limit)).Limit(f.Limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
