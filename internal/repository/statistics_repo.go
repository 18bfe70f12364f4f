package repository

import (
	"context"
	"fmt"

	"licitacao/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	GroupProcesses(ctx context.Context, scope *VisibilityScope, column string) ([]model.StatusAggregate, error)
	CountRejectedSteps(ctx context.Context, scope *VisibilityScope) (int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

var groupableColumns = map[string]bool{"status": true, "priority": true}

// GroupProcesses counts visible processes and sums their estimated value per
// distinct value of column ("status" or "priority").
func (r *statisticsRepository) GroupProcesses(ctx context.Context, scope *VisibilityScope, column string) ([]model.StatusAggregate, error) {
	if !groupableColumns[column] {
		return nil, fmt.Errorf("cannot group processes by %q", column)
	}

	var rows []model.StatusAggregate
	q := applyScope(GetDB(ctx, r.db).Model(&model.Process{}), scope)
	if err := q.
		Select(fmt.Sprintf("processes.%s AS key, COUNT(*) AS count, COALESCE(SUM(processes.estimated_value), 0) AS estimated_value", column)).
		Group("processes." + column).
		Order("key ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group processes by %s: %w", column, err)
	}
	return rows, nil
}

func (r *statisticsRepository) CountRejectedSteps(ctx context.Context, scope *VisibilityScope) (int64, error) {
	var count int64
	q := GetDB(ctx, r.db).Model(&model.ProcessStep{}).
		Joins("JOIN processes ON processes.id = process_steps.process_id AND processes.deleted_at IS NULL").
		Where("process_steps.outcome = ?", model.StepOutcomeRejected)
	if err := applyScope(q, scope).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rejected steps: %w", err)
	}
	return count, nil
}
