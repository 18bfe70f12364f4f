package repository

import (
	"context"
	"errors"

	"licitacao/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStepAlreadyCompleted is returned when a conditional completion matched no pending row.
var ErrStepAlreadyCompleted = errors.New("step already completed")

type StepRepository interface {
	CreateBatch(ctx context.Context, steps []model.ProcessStep) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error)
	ListByProcess(ctx context.Context, processID uuid.UUID) ([]model.ProcessStep, error)
	MarkCompleted(ctx context.Context, step *model.ProcessStep) error
	ListRejected(ctx context.Context, page, limit int) ([]model.ProcessStep, int64, error)
}

type stepRepository struct {
	db *gorm.DB
}

func NewStepRepository(db *gorm.DB) StepRepository {
	return &stepRepository{db: db}
}

func (r *stepRepository) CreateBatch(ctx context.Context, steps []model.ProcessStep) error {
	if len(steps) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&steps).Error
}

func (r *stepRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error) {
	var step model.ProcessStep
	if err := GetDB(ctx, r.db).Preload("Department").First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *stepRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error) {
	var step model.ProcessStep
	if err := forUpdate(GetDB(ctx, r.db)).First(&step, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *stepRepository) ListByProcess(ctx context.Context, processID uuid.UUID) ([]model.ProcessStep, error) {
	var steps []model.ProcessStep
	if err := GetDB(ctx, r.db).
		Preload("Department").
		Where("process_id = ?", processID).
		Order("sequence ASC").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

// MarkCompleted persists the completion only if the row is still pending,
// so a completion is applied at most once even without a row lock.
func (r *stepRepository) MarkCompleted(ctx context.Context, step *model.ProcessStep) error {
	res := GetDB(ctx, r.db).Model(&model.ProcessStep{}).
		Where("id = ? AND is_completed = ?", step.ID, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"outcome":      step.Outcome,
			"observations": step.Observations,
			"completed_at": step.CompletedAt,
			"completed_by": step.CompletedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStepAlreadyCompleted
	}
	return nil
}

// ListRejected returns rejected-but-approved steps of non-deleted processes, newest first.
func (r *stepRepository) ListRejected(ctx context.Context, page, limit int) ([]model.ProcessStep, int64, error) {
	var steps []model.ProcessStep
	var total int64

	base := func() *gorm.DB {
		return GetDB(ctx, r.db).Model(&model.ProcessStep{}).
			Joins("JOIN processes ON processes.id = process_steps.process_id AND processes.deleted_at IS NULL").
			Where("process_steps.outcome = ?", model.StepOutcomeRejected)
	}

	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := base().
		Preload("Process").
		Preload("Department").
		Order("process_steps.completed_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&steps).Error; err != nil {
		return nil, 0, err
	}
	return steps, total, nil
}
