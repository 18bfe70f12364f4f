package repository

import (
	"context"

	"licitacao/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *model.ProcessParticipant) error
	ListByProcess(ctx context.Context, processID uuid.UUID) ([]model.ProcessParticipant, error)
	FindDepartmentGrant(ctx context.Context, processID, departmentID uuid.UUID) (*model.ProcessParticipant, error)
	Activate(ctx context.Context, id uuid.UUID) error
	DeactivateDepartment(ctx context.Context, processID, departmentID uuid.UUID) (int64, error)
}

type participantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(ctx context.Context, p *model.ProcessParticipant) error {
	return GetDB(ctx, r.db).Create(p).Error
}

func (r *participantRepository) ListByProcess(ctx context.Context, processID uuid.UUID) ([]model.ProcessParticipant, error) {
	var participants []model.ProcessParticipant
	if err := GetDB(ctx, r.db).
		Where("process_id = ?", processID).
		Order("added_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// FindDepartmentGrant finds the department-wide record (no user) for a process.
func (r *participantRepository) FindDepartmentGrant(ctx context.Context, processID, departmentID uuid.UUID) (*model.ProcessParticipant, error) {
	var p model.ProcessParticipant
	if err := GetDB(ctx, r.db).
		Where("process_id = ? AND department_id = ? AND user_id IS NULL", processID, departmentID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ProcessParticipant{}).
		Where("id = ?", id).
		Update("is_active", true).Error
}

// DeactivateDepartment revokes every active record scoped to departmentID,
// user-specific ones included. Rows are kept for history.
func (r *participantRepository) DeactivateDepartment(ctx context.Context, processID, departmentID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.ProcessParticipant{}).
		Where("process_id = ? AND department_id = ? AND is_active = ?", processID, departmentID, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
