package repository

import (
	"context"
	"time"

	"licitacao/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VisibilityScope restricts process queries to what one non-admin user may
// see through active participant records. A nil scope is unrestricted.
type VisibilityScope struct {
	UserID       uuid.UUID
	DepartmentID *uuid.UUID
}

// ProcessFilter is the single filter value accepted by process listings.
// Zero-valued fields do not filter.
type ProcessFilter struct {
	Scope            *VisibilityScope
	Status           string
	Priority         string
	ModalityID       *uuid.UUID
	ResourceSourceID *uuid.UUID
	DepartmentID     *uuid.UUID
	ResponsibleID    *uuid.UUID
	Search           string
	DeadlineFrom     *time.Time
	DeadlineTo       *time.Time
	Page             int
	Limit            int
}

type ProcessRepository interface {
	Create(ctx context.Context, p *model.Process) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Process, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Process, error)
	FindDeletedByID(ctx context.Context, id uuid.UUID) (*model.Process, error)
	FindAnyByID(ctx context.Context, id uuid.UUID) (*model.Process, error)
	PbdocExists(ctx context.Context, pbdoc string, excludeID uuid.UUID) (bool, error)
	Update(ctx context.Context, p *model.Process) error
	SetStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ProcessFilter) ([]model.Process, int64, error)
	ListDeleted(ctx context.Context, page, limit int) ([]model.Process, int64, error)
	EachOpenBatch(ctx context.Context, size int, fn func(batch []model.Process) error) error
}

type processRepository struct {
	db *gorm.DB
}

func NewProcessRepository(db *gorm.DB) ProcessRepository {
	return &processRepository{db: db}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Modality").
		Preload("ResourceSource").
		Preload("Responsible").
		Preload("CurrentDepartment").
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("process_steps.sequence ASC")
		}).
		Preload("Steps.Department")
}

func (r *processRepository) Create(ctx context.Context, p *model.Process) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(p).Error
}

func (r *processRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Process, error) {
	var p model.Process
	if err := withDetails(GetDB(ctx, r.db)).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *processRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Process, error) {
	var p model.Process
	if err := forUpdate(GetDB(ctx, r.db)).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *processRepository) FindDeletedByID(ctx context.Context, id uuid.UUID) (*model.Process, error) {
	var p model.Process
	if err := GetDB(ctx, r.db).Unscoped().
		Where("deleted_at IS NOT NULL").
		First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *processRepository) FindAnyByID(ctx context.Context, id uuid.UUID) (*model.Process, error) {
	var p model.Process
	if err := GetDB(ctx, r.db).Unscoped().First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// PbdocExists checks uniqueness across active and soft-deleted processes.
func (r *processRepository) PbdocExists(ctx context.Context, pbdoc string, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Unscoped().Model(&model.Process{}).
		Where("pbdoc_number = ? AND id <> ?", pbdoc, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *processRepository) Update(ctx context.Context, p *model.Process) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(p).Error
}

// SetStatus moves a process from one status to another only if nobody
// changed it in between. It reports whether the row was updated.
func (r *processRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Process{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// SoftDelete sets the deletion marker without touching updated_at, so a
// later Restore yields the exact prior row.
func (r *processRepository) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Process{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"deleted_at": at, "deleted_by": deletedBy}).Error
}

func (r *processRepository) Restore(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Unscoped().Model(&model.Process{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"deleted_at": nil, "deleted_by": nil}).Error
}

// HardDelete removes the process with its steps and participants.
func (r *processRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("process_id = ?", id).Delete(&model.ProcessParticipant{}).Error; err != nil {
		return err
	}
	if err := db.Where("process_id = ?", id).Delete(&model.ProcessStep{}).Error; err != nil {
		return err
	}
	return db.Unscoped().Where("id = ?", id).Delete(&model.Process{}).Error
}

func applyScope(q *gorm.DB, scope *VisibilityScope) *gorm.DB {
	if scope == nil {
		return q
	}
	if scope.DepartmentID == nil {
		return q.Where(`EXISTS (SELECT 1 FROM process_participants pp
			WHERE pp.process_id = processes.id AND pp.is_active = ? AND pp.user_id = ?)`,
			true, scope.UserID)
	}
	return q.Where(`EXISTS (SELECT 1 FROM process_participants pp
		WHERE pp.process_id = processes.id AND pp.is_active = ?
		AND (pp.user_id = ? OR (pp.user_id IS NULL AND pp.department_id = ?)))`,
		true, scope.UserID, *scope.DepartmentID)
}

func applyProcessFilter(q *gorm.DB, f ProcessFilter) *gorm.DB {
	q = applyScope(q, f.Scope)
	if f.Status != "" {
		q = q.Where("processes.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("processes.priority = ?", f.Priority)
	}
	if f.ModalityID != nil {
		q = q.Where("processes.modality_id = ?", *f.ModalityID)
	}
	if f.ResourceSourceID != nil {
		q = q.Where("processes.resource_source_id = ?", *f.ResourceSourceID)
	}
	if f.DepartmentID != nil {
		q = q.Where("processes.current_department_id = ?", *f.DepartmentID)
	}
	if f.ResponsibleID != nil {
		q = q.Where("processes.responsible_id = ?", *f.ResponsibleID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("(processes.pbdoc_number ILIKE ? OR processes.description ILIKE ?)", like, like)
	}
	if f.DeadlineFrom != nil {
		q = q.Where("processes.deadline >= ?", *f.DeadlineFrom)
	}
	if f.DeadlineTo != nil {
		q = q.Where("processes.deadline <= ?", *f.DeadlineTo)
	}
	return q
}

func (r *processRepository) List(ctx context.Context, f ProcessFilter) ([]model.Process, int64, error) {
	var processes []model.Process
	var total int64

	db := GetDB(ctx, r.db)
	if err := applyProcessFilter(db.Model(&model.Process{}), f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := applyProcessFilter(db.Model(&model.Process{}), f).
		Preload("Modality").
		Preload("ResourceSource").
		Preload("Responsible").
		Preload("CurrentDepartment").
		Order("processes.created_at DESC").
		Offset(pageOffset(f.Page, f.Limit)).
		Limit(f.Limit).
		Find(&processes).Error
	if err != nil {
		return nil, 0, err
	}
	return processes, total, nil
}

func (r *processRepository) ListDeleted(ctx context.Context, page, limit int) ([]model.Process, int64, error) {
	var processes []model.Process
	var total int64

	db := GetDB(ctx, r.db).Unscoped()
	if err := db.Model(&model.Process{}).Where("deleted_at IS NOT NULL").Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Where("deleted_at IS NOT NULL").
		Order("deleted_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&processes).Error; err != nil {
		return nil, 0, err
	}
	return processes, total, nil
}

// EachOpenBatch walks non-deleted processes whose status may still change
// on its own, size rows at a time with their steps. An error from fn stops
// the walk.
func (r *processRepository) EachOpenBatch(ctx context.Context, size int, fn func(batch []model.Process) error) error {
	var batch []model.Process
	return GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("process_steps.sequence ASC")
		}).
		Where("status NOT IN ?", []string{model.ProcessStatusCompleted, model.ProcessStatusCanceled}).
		FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
