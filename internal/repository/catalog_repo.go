package repository

import (
	"context"

	"licitacao/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *model.Department) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Department, error)
	List(ctx context.Context, activeOnly bool) ([]model.Department, error)
	Update(ctx context.Context, d *model.Department) error
}

type ModalityRepository interface {
	Create(ctx context.Context, m *model.BiddingModality) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BiddingModality, error)
	List(ctx context.Context, activeOnly bool) ([]model.BiddingModality, error)
	Update(ctx context.Context, m *model.BiddingModality) error
	ReplaceSteps(ctx context.Context, modalityID uuid.UUID, steps []model.ModalityStep) error
}

type ResourceSourceRepository interface {
	Create(ctx context.Context, s *model.ResourceSource) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ResourceSource, error)
	List(ctx context.Context, activeOnly bool) ([]model.ResourceSource, error)
	Update(ctx context.Context, s *model.ResourceSource) error
}

// --- Departments ---

type departmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(ctx context.Context, d *model.Department) error {
	return GetDB(ctx, r.db).Create(d).Error
}

func (r *departmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var d model.Department
	if err := GetDB(ctx, r.db).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *departmentRepository) List(ctx context.Context, activeOnly bool) ([]model.Department, error) {
	var departments []model.Department
	q := GetDB(ctx, r.db).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *departmentRepository) Update(ctx context.Context, d *model.Department) error {
	return GetDB(ctx, r.db).Save(d).Error
}

// --- Modalities ---

type modalityRepository struct {
	db *gorm.DB
}

func NewModalityRepository(db *gorm.DB) ModalityRepository {
	return &modalityRepository{db: db}
}

func orderedSteps(db *gorm.DB) *gorm.DB {
	return db.Order("modality_steps.sequence ASC")
}

// Create inserts the modality row; its template goes through ReplaceSteps.
func (r *modalityRepository) Create(ctx context.Context, m *model.BiddingModality) error {
	return GetDB(ctx, r.db).Create(m).Error
}

func (r *modalityRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.BiddingModality, error) {
	var m model.BiddingModality
	if err := GetDB(ctx, r.db).
		Preload("Steps", orderedSteps).
		Preload("Steps.Department").
		First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *modalityRepository) List(ctx context.Context, activeOnly bool) ([]model.BiddingModality, error) {
	var modalities []model.BiddingModality
	q := GetDB(ctx, r.db).Preload("Steps", orderedSteps).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&modalities).Error; err != nil {
		return nil, err
	}
	return modalities, nil
}

func (r *modalityRepository) Update(ctx context.Context, m *model.BiddingModality) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(m).Error
}

// ReplaceSteps swaps the whole template. Existing processes keep the steps
// they were created with.
func (r *modalityRepository) ReplaceSteps(ctx context.Context, modalityID uuid.UUID, steps []model.ModalityStep) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("modality_id = ?", modalityID).Delete(&model.ModalityStep{}).Error; err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	for i := range steps {
		steps[i].ModalityID = modalityID
	}
	return db.Create(&steps).Error
}

// --- Resource sources ---

type resourceSourceRepository struct {
	db *gorm.DB
}

func NewResourceSourceRepository(db *gorm.DB) ResourceSourceRepository {
	return &resourceSourceRepository{db: db}
}

func (r *resourceSourceRepository) Create(ctx context.Context, s *model.ResourceSource) error {
	return GetDB(ctx, r.db).Create(s).Error
}

func (r *resourceSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ResourceSource, error) {
	var s model.ResourceSource
	if err := GetDB(ctx, r.db).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *resourceSourceRepository) List(ctx context.Context, activeOnly bool) ([]model.ResourceSource, error) {
	var sources []model.ResourceSource
	q := GetDB(ctx, r.db).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *resourceSourceRepository) Update(ctx context.Context, s *model.ResourceSource) error {
	return GetDB(ctx, r.db).Save(s).Error
}
