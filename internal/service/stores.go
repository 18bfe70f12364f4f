package service

import (
	"time"

	"licitacao/internal/repository"

	"gorm.io/gorm"
)

// Stores bundles the repositories shared by the process workflow services.
type Stores struct {
	Tx              repository.TransactionManager
	Processes       repository.ProcessRepository
	Steps           repository.StepRepository
	Participants    repository.ParticipantRepository
	Departments     repository.DepartmentRepository
	Modalities      repository.ModalityRepository
	ResourceSources repository.ResourceSourceRepository
	Users           repository.UserRepository
	Audit           repository.AuditRepository
}

func NewStores(db *gorm.DB) Stores {
	return Stores{
		Tx:              repository.NewTransactionManager(db),
		Processes:       repository.NewProcessRepository(db),
		Steps:           repository.NewStepRepository(db),
		Participants:    repository.NewParticipantRepository(db),
		Departments:     repository.NewDepartmentRepository(db),
		Modalities:      repository.NewModalityRepository(db),
		ResourceSources: repository.NewResourceSourceRepository(db),
		Users:           repository.NewUserRepository(db),
		Audit:           repository.NewAuditRepository(db),
	}
}

// Options carries the collaborators that are not repositories.
type Options struct {
	Events   EventPublisher
	Location *time.Location
	Now      func() time.Time
}

type clock struct {
	now func() time.Time
	loc *time.Location
}

func newClock(opts Options) clock {
	c := clock{now: opts.Now, loc: opts.Location}
	if c.now == nil {
		c.now = time.Now
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c
}

// Now returns the current instant in the business calendar's zone.
func (c clock) Now() time.Time { return c.now().In(c.loc) }
