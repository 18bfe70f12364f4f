package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"licitacao/internal/event"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the relational store. Each fake
// repository below is a view over the same maps.
type memStore struct {
	mu           sync.Mutex
	processes    map[uuid.UUID]model.Process
	steps        map[uuid.UUID]model.ProcessStep
	participants []model.ProcessParticipant
	departments  map[uuid.UUID]model.Department
	modalities   map[uuid.UUID]model.BiddingModality
	sources      map[uuid.UUID]model.ResourceSource
	users        map[uuid.UUID]model.User
	audit        []model.AuditLog
	seq          int
	batches      int
}

func newMemStore() *memStore {
	return &memStore{
		processes:   map[uuid.UUID]model.Process{},
		steps:       map[uuid.UUID]model.ProcessStep{},
		departments: map[uuid.UUID]model.Department{},
		modalities:  map[uuid.UUID]model.BiddingModality{},
		sources:     map[uuid.UUID]model.ResourceSource{},
		users:       map[uuid.UUID]model.User{},
	}
}

func (m *memStore) stores() Stores {
	return Stores{
		Tx:              passthroughTx{},
		Processes:       fakeProcesses{m},
		Steps:           fakeSteps{m},
		Participants:    fakeParticipants{m},
		Departments:     fakeDepartments{m},
		Modalities:      fakeModalities{m},
		ResourceSources: fakeSources{m},
		Users:           fakeUsers{m},
		Audit:           fakeAudit{m},
	}
}

// tick gives created rows strictly increasing timestamps.
func (m *memStore) tick() time.Time {
	m.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) stepsOf(processID uuid.UUID) []model.ProcessStep {
	var out []model.ProcessStep
	for _, s := range m.steps {
		if s.ProcessID == processID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (m *memStore) visible(p model.Process, scope *repository.VisibilityScope) bool {
	if scope == nil {
		return true
	}
	for _, part := range m.participants {
		if part.ProcessID != p.ID || !part.IsActive {
			continue
		}
		if part.UserID != nil && *part.UserID == scope.UserID {
			return true
		}
		if part.UserID == nil && part.DepartmentID != nil && scope.DepartmentID != nil && *part.DepartmentID == *scope.DepartmentID {
			return true
		}
	}
	return false
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audit))
	for _, a := range m.audit {
		out = append(out, a.Action)
	}
	return out
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- processes ---

type fakeProcesses struct{ m *memStore }

func (f fakeProcesses) Create(_ context.Context, p *model.Process) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = f.m.tick()
	p.UpdatedAt = p.CreatedAt
	row := *p
	row.Steps = nil
	f.m.processes[p.ID] = row
	return nil
}

func (f fakeProcesses) load(id uuid.UUID, deleted *bool, withSteps bool) (*model.Process, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p, ok := f.m.processes[id]
	if !ok || (deleted != nil && p.DeletedAt.Valid != *deleted) {
		return nil, gorm.ErrRecordNotFound
	}
	if withSteps {
		p.Steps = f.m.stepsOf(id)
	}
	return &p, nil
}

var (
	live = false
	dead = true
)

func (f fakeProcesses) FindByID(_ context.Context, id uuid.UUID) (*model.Process, error) {
	return f.load(id, &live, true)
}

func (f fakeProcesses) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*model.Process, error) {
	return f.load(id, &live, false)
}

func (f fakeProcesses) FindDeletedByID(_ context.Context, id uuid.UUID) (*model.Process, error) {
	return f.load(id, &dead, false)
}

func (f fakeProcesses) FindAnyByID(_ context.Context, id uuid.UUID) (*model.Process, error) {
	return f.load(id, nil, false)
}

func (f fakeProcesses) PbdocExists(_ context.Context, pbdoc string, excludeID uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, p := range f.m.processes {
		if p.PbdocNumber == pbdoc && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeProcesses) Update(_ context.Context, p *model.Process) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.processes[p.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	row := *p
	row.Steps = nil
	row.UpdatedAt = f.m.tick()
	f.m.processes[p.ID] = row
	return nil
}

func (f fakeProcesses) SetStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p, ok := f.m.processes[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	f.m.processes[id] = p
	return true, nil
}

func (f fakeProcesses) SoftDelete(_ context.Context, id, deletedBy uuid.UUID, at time.Time) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p := f.m.processes[id]
	p.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	p.DeletedBy = &deletedBy
	f.m.processes[id] = p
	return nil
}

func (f fakeProcesses) Restore(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	p := f.m.processes[id]
	p.DeletedAt = gorm.DeletedAt{}
	p.DeletedBy = nil
	f.m.processes[id] = p
	return nil
}

func (f fakeProcesses) HardDelete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.processes, id)
	for sid, s := range f.m.steps {
		if s.ProcessID == id {
			delete(f.m.steps, sid)
		}
	}
	kept := f.m.participants[:0]
	for _, part := range f.m.participants {
		if part.ProcessID != id {
			kept = append(kept, part)
		}
	}
	f.m.participants = kept
	return nil
}

func (f fakeProcesses) List(_ context.Context, filter repository.ProcessFilter) ([]model.Process, int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.Process
	for _, p := range f.m.processes {
		if p.DeletedAt.Valid || !f.m.visible(p, filter.Scope) {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != nil && (p.CurrentDepartmentID == nil || *p.CurrentDepartmentID != *filter.DepartmentID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f fakeProcesses) ListDeleted(_ context.Context, _, _ int) ([]model.Process, int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.Process
	for _, p := range f.m.processes {
		if p.DeletedAt.Valid {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (f fakeProcesses) EachOpenBatch(_ context.Context, size int, fn func(batch []model.Process) error) error {
	f.m.mu.Lock()
	var open []model.Process
	for _, p := range f.m.processes {
		if p.DeletedAt.Valid || p.Status == model.ProcessStatusCompleted || p.Status == model.ProcessStatusCanceled {
			continue
		}
		p.Steps = f.m.stepsOf(p.ID)
		open = append(open, p)
	}
	f.m.mu.Unlock()

	for start := 0; start < len(open); start += size {
		end := start + size
		if end > len(open) {
			end = len(open)
		}
		f.m.batches++
		if err := fn(open[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// --- steps ---

type fakeSteps struct{ m *memStore }

func (f fakeSteps) CreateBatch(_ context.Context, steps []model.ProcessStep) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i := range steps {
		if steps[i].ID == uuid.Nil {
			steps[i].ID = uuid.New()
		}
		f.m.steps[steps[i].ID] = steps[i]
	}
	return nil
}

func (f fakeSteps) FindByID(_ context.Context, id uuid.UUID) (*model.ProcessStep, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.steps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (f fakeSteps) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ProcessStep, error) {
	return f.FindByID(ctx, id)
}

func (f fakeSteps) ListByProcess(_ context.Context, processID uuid.UUID) ([]model.ProcessStep, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return f.m.stepsOf(processID), nil
}

func (f fakeSteps) MarkCompleted(_ context.Context, step *model.ProcessStep) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	stored, ok := f.m.steps[step.ID]
	if !ok || stored.IsCompleted {
		return repository.ErrStepAlreadyCompleted
	}
	stored.IsCompleted = true
	stored.Outcome = step.Outcome
	stored.Observations = step.Observations
	stored.CompletedAt = step.CompletedAt
	stored.CompletedBy = step.CompletedBy
	f.m.steps[step.ID] = stored
	return nil
}

func (f fakeSteps) ListRejected(_ context.Context, _, _ int) ([]model.ProcessStep, int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.ProcessStep
	for _, s := range f.m.steps {
		p, ok := f.m.processes[s.ProcessID]
		if !ok || p.DeletedAt.Valid || s.Outcome != model.StepOutcomeRejected {
			continue
		}
		s.Process = &p
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

// --- participants ---

type fakeParticipants struct{ m *memStore }

func (f fakeParticipants) Create(_ context.Context, p *model.ProcessParticipant) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.m.participants = append(f.m.participants, *p)
	return nil
}

func (f fakeParticipants) ListByProcess(_ context.Context, processID uuid.UUID) ([]model.ProcessParticipant, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.ProcessParticipant
	for _, p := range f.m.participants {
		if p.ProcessID == processID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeParticipants) FindDepartmentGrant(_ context.Context, processID, departmentID uuid.UUID) (*model.ProcessParticipant, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, p := range f.m.participants {
		if p.ProcessID == processID && p.UserID == nil && p.DepartmentID != nil && *p.DepartmentID == departmentID {
			found := p
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeParticipants) Activate(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i := range f.m.participants {
		if f.m.participants[i].ID == id {
			f.m.participants[i].IsActive = true
		}
	}
	return nil
}

func (f fakeParticipants) DeactivateDepartment(_ context.Context, processID, departmentID uuid.UUID) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for i := range f.m.participants {
		p := &f.m.participants[i]
		if p.ProcessID == processID && p.IsActive && p.DepartmentID != nil && *p.DepartmentID == departmentID {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

// --- catalog ---

type fakeDepartments struct{ m *memStore }

func (f fakeDepartments) Create(_ context.Context, d *model.Department) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	f.m.departments[d.ID] = *d
	return nil
}

func (f fakeDepartments) FindByID(_ context.Context, id uuid.UUID) (*model.Department, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	d, ok := f.m.departments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (f fakeDepartments) List(_ context.Context, activeOnly bool) ([]model.Department, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.Department
	for _, d := range f.m.departments {
		if !activeOnly || d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeDepartments) Update(ctx context.Context, d *model.Department) error {
	return f.Create(ctx, d)
}

type fakeModalities struct{ m *memStore }

func (f fakeModalities) Create(_ context.Context, mod *model.BiddingModality) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if mod.ID == uuid.Nil {
		mod.ID = uuid.New()
	}
	f.m.modalities[mod.ID] = *mod
	return nil
}

func (f fakeModalities) FindByID(_ context.Context, id uuid.UUID) (*model.BiddingModality, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	mod, ok := f.m.modalities[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	mod.Steps = append([]model.ModalityStep(nil), mod.Steps...)
	return &mod, nil
}

func (f fakeModalities) List(_ context.Context, activeOnly bool) ([]model.BiddingModality, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.BiddingModality
	for _, mod := range f.m.modalities {
		if !activeOnly || mod.IsActive {
			out = append(out, mod)
		}
	}
	return out, nil
}

func (f fakeModalities) Update(_ context.Context, mod *model.BiddingModality) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	stored := f.m.modalities[mod.ID]
	row := *mod
	row.Steps = stored.Steps
	f.m.modalities[mod.ID] = row
	return nil
}

func (f fakeModalities) ReplaceSteps(_ context.Context, modalityID uuid.UUID, steps []model.ModalityStep) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	mod := f.m.modalities[modalityID]
	mod.Steps = nil
	for _, s := range steps {
		s.ID = uuid.New()
		s.ModalityID = modalityID
		mod.Steps = append(mod.Steps, s)
	}
	f.m.modalities[modalityID] = mod
	return nil
}

type fakeSources struct{ m *memStore }

func (f fakeSources) Create(_ context.Context, s *model.ResourceSource) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.m.sources[s.ID] = *s
	return nil
}

func (f fakeSources) FindByID(_ context.Context, id uuid.UUID) (*model.ResourceSource, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.sources[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (f fakeSources) List(_ context.Context, activeOnly bool) ([]model.ResourceSource, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.ResourceSource
	for _, s := range f.m.sources {
		if !activeOnly || s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSources) Update(ctx context.Context, s *model.ResourceSource) error {
	return f.Create(ctx, s)
}

// --- users ---

type fakeUsers struct{ m *memStore }

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.m.users[u.ID] = *u
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (f fakeUsers) find(match func(model.User) bool) (*model.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u model.User) bool { return u.Email == email })
}

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u model.User) bool { return u.Username == username })
}

func (f fakeUsers) List(_ context.Context, departmentID *uuid.UUID, _, _ int) ([]model.User, int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.User
	for _, u := range f.m.users {
		if departmentID == nil || (u.DepartmentID != nil && *u.DepartmentID == *departmentID) {
			out = append(out, u)
		}
	}
	return out, int64(len(out)), nil
}

func (f fakeUsers) Update(ctx context.Context, u *model.User) error {
	return f.Create(ctx, u)
}

func (f fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.users, id)
	return nil
}

// --- audit ---

type fakeAudit struct{ m *memStore }

func (f fakeAudit) Log(_ context.Context, entry *model.AuditLog) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	entry.ID = uuid.New()
	f.m.audit = append(f.m.audit, *entry)
	return nil
}

func (f fakeAudit) List(_ context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.AuditLog
	for _, a := range f.m.audit {
		if filter.EntityID != "" && a.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && a.Action != filter.Action {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

// --- events ---

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evt event.Event) {
	m.Called(ctx, evt)
}

func (m *MockPublisher) eventTypes() []string {
	var out []string
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			out = append(out, call.Arguments.Get(1).(event.Event).Type)
		}
	}
	return out
}
