// Package worker runs the periodic jobs that keep derived process state
// current between user actions.
package worker

import (
	"context"
	"fmt"
	"sync"

	"licitacao/internal/logger"
	"licitacao/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StatusRefresher re-derives process statuses on a cron schedule so that
// processes past their deadline become overdue without anyone touching them.
type StatusRefresher struct {
	cron    *cron.Cron
	status  service.StatusService
	log     *zap.Logger
	mu      sync.Mutex
	running bool
	entryID cron.EntryID
}

// NewStatusRefresher builds a refresher whose schedule expressions include a
// leading seconds field.
func NewStatusRefresher(status service.StatusService, log *zap.Logger) *StatusRefresher {
	return &StatusRefresher{
		cron:   cron.New(cron.WithSeconds()),
		status: status,
		log:    log.Named("status_refresher"),
	}
}

// Start registers the job under schedule and starts the scheduler.
func (r *StatusRefresher) Start(ctx context.Context, schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("status refresher already running")
	}

	id, err := r.cron.AddFunc(schedule, func() { _, _ = r.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	r.entryID = id
	r.cron.Start()
	r.running = true
	r.log.Info("status refresher started", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running job to finish.
func (r *StatusRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.cron.Remove(r.entryID)
	r.running = false
	r.log.Info("status refresher stopped")
}

// RunOnce performs a single refresh pass with its own run id in the logs.
func (r *StatusRefresher) RunOnce(ctx context.Context) (service.RefreshResult, error) {
	log := r.log.With(zap.String("run_id", uuid.NewString()))
	res, err := r.status.RefreshStatuses(logger.WithContext(ctx, log))
	if err != nil {
		log.Error("status refresh failed", zap.Error(err))
		return res, err
	}
	log.Info("status refresh finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("updated", res.Updated))
	return res, nil
}
