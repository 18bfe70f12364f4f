package service

import (
	"context"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/logger"
	"licitacao/internal/model"

	"go.uber.org/zap"
)

// DeriveStatus computes a process status from its steps and deadline. The
// first matching rule wins:
//
//	canceled stays canceled
//	every step completed (and at least one step) -> completed
//	deadline before now -> overdue
//	some step completed -> in_progress
//	otherwise -> draft
func DeriveStatus(current string, steps []model.ProcessStep, deadline *time.Time, now time.Time) string {
	if current == model.ProcessStatusCanceled {
		return model.ProcessStatusCanceled
	}
	completed := 0
	for i := range steps {
		if steps[i].IsCompleted {
			completed++
		}
	}
	if len(steps) > 0 && completed == len(steps) {
		return model.ProcessStatusCompleted
	}
	if deadline != nil && deadline.Before(now) {
		return model.ProcessStatusOverdue
	}
	if completed > 0 {
		return model.ProcessStatusInProgress
	}
	return model.ProcessStatusDraft
}

type RefreshResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// StatusService re-derives statuses that change with time alone, such as a
// deadline passing.
type StatusService interface {
	RefreshStatuses(ctx context.Context) (RefreshResult, error)
}

// refreshBatchSize bounds how many processes one refresh pass holds in memory.
const refreshBatchSize = 200

type statusService struct {
	stores    Stores
	clock     clock
	batchSize int
}

func NewStatusService(stores Stores, opts Options) StatusService {
	return &statusService{stores: stores, clock: newClock(opts), batchSize: refreshBatchSize}
}

func (s *statusService) RefreshStatuses(ctx context.Context) (RefreshResult, error) {
	var res RefreshResult
	now := s.clock.Now()

	err := s.stores.Processes.EachOpenBatch(ctx, s.batchSize, func(batch []model.Process) error {
		for i := range batch {
			res.Scanned++
			if s.refreshOne(ctx, &batch[i], now) {
				res.Updated++
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return res, apperror.Internal(err, "failed to scan open processes")
	}
	return res, nil
}

// refreshOne persists p's derived status when it drifted. Failures are
// logged and reported as not updated.
func (s *statusService) refreshOne(ctx context.Context, p *model.Process, now time.Time) bool {
	log := logger.FromContext(ctx)
	next := DeriveStatus(p.Status, p.Steps, p.Deadline, now)
	if next == p.Status {
		return false
	}

	prev := p.Status
	changed := false
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		changed, err = s.stores.Processes.SetStatus(txCtx, p.ID, prev, next)
		if err != nil {
			return apperror.Internal(err, "failed to update status")
		}
		if !changed {
			return nil
		}
		p.Status = next
		return recordAudit(txCtx, s.stores.Audit, nil, model.ActionRefreshStatus, p, map[string]interface{}{
			"from": prev,
			"to":   next,
		})
	})
	if err != nil {
		log.Error("status refresh failed", zap.String("pbdoc", p.PbdocNumber), zap.Error(err))
		return false
	}
	if !changed {
		return false
	}
	log.Info("process status refreshed",
		zap.String("pbdoc", p.PbdocNumber),
		zap.String("from", prev),
		zap.String("to", next))
	return true
}
