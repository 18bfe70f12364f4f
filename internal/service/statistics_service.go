package service

import (
	"context"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/shopspring/decimal"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, actor Actor) (model.StatisticsResponse, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
	now  func() time.Time
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo, now: time.Now}
}

// GetStatistics aggregates the processes visible to actor by status and
// priority, with the summed estimated value of each group.
func (s *statisticsService) GetStatistics(ctx context.Context, actor Actor) (model.StatisticsResponse, error) {
	scope := visibilityScope(actor)
	res := model.StatisticsResponse{
		TotalEstimatedValue: decimal.Zero,
		GeneratedAt:         s.now(),
	}

	byStatus, err := s.repo.GroupProcesses(ctx, scope, "status")
	if err != nil {
		return res, apperror.Internal(err, "failed to aggregate processes")
	}
	byPriority, err := s.repo.GroupProcesses(ctx, scope, "priority")
	if err != nil {
		return res, apperror.Internal(err, "failed to aggregate processes")
	}
	rejected, err := s.repo.CountRejectedSteps(ctx, scope)
	if err != nil {
		return res, apperror.Internal(err, "failed to count rejected steps")
	}

	for _, row := range byStatus {
		res.TotalProcesses += row.Count
		res.TotalEstimatedValue = res.TotalEstimatedValue.Add(row.EstimatedValue)
		if row.Key == model.ProcessStatusOverdue {
			res.OverdueProcesses = row.Count
		}
	}
	res.ByStatus = byStatus
	res.ByPriority = byPriority
	res.RejectedSteps = rejected
	return res, nil
}
