package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsResponse summarizes the processes visible to the caller
type StatisticsResponse struct {
	TotalProcesses      int64             `json:"total_processes"`
	TotalEstimatedValue decimal.Decimal   `json:"total_estimated_value"`
	ByStatus            []StatusAggregate `json:"by_status"`
	ByPriority          []StatusAggregate `json:"by_priority"`
	OverdueProcesses    int64             `json:"overdue_processes"`
	RejectedSteps       int64             `json:"rejected_steps"`
	GeneratedAt         time.Time         `json:"generated_at"`
}

// StatusAggregate is one group of a GROUP BY over processes
type StatusAggregate struct {
	Key            string          `json:"key"`
	Count          int64           `json:"count"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}
