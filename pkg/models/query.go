package models

import "time"

// PlanStep is one row of a query execution plan.
type PlanStep struct {
	ID     int    `json:"id"`
	Parent int    `json:"parent"`
	Detail string `json:"detail"`
}

// QueryPlan is the analyzed execution plan for a single query.
type QueryPlan struct {
	Query           string     `json:"query"`
	Steps           []PlanStep `json:"steps"`
	UsesIndex       bool       `json:"uses_index"`
	IndexesUsed     []string   `json:"indexes_used"`
	TableScans      int        `json:"table_scans"`
	EstimatedCost   float64    `json:"estimated_cost"`
	Recommendations []string   `json:"recommendations"`
	AnalyzedAt      time.Time  `json:"analyzed_at"`
}

// SlowQuery records the worst observed execution of a query.
type SlowQuery struct {
	Query         string        `json:"query"`
	ExecutionTime time.Duration `json:"execution_time"`
	Timestamp     time.Time     `json:"timestamp"`
	Parameters    []any         `json:"parameters,omitempty"`
	Plan          *QueryPlan    `json:"plan,omitempty"`
	Frequency     int64         `json:"frequency"`
}

// IndexStats tracks how often a plan credits an index.
type IndexStats struct {
	IndexName   string    `json:"index_name"`
	TableName   string    `json:"table_name"`
	UsageCount  int64     `json:"usage_count"`
	LastUsed    time.Time `json:"last_used"`
	Selectivity float64   `json:"selectivity"`
	IsUnique    bool      `json:"is_unique"`
}
