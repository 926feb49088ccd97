package optimizer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swagdesk/swagdesk/pkg/models"
)

const (
	costTableScan = 100
	costIndexScan = 10
	costOther     = 1
)

// Config controls an Optimizer.
type Config struct {
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
	CacheSize          int           `yaml:"cache_size"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// Optimizer wraps a database handle, fronting SELECT reads with a result
// cache while recording slow queries and index usage from execution plans.
type Optimizer struct {
	db        *sql.DB
	logger    *zap.Logger
	threshold time.Duration
	cache     *QueryCache

	mu      sync.Mutex
	slow    map[string]*models.SlowQuery
	indexes map[string]*models.IndexStats
}

// New creates an Optimizer over db. SlowQueryThreshold <= 0 defaults to
// 100ms. A nil logger disables logging.
func New(db *sql.DB, cfg Config, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 100 * time.Millisecond
	}
	return &Optimizer{
		db:        db,
		logger:    logger,
		threshold: cfg.SlowQueryThreshold,
		cache:     NewQueryCache(cfg.CacheSize, cfg.CacheTTL),
		slow:      make(map[string]*models.SlowQuery),
		indexes:   make(map[string]*models.IndexStats),
	}
}

// Cache exposes the underlying result cache.
func (o *Optimizer) Cache() *QueryCache { return o.cache }

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

// ExecuteWithMonitoring runs query, serving SELECT statements from the result
// cache when possible. Execution time is measured; queries slower than the
// threshold are recorded with a plan snapshot, and every index the plan
// credits has its usage stats bumped. Statements without result sets return a
// nil slice. Failures are logged and returned, never cached or retried.
func (o *Optimizer) ExecuteWithMonitoring(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	cacheable := isSelect(query)
	if cacheable {
		if result, ok := o.cache.Get(query, args); ok {
			return result, nil
		}
	}

	start := time.Now()
	var result []map[string]any
	var err error
	if cacheable {
		result, err = o.queryRows(ctx, query, args)
	} else {
		_, err = o.db.ExecContext(ctx, query, args...)
	}
	elapsed := time.Since(start)

	if err != nil {
		o.logger.Error("query failed",
			zap.String("query", query),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, fmt.Errorf("execute query: %w", err)
	}

	plan, planErr := o.AnalyzeQueryPlan(ctx, query, args...)
	if planErr != nil {
		plan = nil
	}

	if elapsed > o.threshold {
		o.recordSlowQuery(query, args, elapsed, plan)
	}
	if plan != nil {
		o.creditIndexes(ctx, plan)
	}

	if cacheable {
		o.cache.Put(query, args, result)
	}
	return result, nil
}

func (o *Optimizer) queryRows(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (o *Optimizer) recordSlowQuery(query string, args []any, elapsed time.Duration, plan *models.QueryPlan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.slow[query]; ok {
		existing.Frequency++
		existing.Timestamp = time.Now()
		if elapsed > existing.ExecutionTime {
			existing.ExecutionTime = elapsed
		}
		return
	}
	o.slow[query] = &models.SlowQuery{
		Query:         query,
		ExecutionTime: elapsed,
		Timestamp:     time.Now(),
		Parameters:    args,
		Plan:          plan,
		Frequency:     1,
	}
	o.logger.Warn("slow query",
		zap.String("query", query),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", o.threshold))
}

// SlowQueries returns recorded slow queries, worst first.
func (o *Optimizer) SlowQueries() []models.SlowQuery {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.SlowQuery, 0, len(o.slow))
	for _, sq := range o.slow {
		out = append(out, *sq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutionTime > out[j].ExecutionTime })
	return out
}

// IndexStats returns usage stats for every index credited so far.
func (o *Optimizer) IndexStats() []models.IndexStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.IndexStats, 0, len(o.indexes))
	for _, st := range o.indexes {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	return out
}

var (
	indexNameRe = regexp.MustCompile(`USING (?:COVERING )?INDEX (\S+)`)
	planTableRe = regexp.MustCompile(`^(?:SCAN|SEARCH) (\S+)`)
	whereColRe  = regexp.MustCompile(`(?i)([a-zA-Z_][a-zA-Z0-9_.]*)\s*(?:=|<>|<=|>=|<|>|\bLIKE\b|\bIN\b)`)
	orderByRe   = regexp.MustCompile(`(?i)ORDER\s+BY\s+([a-zA-Z0-9_.]+)`)
	joinOnRe    = regexp.MustCompile(`(?i)JOIN\s+\S+\s+(?:\S+\s+)?ON\s+([a-zA-Z_][a-zA-Z0-9_.]*)\s*=\s*([a-zA-Z_][a-zA-Z0-9_.]*)`)
)

// AnalyzeQueryPlan explains query and classifies each plan step, deriving a
// heuristic cost and index recommendations.
func (o *Optimizer) AnalyzeQueryPlan(ctx context.Context, query string, args ...any) (*models.QueryPlan, error) {
	rows, err := o.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return nil, fmt.Errorf("explain query plan: %w", err)
	}
	defer rows.Close()

	plan := &models.QueryPlan{Query: query, AnalyzedAt: time.Now()}
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("scan plan step: %w", err)
		}
		plan.Steps = append(plan.Steps, models.PlanStep{ID: id, Parent: parent, Detail: detail})

		upper := strings.ToUpper(detail)
		switch {
		case strings.Contains(upper, "USING INDEX") || strings.Contains(upper, "USING COVERING INDEX"):
			plan.UsesIndex = true
			plan.EstimatedCost += costIndexScan
			if m := indexNameRe.FindStringSubmatch(detail); m != nil {
				plan.IndexesUsed = append(plan.IndexesUsed, m[1])
			}
		case strings.Contains(upper, "USING INTEGER PRIMARY KEY") || strings.Contains(upper, "USING ROWID"):
			plan.UsesIndex = true
			plan.EstimatedCost += costIndexScan
		case strings.HasPrefix(upper, "SCAN"):
			plan.TableScans++
			plan.EstimatedCost += costTableScan
		default:
			plan.EstimatedCost += costOther
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	plan.Recommendations = recommend(query, plan)
	return plan, nil
}

// recommend derives textual index suggestions from the query text and its plan.
func recommend(query string, plan *models.QueryPlan) []string {
	var recs []string
	if plan.TableScans > 0 && !plan.UsesIndex {
		recs = append(recs, "full table scan with no index usage; consider adding an index on the filtered columns")
	}

	upper := strings.ToUpper(query)
	if idx := strings.Index(upper, "WHERE"); idx >= 0 {
		clause := query[idx+len("WHERE"):]
		seen := make(map[string]struct{})
		for _, m := range whereColRe.FindAllStringSubmatch(clause, -1) {
			col := m[1]
			if _, dup := seen[col]; dup || strings.EqualFold(col, "and") || strings.EqualFold(col, "or") {
				continue
			}
			seen[col] = struct{}{}
			recs = append(recs, fmt.Sprintf("column %s is filtered in WHERE; candidate for an index", col))
		}
	}
	if m := orderByRe.FindStringSubmatch(query); m != nil {
		recs = append(recs, fmt.Sprintf("column %s drives ORDER BY; an index would avoid sorting", m[1]))
	}
	for _, m := range joinOnRe.FindAllStringSubmatch(query, -1) {
		recs = append(recs, fmt.Sprintf("join columns %s and %s are index candidates", m[1], m[2]))
	}
	if plan.EstimatedCost > 200 {
		recs = append(recs, fmt.Sprintf("estimated cost %.0f exceeds 200; consider restructuring the query", plan.EstimatedCost))
	}
	return recs
}

// creditIndexes bumps usage counters for every index the plan reports,
// resolving uniqueness and selectivity metadata on first sight. Metadata
// lookups are best effort: failures leave the fields zeroed.
func (o *Optimizer) creditIndexes(ctx context.Context, plan *models.QueryPlan) {
	tables := make(map[string]string)
	for _, step := range plan.Steps {
		if m := planTableRe.FindStringSubmatch(step.Detail); m != nil {
			if im := indexNameRe.FindStringSubmatch(step.Detail); im != nil {
				tables[im[1]] = m[1]
			}
		}
	}

	now := time.Now()
	for _, name := range plan.IndexesUsed {
		o.mu.Lock()
		st, ok := o.indexes[name]
		if ok {
			st.UsageCount++
			st.LastUsed = now
			o.mu.Unlock()
			continue
		}
		st = &models.IndexStats{
			IndexName:  name,
			TableName:  tables[name],
			UsageCount: 1,
			LastUsed:   now,
		}
		o.indexes[name] = st
		o.mu.Unlock()

		if st.TableName != "" {
			unique, selectivity := o.indexMeta(ctx, name, st.TableName)
			o.mu.Lock()
			st.IsUnique = unique
			st.Selectivity = selectivity
			o.mu.Unlock()
		}
	}
}

// indexMeta reads the unique flag from PRAGMA index_list and estimates
// selectivity as distinct/total of the index's leading column.
func (o *Optimizer) indexMeta(ctx context.Context, index, table string) (bool, float64) {
	var unique bool
	rows, err := o.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return false, 0
	}
	for rows.Next() {
		var seq int
		var name string
		var uniq int
		var origin string
		var partial int
		if err := rows.Scan(&seq, &name, &uniq, &origin, &partial); err != nil {
			continue
		}
		if name == index {
			unique = uniq == 1
		}
	}
	rows.Close()

	var column string
	rows, err = o.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return unique, 0
	}
	if rows.Next() {
		var seqno, cid int
		if err := rows.Scan(&seqno, &cid, &column); err != nil {
			column = ""
		}
	}
	rows.Close()
	if column == "" {
		return unique, 0
	}

	var distinct, total float64
	err = o.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT %q), COUNT(*) FROM %q", column, table),
	).Scan(&distinct, &total)
	if err != nil || total == 0 {
		return unique, 0
	}
	return unique, distinct / total
}
