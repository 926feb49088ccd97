package optimizer

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "optimizer_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL
		);
		CREATE UNIQUE INDEX idx_users_email ON users(email);
		INSERT INTO users (name, email) VALUES
			('alice', 'alice@example.com'),
			('bob', 'bob@example.com'),
			('carol', 'carol@example.com');
	`)
	require.NoError(t, err)
	return db
}

func TestSelectIsCached(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)
	ctx := context.Background()

	first, err := o.ExecuteWithMonitoring(ctx, "SELECT name FROM users WHERE id = ?", 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "alice", first[0]["name"])

	// Mutate behind the cache's back; the memoized result must be served.
	_, err = db.Exec("UPDATE users SET name = 'zelda' WHERE id = 1")
	require.NoError(t, err)

	second, err := o.ExecuteWithMonitoring(ctx, "SELECT name FROM users WHERE id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", second[0]["name"])

	stats := o.Cache().Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestNonSelectIsNeverCached(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := o.ExecuteWithMonitoring(ctx, "UPDATE users SET name = name || '!' WHERE id = ?", 2)
		require.NoError(t, err)
	}

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM users WHERE id = 2").Scan(&name))
	assert.Equal(t, "bob!!", name, "both UPDATE statements must hit the database")
	assert.Equal(t, 0, o.Cache().Stats().Entries)
}

func TestSlowQueryRecording(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{SlowQueryThreshold: time.Nanosecond}, nil)
	ctx := context.Background()

	query := "SELECT * FROM users WHERE name = ?"
	_, err := o.ExecuteWithMonitoring(ctx, query, "alice")
	require.NoError(t, err)

	slow := o.SlowQueries()
	require.Len(t, slow, 1)
	assert.Equal(t, query, slow[0].Query)
	assert.Equal(t, int64(1), slow[0].Frequency)
	assert.NotNil(t, slow[0].Plan, "first occurrence captures a plan snapshot")
}

func TestSlowQueryRepeatBumpsFrequency(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{SlowQueryThreshold: time.Nanosecond}, nil)
	ctx := context.Background()

	// A changing parameter defeats the result cache so both runs execute;
	// the slow log keys by query text, so one entry with frequency 2.
	query := "SELECT * FROM users WHERE name = ?"
	_, err := o.ExecuteWithMonitoring(ctx, query, "alice")
	require.NoError(t, err)
	_, err = o.ExecuteWithMonitoring(ctx, query, "bob")
	require.NoError(t, err)

	slow := o.SlowQueries()
	require.Len(t, slow, 1)
	assert.Equal(t, int64(2), slow[0].Frequency)
}

func TestAnalyzeQueryPlanTableScan(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)

	plan, err := o.AnalyzeQueryPlan(context.Background(), "SELECT * FROM users WHERE name = 'alice'")
	require.NoError(t, err)

	assert.False(t, plan.UsesIndex)
	assert.GreaterOrEqual(t, plan.TableScans, 1)
	assert.GreaterOrEqual(t, plan.EstimatedCost, float64(costTableScan))
	assert.NotEmpty(t, plan.Recommendations)
}

func TestAnalyzeQueryPlanIndexScan(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)

	plan, err := o.AnalyzeQueryPlan(context.Background(), "SELECT * FROM users WHERE email = 'alice@example.com'")
	require.NoError(t, err)

	assert.True(t, plan.UsesIndex)
	assert.Contains(t, plan.IndexesUsed, "idx_users_email")
	assert.Equal(t, 0, plan.TableScans)
}

func TestIndexUsageStats(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)
	ctx := context.Background()

	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		_, err := o.ExecuteWithMonitoring(ctx, "SELECT * FROM users WHERE email = ?", email)
		require.NoError(t, err)
	}

	stats := o.IndexStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "idx_users_email", stats[0].IndexName)
	assert.Equal(t, "users", stats[0].TableName)
	assert.Equal(t, int64(2), stats[0].UsageCount)
	assert.True(t, stats[0].IsUnique)
	assert.InDelta(t, 1.0, stats[0].Selectivity, 0.001, "all emails are distinct")
}

func TestFailedQueryPropagates(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)

	_, err := o.ExecuteWithMonitoring(context.Background(), "SELECT * FROM no_such_table")
	require.Error(t, err)
	assert.Equal(t, 0, o.Cache().Stats().Entries)
}

func TestRecommendationsCoverClauses(t *testing.T) {
	db := newTestDB(t)
	o := New(db, Config{}, nil)

	plan, err := o.AnalyzeQueryPlan(context.Background(),
		"SELECT * FROM users WHERE name = 'x' ORDER BY email")
	require.NoError(t, err)

	var whereRec, orderRec bool
	for _, rec := range plan.Recommendations {
		if rec == "column name is filtered in WHERE; candidate for an index" {
			whereRec = true
		}
		if rec == "column email drives ORDER BY; an index would avoid sorting" {
			orderRec = true
		}
	}
	assert.True(t, whereRec, "recommendations: %v", plan.Recommendations)
	assert.True(t, orderRec, "recommendations: %v", plan.Recommendations)
}
