package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMigrationRunsLabels(t *testing.T) {
	before := testutil.ToFloat64(MigrationRuns.WithLabelValues("noop"))
	MigrationRuns.WithLabelValues("noop").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MigrationRuns.WithLabelValues("noop")))
}

func TestColumnsAddedExposition(t *testing.T) {
	expected := `
# HELP watcher_migration_columns_added_total Columns added by schema migrations.
# TYPE watcher_migration_columns_added_total counter
watcher_migration_columns_added_total 0
`
	assert.NoError(t, testutil.CollectAndCompare(ColumnsAdded, strings.NewReader(expected)))
}

func TestStatementAttemptsOutcomes(t *testing.T) {
	for _, outcome := range []string{OutcomeOK, OutcomeContention, OutcomeError} {
		StatementAttempts.WithLabelValues(outcome)
	}
	assert.Equal(t, 3, testutil.CollectAndCount(StatementAttempts))
}
