// Package metrics 定义持久层对外暴露的 prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watcher"

// 语句执行结果标签
const (
	OutcomeOK         = "ok"
	OutcomeContention = "contention"
	OutcomeError      = "error"
)

var (
	// StatementAttempts 每一次语句尝试，按结果区分
	StatementAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sqlexec",
		Name:      "attempts_total",
		Help:      "Statement attempts by outcome.",
	}, []string{"outcome"})

	// LockRetries 因数据库锁定而进行的重试次数
	LockRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sqlexec",
		Name:      "lock_retries_total",
		Help:      "Retries caused by a locked database.",
	})

	// RetriesExhausted 重试次数耗尽的语句数
	RetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sqlexec",
		Name:      "retries_exhausted_total",
		Help:      "Statements abandoned after every attempt hit a locked database.",
	})

	// StatementDuration 单条命令（含重试）的耗时
	StatementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sqlexec",
		Name:      "statement_duration_seconds",
		Help:      "Time spent executing a command including retries.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5},
	}, []string{"kind"})

	// MigrationRuns 迁移运行次数，按结果区分
	MigrationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "migration",
		Name:      "runs_total",
		Help:      "Schema migration runs by result.",
	}, []string{"result"})

	// ColumnsAdded 迁移中新增的列数
	ColumnsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "migration",
		Name:      "columns_added_total",
		Help:      "Columns added by schema migrations.",
	})

	// Backups 迁移前创建的备份数
	Backups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "migration",
		Name:      "backups_total",
		Help:      "Database backups taken before migrations by result.",
	}, []string{"result"})
)
