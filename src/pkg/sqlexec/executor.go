// Package sqlexec 对单文件 SQLite 数据库执行语句
//
// 同一时刻只允许一个写入者持有数据库锁，其他进程（或同进程的另一条连接）
// 写入时会得到 "database is locked"。执行器在这种情况下按固定间隔重试，
// 其他错误立即返回。
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/watcher-go/watcher-go/src/metrics"
)

const (
	DefaultMaxAttempts   = 5
	DefaultRetryInterval = time.Second
	DefaultBusyTimeout   = 30 * time.Second
)

// Options 执行器配置
type Options struct {
	// Path 数据库文件路径
	Path string
	// BusyTimeout 连接级别的 busy_timeout
	BusyTimeout time.Duration
	// JournalMode 留空表示不修改
	JournalMode string
	// MaxAttempts 遇到锁定时的最大尝试次数（含首次）
	MaxAttempts int
	// RetryInterval 两次尝试之间的等待
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryInterval < 0 {
		o.RetryInterval = 0
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = DefaultBusyTimeout
	}
	return o
}

// DSN 生成 modernc.org/sqlite 使用的连接串
func (o Options) DSN() string {
	o = o.withDefaults()
	pragmas := []string{fmt.Sprintf("_pragma=busy_timeout(%d)", o.BusyTimeout.Milliseconds())}
	if o.JournalMode != "" {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=journal_mode(%s)", strings.ToUpper(o.JournalMode)))
	}
	return o.Path + "?" + strings.Join(pragmas, "&")
}

// Executor 进程内唯一的数据库句柄，所有语句都经由它执行
type Executor struct {
	db            *sql.DB
	path          string
	maxAttempts   int
	retryInterval time.Duration

	// 普通语句持有读锁，备份持有写锁
	mu     sync.RWMutex
	closed atomic.Bool

	sleep   func(ctx context.Context, d time.Duration) error
	attempt func(ctx context.Context, cmd Command) (*Result, error)
}

// Open 打开（必要时创建）数据库文件
func Open(opts Options) (*Executor, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite 单写入
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, opts), nil
}

// New 使用已打开的连接构造执行器
func New(db *sql.DB, opts Options) *Executor {
	opts = opts.withDefaults()
	e := &Executor{
		db:            db,
		path:          opts.Path,
		maxAttempts:   opts.MaxAttempts,
		retryInterval: opts.RetryInterval,
		sleep:         sleepContext,
	}
	e.attempt = e.run
	return e
}

// DB 返回底层连接，供 golang-migrate 等需要 *sql.DB 的组件使用
func (e *Executor) DB() *sql.DB {
	return e.db
}

// Path 返回数据库文件路径
func (e *Executor) Path() string {
	return e.path
}

// Close 关闭数据库，正常运行期间不应调用
func (e *Executor) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Close()
}

// Execute 执行一条命令
// 遇到数据库锁定时最多尝试 maxAttempts 次，两次尝试之间固定等待 retryInterval。
// 所有尝试都失败时返回的错误满足 errors.Is(err, ErrContention)。
func (e *Executor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	kind := "statement"
	if cmd.IsBatch() {
		kind = "batch"
	}
	start := time.Now()
	defer func() {
		metrics.StatementDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if cmd.IsBatch() {
		if err := checkArity(cmd); err != nil {
			metrics.StatementAttempts.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, &StatementError{SQL: cmd.String(), Err: err}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.LockRetries.Inc()
			if err := e.sleep(ctx, e.retryInterval); err != nil {
				return nil, &StatementError{SQL: cmd.String(), Attempts: attempt - 1, Err: err}
			}
		}

		res, err := e.attempt(ctx, cmd)
		if err == nil {
			metrics.StatementAttempts.WithLabelValues(metrics.OutcomeOK).Inc()
			return res, nil
		}
		lastErr = err

		logrus.WithFields(logrus.Fields{
			"component": "sqlexec",
			"statement": cmd.String(),
			"attempt":   attempt,
		}).WithError(err).Error("语句执行失败")

		if !IsContention(err) {
			metrics.StatementAttempts.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, &StatementError{SQL: cmd.String(), Attempts: attempt, Err: err}
		}
		metrics.StatementAttempts.WithLabelValues(metrics.OutcomeContention).Inc()
	}

	metrics.RetriesExhausted.Inc()
	logrus.WithFields(logrus.Fields{
		"component": "sqlexec",
		"statement": cmd.String(),
	}).Errorf("数据库持续被锁定，已放弃执行（共尝试 %d 次）", e.maxAttempts)
	return nil, &StatementError{
		SQL:      cmd.String(),
		Attempts: e.maxAttempts,
		Err:      fmt.Errorf("%w: %v", ErrContention, lastErr),
	}
}

// Snapshot 在独占状态下执行 fn，期间其他语句都会等待
// 进入前会把 WAL 中的内容合并回主文件，fn 内可以安全地复制数据库文件。
// fn 内不能调用 Execute。
func (e *Executor) Snapshot(ctx context.Context, fn func() error) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint before snapshot: %w", err)
	}
	return fn()
}

// run 执行一次尝试
func (e *Executor) run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.IsBatch() {
		return e.runBatch(ctx, cmd)
	}
	if cmd.returnsRows() {
		return e.runQuery(ctx, cmd)
	}
	r, err := e.db.ExecContext(ctx, cmd.SQL, cmd.Args...)
	if err != nil {
		return nil, err
	}
	affected, _ := r.RowsAffected()
	return &Result{RowsAffected: affected}, nil
}

func (e *Executor) runQuery(ctx context.Context, cmd Command) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, cmd.SQL, cmd.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[c] = values[i]
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// runBatch 在一个事务中用同一条预编译语句执行所有参数行
func (e *Executor) runBatch(ctx context.Context, cmd Command) (*Result, error) {
	res := &Result{}
	if len(cmd.Batch) == 0 {
		return res, nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, cmd.SQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, args := range cmd.Batch {
		r, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, err
		}
		n, _ := r.RowsAffected()
		res.RowsAffected += n
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// checkArity 检查批量参数行与语句占位符个数是否一致
func checkArity(cmd Command) error {
	want := countPlaceholders(cmd.SQL)
	for i, row := range cmd.Batch {
		if len(row) != want {
			return fmt.Errorf("%w: row %d has %d values, statement expects %d", ErrArity, i, len(row), want)
		}
	}
	return nil
}

// countPlaceholders 返回语句需要的位置参数个数
// 与 SQLite 的编号规则一致：?NNN 指定编号，不带编号的 ? 取当前最大编号加一，
// 结果为最大编号。注释与引号内的 ? 不计入。:name/@name/$name 命名参数不支持。
func countPlaceholders(query string) int {
	s := normalizeSQL(query)
	highest := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j == i+1 {
			highest++
			continue
		}
		if n, err := strconv.Atoi(s[i+1 : j]); err == nil && n > highest {
			highest = n
		}
		i = j - 1
	}
	return highest
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
