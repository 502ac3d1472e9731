package sqlexec

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrContention 所有尝试都遇到了数据库锁定
	ErrContention = errors.New("database is locked: retries exhausted")
	// ErrArity 批量命令中某一行的参数个数与语句占位符个数不一致
	ErrArity = errors.New("parameter row does not match statement arity")
	// ErrClosed 执行器已关闭
	ErrClosed = errors.New("executor is closed")
)

// StatementError 语句执行失败
type StatementError struct {
	SQL      string
	Attempts int
	Err      error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("execute %q (attempts: %d): %v", e.SQL, e.Attempts, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// IsContention 判断错误是否由数据库锁定引起
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return strings.Contains(err.Error(), "database is locked")
}
