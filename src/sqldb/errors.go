package sqldb

import (
	"errors"

	"github.com/watcher-go/watcher-go/src/pkg/schema"
	"github.com/watcher-go/watcher-go/src/pkg/sqlexec"
)

var (
	// ErrIdentification 调用方没有给出恰好一个行标识
	ErrIdentification = errors.New("exactly one row identifier must be given")
	// ErrUnknownColumn 写入的列不存在于表中
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNoRows 查询没有结果
	ErrNoRows = errors.New("no rows")
	// ErrNoFields 没有可写入的字段
	ErrNoFields = errors.New("no fields to write")
	// ErrInvalidIdentifier 表名或列名不合法
	ErrInvalidIdentifier = schema.ErrInvalidIdentifier
)

// Outcome 操作结果的分类
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeEmpty 操作成功但没有数据
	OutcomeEmpty
	// OutcomeContention 数据库持续被锁定，重试次数已用完
	OutcomeContention
	// OutcomeIdentification 调用方参数错误，没有执行任何语句
	OutcomeIdentification
	// OutcomeStoreFailure 其他存储错误
	OutcomeStoreFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeContention:
		return "contention"
	case OutcomeIdentification:
		return "identification"
	default:
		return "store_failure"
	}
}

// Classify 将操作返回的错误归类
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNoRows):
		return OutcomeEmpty
	case errors.Is(err, sqlexec.ErrContention):
		return OutcomeContention
	case errors.Is(err, ErrIdentification):
		return OutcomeIdentification
	default:
		return OutcomeStoreFailure
	}
}
