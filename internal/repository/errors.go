package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PgErrUniqueViolation PostgreSQL 唯一约束冲突错误码
const PgErrUniqueViolation = "23505"

// 唯一索引 -> SQLite 报错中的列名
var uniqueIndexColumns = map[string]string{
	ExternalNumberIndex: "submissions.external_number",
	CertNumberIndex:     "cards.cert_number",
}

// IsUniqueViolation 判断是否为唯一约束冲突（PostgreSQL / SQLite）
// constraint 非空时只匹配指定索引
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != PgErrUniqueViolation {
			return false
		}
		return constraint == "" || pgErr.ConstraintName == constraint
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// SQLite: "UNIQUE constraint failed: submissions.external_number"
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraint == "" {
		return true
	}
	column, ok := uniqueIndexColumns[constraint]
	return ok && strings.Contains(msg, column)
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
