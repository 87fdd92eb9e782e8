package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrResourceLocked строка заблокирована другой транзакцией дольше lock_timeout
var ErrResourceLocked = errors.New("resource is locked, please try again")

const (
	pqLockNotAvailable = "55P03"
	pqUniqueViolation  = "23505"
)

// queryer общий интерфейс *sql.DB и *sql.Tx, чтобы не дублировать чтение внутри и вне транзакции
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}
