package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const (
	ErrorClassConnection = "connection"
	ErrorClassQuery      = "query"
)

type PoolStats struct {
	Total   int   `json:"total"`
	Idle    int   `json:"idle"`
	InUse   int   `json:"in_use"`
	Waiting int64 `json:"waiting"`
	MaxOpen int   `json:"max_open"`
}

// CheckError is a failed connectivity probe. Class is ErrorClassConnection
// when the server could not be reached and ErrorClassQuery otherwise.
type CheckError struct {
	Class string
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("database %s error: %v", e.Class, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// Check runs SELECT 1 within timeout and reports the pool counters.
// Stats are returned even when the probe fails.
func Check(ctx context.Context, db bun.IDB, timeout time.Duration) (PoolStats, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var one int
	err := db.NewSelect().ColumnExpr("1").Scan(ctx, &one)

	stats := Stats(db)
	if err != nil {
		class := ErrorClassQuery
		if IsConnectionError(err) {
			class = ErrorClassConnection
		}
		return stats, &CheckError{Class: class, Err: err}
	}
	return stats, nil
}

// Stats reads the database/sql pool counters when db is backed by a *bun.DB.
func Stats(db bun.IDB) PoolStats {
	bunDB, ok := db.(*bun.DB)
	if !ok || bunDB == nil {
		return PoolStats{}
	}

	s := bunDB.DB.Stats()
	return PoolStats{
		Total:   s.OpenConnections,
		Idle:    s.Idle,
		InUse:   s.InUse,
		Waiting: s.WaitCount,
		MaxOpen: s.MaxOpenConnections,
	}
}
