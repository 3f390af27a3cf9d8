package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

const codeUniqueViolation = "23505"

// Server-side SQLSTATEs that mean no usable session, beyond class 08.
var connectionStates = map[string]bool{
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
	"28000": true, // invalid_authorization_specification
	"28P01": true, // invalid_password
	"3D000": true, // invalid_catalog_name
}

// sqlState extracts the SQLSTATE code from either driver's error type.
func sqlState(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return err != nil && sqlState(err) == codeUniqueViolation
}

// IsConnectionError reports whether err means the server could not be reached
// or the connection was lost, as opposed to a statement the server rejected.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if state := sqlState(err); state != "" {
		return strings.HasPrefix(state, "08") || connectionStates[state]
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	return pgconn.Timeout(err) || strings.Contains(err.Error(), "database is closed")
}
