// Package repository holds the SQL data access layer. The sentinel errors
// below let the service layer tell store outcomes apart without inspecting
// driver errors itself.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when no live row matches.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when a lookup without tenant scope matches
	// accounts in more than one tenant.
	ErrAmbiguous = errors.New("ambiguous match")
	// ErrEmailExists and ErrUsernameExists report unique key violations on users.
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
	// ErrNameExists reports a live tenant with the same name.
	ErrNameExists = errors.New("name already exists")
	// ErrConflict is any other unique key violation.
	ErrConflict = errors.New("conflict")
)

// isDuplicate reports whether err is a unique key violation from either
// supported driver.
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// duplicateOn reports whether err is a unique key violation of the named
// constraint. MySQL reports the constraint name at the end of its message;
// SQLite lists the offending table.column pairs instead.
func duplicateOn(err error, constraint, column string) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 && strings.HasSuffix(myErr.Message, constraint+"'")
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(liteErr.Error(), column)
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// now truncates to seconds, the resolution of MySQL DATETIME columns.
func now() time.Time { return time.Now().UTC().Truncate(time.Second) }

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
