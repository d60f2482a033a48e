// Package repository holds the MySQL data access layer.  The sentinel
// values below let the service and handler layers tell expected lookup and
// uniqueness failures apart from real database errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrReference is returned when a write names a row of another table that
// does not exist, e.g. an unknown group_id.
var ErrReference = errors.New("unknown reference")

// ErrFull is returned when a calendar event has no free participant slot.
var ErrFull = errors.New("full")

// isDuplicate reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isForeignKey reports whether err is MySQL error 1452 (a child row names a
// missing parent).
func isForeignKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1452
}

// writeErr maps the constraint failures callers can act on to sentinels.
func writeErr(err error) error {
	switch {
	case isDuplicate(err):
		return ErrDuplicate
	case isForeignKey(err):
		return ErrReference
	}
	return err
}
