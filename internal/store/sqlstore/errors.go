package sqlstore

import (
	"errors"
	"fmt"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// --- SQLSTATE codes ---
const (
	pgInsufficientPrivilege     = "42501"
	pgInvalidAuthorization      = "28000"
	pgInvalidPassword           = "28P01"
	pgSerializationFailure      = "40001"
	pgDeadlockDetected          = "40P01"
	pgLockNotAvailable          = "55P03"
	pgUniqueViolation           = "23505"
	pgForeignKeyViolation       = "23503"
	pgCheckViolation            = "23514"
	pgInvalidTextRepresentation = "22P02"
)

var taxonomy = []error{
	store.ErrUnauthenticated, store.ErrNotFound, store.ErrConflict, store.ErrPermissionDenied,
	store.ErrTransient, store.ErrForbidden, store.ErrInvalid, store.ErrVoteUnsupported,
}

// Classify maps a GORM, PostgreSQL or SQLite error onto the store taxonomy.
// Errors that already carry a taxonomy sentinel pass through; anything unrecognised is transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInsufficientPrivilege, pgInvalidAuthorization, pgInvalidPassword:
			return fmt.Errorf("%w: %w", store.ErrPermissionDenied, err)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgUniqueViolation:
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case pgForeignKeyViolation, pgCheckViolation, pgInvalidTextRepresentation:
			return fmt.Errorf("%w: %w", store.ErrInvalid, err)
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return fmt.Errorf("%w: %w", store.ErrPermissionDenied, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return fmt.Errorf("%w: %w", store.ErrConflict, err)
			}
			return fmt.Errorf("%w: %w", store.ErrInvalid, err)
		}
	}

	return fmt.Errorf("%w: %w", store.ErrTransient, err)
}
