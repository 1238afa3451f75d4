package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a create violates a unique index.
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrDuplicateEmail    = &duplicateError{field: "email"}
	ErrDuplicateUsername = &duplicateError{field: "username"}
)

type duplicateError struct {
	field string
}

func (e *duplicateError) Error() string { return e.field + " already exists" }

func (e *duplicateError) Is(target error) bool { return target == ErrDuplicateKey }

// Field names the unique column that was violated.
func (e *duplicateError) Field() string { return e.field }

const (
	pgUniqueViolation = "23505"
	sqliteUnique      = "UNIQUE constraint failed:"
)

// Index names gorm derives from the uniqueIndex tags on models.User.
var uniqueIndexes = map[string]error{
	"idx_users_email":    ErrDuplicateEmail,
	"idx_users_username": ErrDuplicateUsername,
}

// uniqueViolation maps a unique-index violation from either PostgreSQL or
// SQLite to the matching duplicate error. It returns nil for any other error.
// Only index and column names are inspected, never the offending value.
func uniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return nil
		}
		if dup, ok := uniqueIndexes[pgErr.ConstraintName]; ok {
			return dup
		}
		return duplicateFor(detailColumn(pgErr.Detail))
	}

	msg := err.Error()
	if i := strings.Index(msg, sqliteUnique); i >= 0 {
		return duplicateFor(sqliteColumn(msg[i+len(sqliteUnique):]))
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		_, column, _ := strings.Cut(msg, gorm.ErrDuplicatedKey.Error()+":")
		return duplicateFor(strings.TrimSpace(column))
	}
	return nil
}

// detailColumn extracts "username" from `Key (username)=(jane) already exists.`
func detailColumn(detail string) string {
	rest, ok := strings.CutPrefix(detail, "Key (")
	if !ok {
		return ""
	}
	column, _, ok := strings.Cut(rest, ")=")
	if !ok {
		return ""
	}
	return column
}

// sqliteColumn extracts "username" from " users.username (2067)".
func sqliteColumn(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	qualified := strings.TrimSuffix(fields[0], ",")
	if _, column, ok := strings.Cut(qualified, "."); ok {
		return column
	}
	return qualified
}

func duplicateFor(column string) error {
	switch strings.ToLower(column) {
	case "email":
		return ErrDuplicateEmail
	case "username":
		return ErrDuplicateUsername
	default:
		return ErrDuplicateKey
	}
}
