package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// reKeyField extracts the column list from "Key (a, b)=(1, 2) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reNotPresent detects a missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//   - context deadline/cancellation → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "database operation timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "database operation canceled", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "duplicate " + tableNoun(pgErr.TableName),
			Field:   uniqueField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "value rejected by constraint " + pgErr.ConstraintName,
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "database error", Cause: pgErr}
	}
}

// uniqueField prefers the column metadata and falls back to the Detail key list.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return strings.ReplaceAll(m[1], " ", "")
	}
	return ""
}

func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	table := pgErr.TableName
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		table = m[1]
	}
	return &AppError{
		Code:    ErrCodeForeignKey,
		Message: "referenced " + tableNoun(table) + " does not exist",
		Cause:   pgErr,
	}
}

// tableNoun maps a table name to the noun used in user-facing messages.
func tableNoun(table string) string {
	switch strings.ToLower(strings.TrimSpace(table)) {
	case "collections":
		return "collection"
	case "companies":
		return "company"
	case "collection_memberships":
		return "membership"
	case "transfer_jobs":
		return "transfer job"
	case "":
		return "record"
	default:
		return strings.ReplaceAll(table, "_", " ")
	}
}
