package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/platform/retry"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("invalid progress write")
	ErrConflict   = errors.New("progress write conflict")
	ErrRetryable  = errors.New("transient progress write failure")
)

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

func tagged(sentinel error, msg string) error {
	return errors.Join(sentinel, errors.New(strings.TrimSpace(msg)))
}

// postgres SQLSTATE codes
var pgCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,   // unique_violation
	"23503": domainagg.CodeValidation, // foreign_key_violation
	"23514": domainagg.CodeValidation, // check_violation
	"40001": domainagg.CodeRetryable,  // serialization_failure
	"40P01": domainagg.CodeRetryable,  // deadlock_detected
	"55P03": domainagg.CodeRetryable,  // lock_not_available
	"57P01": domainagg.CodeRetryable,  // admin_shutdown
	"08000": domainagg.CodeRetryable,
	"08003": domainagg.CodeRetryable,
	"08006": domainagg.CodeRetryable,
}

var (
	conflictText  = []string{"duplicate key", "unique constraint failed", "already exists"}
	retryableText = []string{"database is locked", "deadlock", "serialization", "timeout", "connection reset", "connection refused", "temporar"}
)

// MapError turns a storage error into a classified *aggregates.Error. Errors already
// classified pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*domainagg.Error); ok {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	switch {
	case errors.Is(err, ErrValidation):
		return domainagg.CodeValidation
	case errors.Is(err, ErrConflict):
		return domainagg.CodeConflict
	case errors.Is(err, ErrRetryable):
		return domainagg.CodeRetryable
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.CodeNotFound
	case errors.Is(err, context.Canceled):
		return domainagg.CodeInternal
	case retry.Transient(err), pgconn.Timeout(err):
		return domainagg.CodeRetryable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgCodes[pgErr.Code]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, conflictText) {
		return domainagg.CodeConflict
	}
	if containsAny(msg, retryableText) {
		return domainagg.CodeRetryable
	}
	return domainagg.CodeInternal
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
