package sqlite

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/query/models"
	"hiky-bot-backend/internal/features/query/repository"
)

const (
	// MaxRows caps the result set; one extra row is fetched to detect
	// truncation.
	MaxRows = 200
	// Timeout must stay shorter than the transport delivery timeout so a
	// slow query surfaces as a Timeout error instead of hanging the
	// handling task.
	Timeout = 5 * time.Second
)

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Any of these appearing as a whole word disqualifies the statement,
	// even inside a statement that starts with SELECT.
	forbidden = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace|pragma|attach|detach|vacuum|reindex)\b`)
)

// IsSelect reports whether text is a single plain SELECT statement after
// normalizing comments and whitespace.
func IsSelect(text string) bool {
	clean := lineComment.ReplaceAllString(text, " ")
	clean = blockComment.ReplaceAllString(clean, " ")
	clean = strings.TrimSpace(clean)
	clean = strings.TrimSuffix(clean, ";")
	if clean == "" {
		return false
	}
	if !strings.HasPrefix(strings.ToLower(clean), "select") {
		return false
	}
	// A second statement after the terminator would smuggle writes past
	// the prefix check.
	if strings.Contains(clean, ";") {
		return false
	}
	return !forbidden.MatchString(clean)
}

type Runner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) repository.Runner {
	return &Runner{db: db}
}

func (r *Runner) Run(ctx context.Context, text string) (*models.Result, error) {
	if !IsSelect(text) {
		return nil, apperrors.New(apperrors.ErrCodeRejected, "only SELECT statements are allowed")
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, text)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.New(apperrors.ErrCodeTimeout, "query exceeded the time limit")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRejected, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewStorageError("read columns", err)
	}

	result := &models.Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) == MaxRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.NewStorageError("scan row", err)
		}
		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.New(apperrors.ErrCodeTimeout, "query exceeded the time limit")
		}
		return nil, apperrors.NewStorageError("iterate rows", err)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}
