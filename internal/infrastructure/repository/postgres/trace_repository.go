package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

// TraceRepository reads trace metadata from the apdobloctrazhash table and
// records newly uploaded document hashes.
type TraceRepository struct {
	db *sql.DB
}

func NewTraceRepository(db *sql.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

var forbiddenKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE"}

// ExecuteInstruction runs a read-only query built upstream. The instruction
// was already validated, but the repository re-checks it before touching the
// database: only SELECT statements ever reach the driver.
func (r *TraceRepository) ExecuteInstruction(ctx context.Context, instruction string) (domain.StoreResult, error) {
	if err := checkReadOnly(instruction); err != nil {
		return domain.StoreResult{}, err
	}

	rows, err := r.db.QueryContext(ctx, instruction)
	if err != nil {
		return domain.StoreResult{}, fmt.Errorf("execute store instruction: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return domain.StoreResult{}, fmt.Errorf("read result columns: %w", err)
	}
	lowered := make([]string, len(columns))
	for i, col := range columns {
		lowered[i] = strings.ToLower(col)
	}

	result := domain.StoreResult{Columns: lowered}
	values := make([]any, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return domain.StoreResult{}, fmt.Errorf("scan result row: %w", err)
		}
		row := make(map[string]string, len(lowered))
		for i, col := range lowered {
			row[col] = stringifyCell(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.StoreResult{}, fmt.Errorf("iterate result rows: %w", err)
	}
	return result, nil
}

// DistinctValues lists the known values of one vocabulary column. The column
// name is interpolated, so it must come from the fixed vocabulary set.
func (r *TraceRepository) DistinctValues(ctx context.Context, field domain.VocabularyField, limit int) ([]string, error) {
	if !isVocabularyField(field) {
		return nil, fmt.Errorf("distinct values: %w: column %q", domain.ErrInvalidInput, string(field))
	}
	if limit <= 0 {
		limit = 1000
	}

	col := strings.ToLower(string(field))
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM apdobloctrazhash WHERE %s IS NOT NULL AND %s <> '' ORDER BY %s LIMIT $1",
		col, col, col, col,
	)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", col, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", col, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct %s: %w", col, err)
	}
	return values, nil
}

func (r *TraceRepository) InsertTraceHash(ctx context.Context, tickbar, hash string) error {
	if strings.TrimSpace(tickbar) == "" || strings.TrimSpace(hash) == "" {
		return fmt.Errorf("insert trace hash: %w: empty tickbar or hash", domain.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO apdobloctrazhash (ttickbarr, ttickhash) VALUES ($1, $2)",
		tickbar, hash,
	)
	if err != nil {
		return fmt.Errorf("insert trace hash: %w", err)
	}
	return nil
}

func (r *TraceRepository) TraceHash(ctx context.Context, tickbar string) (string, error) {
	if strings.TrimSpace(tickbar) == "" {
		return "", fmt.Errorf("trace hash: %w: empty tickbar", domain.ErrInvalidInput)
	}
	var hash string
	err := r.db.QueryRowContext(ctx,
		"SELECT ttickhash FROM apdobloctrazhash WHERE ttickbarr = $1",
		tickbar,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("trace hash: %w: tickbar %s", domain.ErrTraceNotFound, tickbar)
	}
	if err != nil {
		return "", fmt.Errorf("trace hash: %w", err)
	}
	return hash, nil
}

func checkReadOnly(instruction string) error {
	upper := strings.ToUpper(strings.TrimSpace(instruction))
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("store instruction rejected: %w: not a SELECT", domain.ErrInvalidInput)
	}
	if !strings.Contains(upper, "FROM") {
		return fmt.Errorf("store instruction rejected: %w: missing FROM", domain.ErrInvalidInput)
	}
	for _, kw := range forbiddenKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("store instruction rejected: %w: contains %s", domain.ErrInvalidInput, kw)
		}
	}
	return nil
}

func isVocabularyField(field domain.VocabularyField) bool {
	for _, known := range domain.VocabularyFields() {
		if field == known {
			return true
		}
	}
	return false
}

func stringifyCell(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(value)
	case string:
		return value
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", value)
	}
}
