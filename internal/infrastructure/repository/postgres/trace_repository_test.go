package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*TraceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &TraceRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestExecuteInstructionLowercasesColumnsAndStringifiesValues(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"TDESCCLIE", "TNUMECAJA", "total"}).
		AddRow("LACOSTE", []byte("000123"), int64(42)).
		AddRow(nil, []byte("000124"), int64(7))
	mock.ExpectQuery("SELECT tdescclie, tnumecaja").WillReturnRows(rows)

	result, err := repo.ExecuteInstruction(context.Background(), "SELECT tdescclie, tnumecaja, COUNT(*) AS total FROM apdobloctrazhash GROUP BY tdescclie, tnumecaja")
	if err != nil {
		t.Fatalf("ExecuteInstruction() error = %v", err)
	}
	if len(result.Columns) != 3 || result.Columns[0] != "tdescclie" || result.Columns[2] != "total" {
		t.Fatalf("unexpected columns: %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0]["tdescclie"] != "LACOSTE" || result.Rows[0]["total"] != "42" {
		t.Fatalf("unexpected first row: %v", result.Rows[0])
	}
	if result.Rows[1]["tdescclie"] != "" {
		t.Fatalf("expected empty string for NULL, got %q", result.Rows[1]["tdescclie"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteInstructionRejectsWrites(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	cases := []string{
		"DELETE FROM apdobloctrazhash",
		"SELECT * FROM apdobloctrazhash; DROP TABLE apdobloctrazhash",
		"SELECT 1",
	}
	for _, instruction := range cases {
		if _, err := repo.ExecuteInstruction(context.Background(), instruction); err == nil {
			t.Fatalf("expected rejection for %q", instruction)
		} else if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", instruction, err)
		}
	}
}

func TestDistinctValuesRejectsUnknownColumn(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	_, err := repo.DistinctValues(context.Background(), domain.VocabularyField("ttickhash; DROP TABLE x"), 10)
	if err == nil {
		t.Fatalf("expected rejection for unknown column")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDistinctValuesQueriesAllowedColumn(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"tdescclie"}).AddRow("LACOSTE").AddRow("ZARA")
	mock.ExpectQuery("SELECT DISTINCT tdescclie FROM apdobloctrazhash").
		WithArgs(500).
		WillReturnRows(rows)

	values, err := repo.DistinctValues(context.Background(), domain.FieldClientName, 500)
	if err != nil {
		t.Fatalf("DistinctValues() error = %v", err)
	}
	if len(values) != 2 || values[0] != "LACOSTE" || values[1] != "ZARA" {
		t.Fatalf("unexpected values: %v", values)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertTraceHash(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO apdobloctrazhash").
		WithArgs("8412345678901", "abc123").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.InsertTraceHash(context.Background(), "8412345678901", "abc123"); err != nil {
		t.Fatalf("InsertTraceHash() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertTraceHashRejectsEmptyInput(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	if err := repo.InsertTraceHash(context.Background(), "", "abc123"); err == nil {
		t.Fatalf("expected error for empty tickbar")
	}
}

func TestTraceHashReturnsRegisteredAddress(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"ttickhash"}).AddRow("abc123")
	mock.ExpectQuery("SELECT ttickhash FROM apdobloctrazhash").
		WithArgs("8412345678901").
		WillReturnRows(rows)

	hash, err := repo.TraceHash(context.Background(), "8412345678901")
	if err != nil {
		t.Fatalf("TraceHash() error = %v", err)
	}
	if hash != "abc123" {
		t.Fatalf("hash = %q, want abc123", hash)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTraceHashNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT ttickhash FROM apdobloctrazhash").
		WithArgs("0000000000000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.TraceHash(context.Background(), "0000000000000")
	if !domain.IsKind(err, domain.ErrTraceNotFound) {
		t.Fatalf("expected ErrTraceNotFound, got %v", err)
	}
}
