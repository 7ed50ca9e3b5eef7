package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped not found",
			err:         fmt.Errorf("read data/pokemon.csv: %w", ErrNotFound),
			wantCode:    "ETL001",
			wantMessage: "The input file does not exist",
		},
		{
			name:     "wrapped parse error",
			err:      fmt.Errorf("read x.csv: %w", ErrParse),
			wantCode: "ETL002",
		},
		{
			name:     "missing column wins over integrity",
			err:      fmt.Errorf("rename columns: %w: name", ErrMissingColumn),
			wantCode: "ETL003",
		},
		{
			name:     "integrity error",
			err:      &IntegrityError{Issues: []string{"table is empty"}},
			wantCode: "ETL004",
		},
		{
			name:     "sink error with unknown cause",
			err:      NewSinkError("csv", "out/x.csv", errors.New("disk full")),
			wantCode: "ETL005",
		},
		{
			name:     "sink error with connection cause",
			err:      NewSinkError("db", "", errors.New("dial tcp: connection refused")),
			wantCode: "DB004",
		},
		{
			name:     "duplicate name",
			err:      fmt.Errorf("create: %w", ErrDuplicateName),
			wantCode: "DB001",
		},
		{
			name:     "not found",
			err:      fmt.Errorf("get 9999: %w", ErrCreatureNotFound),
			wantCode: "REQ001",
		},
		{
			name:     "validation error",
			err:      &ValidationError{Problems: []string{"name is required"}},
			wantCode: "REQ002",
		},
		{
			name:     "busy",
			err:      ErrBusy,
			wantCode: "ETL007",
		},
		{
			name:     "postgres unique violation",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}),
			wantCode: "DB002",
		},
		{
			name:     "mysql deadlock",
			err:      fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1213, Message: "lock"}),
			wantCode: "DB007",
		},
		{
			name:        "timeout text",
			err:         errors.New("i/o timeout"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("DUPLICATE KEY value violates"),
			wantCode: "DB002",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError().Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrNotFound)
	want := "The input file does not exist (Code: ETL001). Check ETL_INPUT_PATH or the --input flag"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
	if !IsUserFacing(ErrCreatureNotFound) {
		t.Error("IsUserFacing(ErrCreatureNotFound) = false, want true")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("IsUserFacing(boom) = true, want false")
	}
}

func TestSinkErrorUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewSinkError("json", "out/x.json", cause)

	if !errors.Is(err, ErrPersistence) {
		t.Error("errors.Is(err, ErrPersistence) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	var se *SinkError
	if !errors.As(err, &se) || se.Sink != "json" {
		t.Errorf("errors.As SinkError = %+v, want sink json", se)
	}
	if NewSinkError("csv", "", nil) != nil {
		t.Error("NewSinkError(nil) != nil")
	}
}

func TestMissingColumnIsIntegrity(t *testing.T) {
	if !errors.Is(ErrMissingColumn, ErrIntegrity) {
		t.Error("ErrMissingColumn does not wrap ErrIntegrity")
	}
}
