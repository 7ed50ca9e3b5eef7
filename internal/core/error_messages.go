package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. When users encounter errors, they can quote the error code to
// support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Pipeline Errors (ETL001-ETL099)
//
//	ETL001 - Input not found: The input file does not exist
//	         Action: Check ETL_INPUT_PATH or the --input flag
//	ETL002 - Invalid input: The input is not valid delimited text
//	         Action: Ensure the file is comma-separated with a header row
//	ETL003 - Missing column: A required column is missing
//	         Action: Include at least Name and Type 1 (or name, primary_type)
//	ETL004 - Integrity failure: The cleaned data failed integrity checks
//	         Action: Review the reported issues before loading again
//	ETL005 - Sink failure: An output could not be written
//	         Action: Check the output directory and database connection
//	ETL006 - Unknown sink: The sink name is not configured
//	         Action: Use one of csv, json, xlsx, db
//	ETL007 - System busy: Another pipeline run is in progress
//	         Action: Please wait for it to finish and try again
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate name: A creature with this name already exists
//	DB002 - Unique constraint: This value must be unique but already exists
//	DB003 - Foreign key: Referenced record does not exist
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//	DB008 - Not configured: No database is attached
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Not found: No creature matches the request
//	REQ002 - Invalid creature: The record failed validation
//	REQ003 - Invalid parameter: A query or path parameter is malformed
//	REQ004 - Request cancelled
//	REQ005 - Request timeout
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the application
// logs for the original technical error.
//
// # Matching
//
// Sentinel errors and driver error codes are checked first with errors.Is and
// errors.As. Then text patterns are matched case-insensitively using
// strings.Contains; the first matching pattern wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgInputNotFound = UserMessage{"The input file does not exist", "Check ETL_INPUT_PATH or the --input flag", "ETL001"}
	msgInvalidInput  = UserMessage{"The input is not valid delimited text", "Ensure the file is comma-separated with a header row", "ETL002"}
	msgMissingColumn = UserMessage{"A required column is missing", "Include at least Name and Type 1 (or name, primary_type)", "ETL003"}
	msgIntegrity     = UserMessage{"The cleaned data failed integrity checks", "Review the reported issues before loading again", "ETL004"}
	msgSink          = UserMessage{"An output could not be written", "Check the output directory and database connection", "ETL005"}
	msgUnknownSink   = UserMessage{"The sink name is not configured", "Use one of csv, json, xlsx, db", "ETL006"}
	msgBusy          = UserMessage{"Another pipeline run is in progress", "Please wait for it to finish and try again", "ETL007"}

	msgDuplicateName = UserMessage{"A creature with this name already exists", "Choose a different name or update the existing record", "DB001"}
	msgUnique        = UserMessage{"This value must be unique but already exists", "Check for duplicate entries", "DB002"}
	msgForeignKey    = UserMessage{"Referenced record does not exist", "Ensure parent records exist first", "DB003"}
	msgDeadlock      = UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}
	msgNoDatabase    = UserMessage{"No database is attached", "Set DB_DSN and restart the server", "DB008"}

	msgNotFound        = UserMessage{"No creature matches the request", "Check the id or name and try again", "REQ001"}
	msgInvalidCreature = UserMessage{"The record failed validation", "Fix the listed problems and resubmit", "REQ002"}
)

// ErrNoDatabase is returned by operations that need a relational store when
// none is configured.
var ErrNoDatabase = errors.New("database not configured")

// ErrBusy is returned when the run limiter cannot admit another pipeline run.
var ErrBusy = errors.New("too many runs in progress")

// ErrInvalidParam is returned for malformed request parameters.
var ErrInvalidParam = errors.New("invalid parameter")

// sentinelMessages are checked in order with errors.Is.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrNotFound, msgInputNotFound},
	{ErrParse, msgInvalidInput},
	{ErrMissingColumn, msgMissingColumn},
	{ErrIntegrity, msgIntegrity},
	{ErrUnknownSink, msgUnknownSink},
	{ErrBusy, msgBusy},
	{ErrCreatureNotFound, msgNotFound},
	{ErrDuplicateName, msgDuplicateName},
	{ErrInvalidCreature, msgInvalidCreature},
	{ErrNoDatabase, msgNoDatabase},
	{ErrInvalidParam, UserMessage{"A request parameter is malformed", "Check the parameter format", "REQ003"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{"duplicate key", msgUnique},
	{"unique constraint", msgUnique},
	{"violates unique", msgUnique},
	{"foreign key constraint", msgForeignKey},
	{"violates foreign key", msgForeignKey},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller sample or try again later", "REQ005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller sample or try again later", "DB006"}},
	{"deadlock", msgDeadlock},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("read pokemon.csv: %w", ErrNotFound))
//	// msg.Code == "ETL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	if msg, ok := mapDriverError(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	// Sink failures with no more specific cause.
	if errors.Is(err, ErrPersistence) {
		return msgSink
	}

	return defaultMessage
}

// mapDriverError recognizes PostgreSQL SQLSTATE codes and MySQL error numbers.
func mapDriverError(err error) (UserMessage, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return msgUnique, true
		case "23503":
			return msgForeignKey, true
		case "40P01":
			return msgDeadlock, true
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return msgUnique, true
		case 1451, 1452:
			return msgForeignKey, true
		case 1213:
			return msgDeadlock, true
		}
	}

	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
