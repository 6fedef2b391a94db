package core

// error_messages.go maps technical errors to user-facing messages with codes
// that can be quoted to support.
//
// # Error Codes Reference
//
//	PARSE001 - Row has a different number of fields than the header row
//	PARSE002 - Spreadsheet could not be opened
//	PARSE003 - JSON document is not a record or list of records
//	PARSE004 - Tabular content could not be parsed
//
//	CAST001  - Numeric field holds a non-number
//	CAST002  - Date field does not match YYYY-MM-DD HH:MM:SS
//	CAST003  - Record fields do not match the provider's layout
//
//	FILE001  - File exceeds the size limit
//	FILE002  - No file in request
//	FILE003  - File is empty
//	FILE004  - Local paths disabled on this server
//	FILE005  - Local file not found
//
//	FETCH001 - Remote server answered with an error status
//	FETCH002 - Remote host could not be resolved or reached
//	FETCH003 - Unsupported URL scheme
//
//	EXTRACT001 - pdftotext is not installed
//	EXTRACT002 - Free-text documents not supported on this server
//	EXTRACT003 - Text extraction failed
//
//	SCHEMA001 - Schema definition rejected
//	SCHEMA002 - Schema file could not be read
//
//	RUN001   - Too many documents in flight
//	RUN002   - Request cancelled
//	RUN003   - Request timed out
//
//	RATE001  - Too many requests from this client
//
//	DB001    - Schema with this name already exists
//	DB002    - Database unreachable
//	DB003    - Persistence not configured
//	DB004    - Database timeout
//
//	ERR000   - Anything else; check the logs for the technical error
//
// Errors from this package are recognized with errors.Is. Errors from
// drivers and other packages are matched by message: case-insensitively with
// strings.Contains, first match wins, so specific patterns come first.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// messages holds the text for every code. Code is filled in by lookup.
var messages = map[string]UserMessage{
	"PARSE001": {
		Message: "A row has a different number of columns than the header",
		Action:  "Check the reported line for missing or extra separators",
	},
	"PARSE002": {
		Message: "The spreadsheet could not be read",
		Action:  "Save the file as .xlsx and make sure the first sheet has a header row",
	},
	"PARSE003": {
		Message: "The document is not a record or a list of records",
		Action:  "Send a JSON object or an array of objects",
	},
	"PARSE004": {
		Message: "The file could not be parsed as CSV",
		Action:  "Ensure the file is comma-separated with a header row",
	},
	"CAST001": {
		Message: "A numeric field holds a value that is not a number",
		Action:  "Remove currency symbols and use a plain decimal format",
	},
	"CAST002": {
		Message: "A date field is not in the expected format",
		Action:  "Use YYYY-MM-DD HH:MM:SS",
	},
	"CAST003": {
		Message: "The columns do not match the provider's export layout",
		Action:  "Upload the export unmodified",
	},
	"FILE001": {
		Message: "File exceeds the maximum size limit",
		Action:  "Split the statement into smaller files",
	},
	"FILE002": {
		Message: "No file was provided",
		Action:  "Attach a file or send it as the request body",
	},
	"FILE003": {
		Message: "The file is empty",
		Action:  "Upload a file with a header row and data",
	},
	"FILE004": {
		Message: "Reading files from the server's disk is disabled",
		Action:  "Pass an http or https URL instead",
	},
	"FILE005": {
		Message: "File not found",
		Action:  "Check the path and try again",
	},
	"FETCH001": {
		Message: "The remote server returned an error",
		Action:  "Check that the URL is reachable and publicly readable",
	},
	"FETCH002": {
		Message: "The remote host could not be reached",
		Action:  "Check the URL for typos",
	},
	"FETCH003": {
		Message: "Only http and https URLs are supported",
		Action:  "Use an http or https URL",
	},
	"EXTRACT001": {
		Message: "PDF support is not installed on this server",
		Action:  "Install poppler-utils or upload a CSV export",
	},
	"EXTRACT002": {
		Message: "PDF documents are not supported on this server",
		Action:  "Upload a CSV or XLSX export",
	},
	"EXTRACT003": {
		Message: "Text could not be extracted from the document",
		Action:  "Check that the PDF is not encrypted or damaged",
	},
	"SCHEMA001": {
		Message: "The schema definition was rejected",
		Action:  "Each schema needs a unique name and a list of distinct keys",
	},
	"SCHEMA002": {
		Message: "The schema file could not be read",
		Action:  "Use a .json, .yaml or .toml file with a list of schemas",
	},
	"RUN001": {
		Message: "The service is busy with other documents",
		Action:  "Please wait a moment and try again",
	},
	"RUN002": {
		Message: "Request was cancelled",
		Action:  "Please try again",
	},
	"RUN003": {
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
	},
	"RATE001": {
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
	},
	"DB001": {
		Message: "A schema with this name already exists",
		Action:  "Choose a different name",
	},
	"DB002": {
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
	},
	"DB003": {
		Message: "This server does not keep history",
		Action:  "Set DATABASE_URL to enable persistence",
	},
	"DB004": {
		Message: "Operation timed out",
		Action:  "Please try again later",
	},
}

// sentinels map errors this module owns to their codes.
var sentinels = []struct {
	target error
	code   string
}{
	{ErrNotNumber, "CAST001"},
	{ErrNotTimestamp, "CAST002"},
	{ErrRecordShape, "CAST003"},
	{ErrInvalidDocument, "PARSE003"},
	{ErrNoExtractor, "EXTRACT002"},
	{ErrTooManyRuns, "RUN001"},
	{context.Canceled, "RUN002"},
	{context.DeadlineExceeded, "RUN003"},
}

// patterns catch errors known only by their message.
var patterns = []struct {
	pattern string
	code    string
}{
	{"wrong number of fields", "PARSE001"},
	{"parse xlsx", "PARSE002"},
	{"invalid document", "PARSE003"},
	{"parse csv", "PARSE004"},
	{"invalid number", "CAST001"},
	{"invalid timestamp", "CAST002"},
	{"unexpected record shape", "CAST003"},
	{"file too large", "FILE001"},
	{"no file provided", "FILE002"},
	{"empty file", "FILE003"},
	{"local paths are disabled", "FILE004"},
	{"no such file", "FILE005"},
	{"unexpected status", "FETCH001"},
	{"no such host", "FETCH002"},
	{"unsupported scheme", "FETCH003"},
	{"executable file not found", "EXTRACT001"},
	{"no text extractor configured", "EXTRACT002"},
	{"extract pdf", "EXTRACT003"},
	{"invalid schema", "SCHEMA001"},
	{"load schemas", "SCHEMA002"},
	{"too many concurrent runs", "RUN001"},
	{"context canceled", "RUN002"},
	{"context deadline exceeded", "RUN003"},
	{"rate limit", "RATE001"},
	{"duplicate key", "DB001"},
	{"connection refused", "DB002"},
	{"persistence not configured", "DB003"},
	{"timeout", "DB004"},
}

// defaultMessage is returned when nothing matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

func lookup(code string) UserMessage {
	msg, ok := messages[code]
	if !ok {
		return defaultMessage
	}
	msg.Code = code
	return msg
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.target) {
			return lookup(s.code)
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(errStr, p.pattern) {
			return lookup(p.code)
		}
	}

	return defaultMessage
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

// IsUserFacing reports whether err maps to a known code.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
