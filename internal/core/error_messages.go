package core

// # Error Codes Reference
//
// Every failed response carries a code that support staff can look up here.
// Classified errors (*Error) map by Kind; anything else is matched against
// message patterns, case-insensitively, first match wins.
//
// # Batch Errors (BAT001-BAT099)
//
//	BAT001 - Empty batch: No records were provided
//	BAT002 - Duplicate in batch: The same key appears more than once in the request
//	BAT003 - System busy: Too many batches in progress
//	BAT004 - Batch too large: More records than a single batch accepts
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date. Patterns: "invalid date"
//	VAL002 - Invalid number. Patterns: "invalid number"
//	VAL003 - Required field is empty
//	VAL006 - Invalid field value
//
// # Database Errors (DB001-DB099)
//
//	DB002 - Duplicate: A record with this key already exists
//	DB003 - Foreign key. Patterns: "violates foreign key"
//	DB004 - Connection refused. Patterns: "connection refused"
//	DB005 - Connection reset. Patterns: "connection reset"
//	DB006 - Timeout. Patterns: "timeout"
//	DB007 - Deadlock. Patterns: "deadlock"
//	DB010 - Store failure: any other classified store fault
//
// # Range Errors (RNG001-RNG099)
//
//	RNG001 - Invalid range: ids must be positive and from <= to
//	RNG002 - Range gap: some ids in the range do not exist
//	RNG003 - Invalid mutation: the requested change does not fit the column
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Not found
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Body too large. Patterns: "request body too large"
//	FILE002 - Invalid CSV. Patterns: "invalid csv"
//	FILE005 - Empty file. Patterns: "empty file"
//
// # Request Body Errors (REQ001-REQ099)
//
//	REQ001 - Invalid JSON. Patterns: "invalid json"
//
// # Request Errors (UPL004-UPL005, RATE001)
//
//	UPL004 - Request cancelled. Patterns: "context canceled"
//	UPL005 - Request timeout. Patterns: "context deadline exceeded"
//	RATE001 - Rate limited. Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
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

var kindMessages = map[Kind]UserMessage{
	KindEmptyBatch: {
		Message: "No records were provided",
		Action:  "Send at least one record",
		Code:    "BAT001",
	},
	KindBatchTooLarge: {
		Message: "The batch contains too many records",
		Action:  "Split the batch into smaller requests",
		Code:    "BAT004",
	},
	KindDuplicateInBatch: {
		Message: "The same key appears more than once in the request",
		Action:  "Remove repeated entries from the batch",
		Code:    "BAT002",
	},
	KindMissingRequiredField: {
		Message: "Required field is empty",
		Action:  "Ensure all required fields have values",
		Code:    "VAL003",
	},
	KindInvalidField: {
		Message: "A field value is not valid",
		Action:  "Check the format of the rejected field",
		Code:    "VAL006",
	},
	KindDuplicateInStore: {
		Message: "A record with this key already exists",
		Action:  "Use a different key or update the existing record",
		Code:    "DB002",
	},
	KindInvalidRange: {
		Message: "Invalid ID range",
		Action:  "Use positive ids with from not greater than to",
		Code:    "RNG001",
	},
	KindRangeGap: {
		Message: "Some ids in the range do not exist",
		Action:  "Review the missing ids and narrow the range",
		Code:    "RNG002",
	},
	KindInvalidMutation: {
		Message: "The requested change is not valid",
		Action:  "Check the column names and operations",
		Code:    "RNG003",
	},
	KindNotFound: {
		Message: "Record not found",
		Action:  "Verify the id or key",
		Code:    "REC001",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text to user messages. Specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "too many batches",
		msg: UserMessage{
			Message: "System is busy processing other batches",
			Action:  "Please wait a moment and try again",
			Code:    "BAT003",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Use a different key or update the existing record",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Create the referenced record first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Send a smaller batch or try again later",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Send a smaller batch or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD or RFC 3339",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use a plain decimal number",
			Code:    "VAL002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Request body exceeds the size limit",
			Action:  "Split the batch into smaller requests",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid json",
		msg: UserMessage{
			Message: "Request body is not valid JSON",
			Action:  "Send a JSON array of records",
			Code:    "REQ001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var storeFailureMessage = UserMessage{
	Message: "The data store could not complete the request",
	Action:  "Please try again or contact support",
	Code:    "DB010",
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. Classified errors
// map by kind; store failures and unclassified errors are matched against
// the technical text so connection problems get specific codes.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ce *Error
	if errors.As(err, &ce) {
		if msg, ok := kindMessages[ce.Kind]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	if ce != nil && ce.Err != nil {
		errStr = strings.ToLower(ce.Err.Error())
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if ce != nil && ce.Kind == KindStoreFailure {
		return storeFailureMessage
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

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
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
