package core

// error_messages.go turns technical errors into user-facing messages with a
// code that users can quote to support.
//
// Codes by category:
//
// # Lookup (NF001)
//
//	NF001  - File not found: the file id is unknown or has expired
//	         Action: Upload the file again
//
// # Request validation (VAL001)
//
//	VAL001 - The request is not valid for this file
//	         Action: Check column names and parameters
//
// # Formulas (FML001-FML002)
//
//	FML001 - The formula could not be parsed
//	         Action: Use column names, numbers, + - * / and parentheses
//	FML002 - The formula could not be computed for every row
//	         Action: Check for empty or non-numeric cells and division by zero
//
// # Conversion (CNV001)
//
//	CNV001 - A cell could not be converted to the requested type
//	         Action: Clean the column or convert it to text
//
// # Files (FILE001-FILE003)
//
//	FILE001 - File exceeds the upload size limit       Patterns: "file too large"
//	FILE002 - File type is not supported               Patterns: "unsupported file type"
//	FILE003 - File is empty or could not be read       Patterns: "empty file", "invalid spreadsheet",
//	                                                   "invalid csv", "no file provided"
//
// # Load (OPS001-OPS003, RATE001)
//
//	OPS001  - Too many operations are running          ErrTooManyOperations
//	OPS002  - Request was cancelled                    context.Canceled
//	OPS003  - Request timed out                        context.DeadlineExceeded
//	RATE001 - Too many requests from this client       Patterns: "rate limit"
//
// # Default (ERR000)
//
//	ERR000 - An unexpected error occurred. Check the logs for the technical error.
//
// Sentinel errors are checked first, then the message patterns
// (case-insensitive, first match wins), then the dataset.Error kind.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgTooManyOps = UserMessage{
		Message: "The server is busy with other operations",
		Action:  "Please wait a moment and try again",
		Code:    "OPS001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "OPS002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "OPS003",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var fileUnreadable = UserMessage{
	Message: "The file is empty or could not be read",
	Action:  "Upload a spreadsheet with a header row",
	Code:    "FILE003",
}

// errorPatterns is matched in order against the lowercased error text.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload an .xlsx, .xlsm or .csv file",
			Code:    "FILE002",
		},
	},
	{pattern: "empty file", msg: fileUnreadable},
	{pattern: "invalid spreadsheet", msg: fileUnreadable},
	{pattern: "invalid csv", msg: fileUnreadable},
	{pattern: "no file provided", msg: fileUnreadable},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var kindMessages = map[dataset.Kind]UserMessage{
	dataset.NotFound: {
		Message: "File not found",
		Action:  "The file may have expired. Upload it again",
		Code:    "NF001",
	},
	dataset.Validation: {
		Message: "The request is not valid for this file",
		Action:  "Check the column names and parameters",
		Code:    "VAL001",
	},
	dataset.Parse: {
		Message: "The formula could not be parsed",
		Action:  "Use column names, numbers, + - * / and parentheses",
		Code:    "FML001",
	},
	dataset.Coercion: {
		Message: "A cell could not be converted to the requested type",
		Action:  "Clean the column or convert it to text",
		Code:    "CNV001",
	},
	dataset.Eval: {
		Message: "The formula could not be computed for every row",
		Action:  "Check for empty or non-numeric cells and division by zero",
		Code:    "FML002",
	},
}

// defaultMessage is returned when nothing else matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrTooManyOperations):
		return msgTooManyOps
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if msg, ok := kindMessages[dataset.KindOf(err)]; ok {
		return msg
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback. Only user-facing errors expose their technical text.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
