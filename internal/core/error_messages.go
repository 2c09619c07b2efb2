package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Storage failures are answered with the mapped message while
// the technical error is logged server side.
//
// Codes by category:
//
//	DB001   - Duplicate key (SQLSTATE 23505, "duplicate key")
//	DB003   - Referenced dataset missing (SQLSTATE 23503, "violates foreign key")
//	DB004   - Database unreachable ("connection refused")
//	DB005   - Connection interrupted ("connection reset", "conn closed")
//	DB006   - Statement timeout (SQLSTATE 57014, "timeout")
//	DB007   - Serialization conflict or deadlock (SQLSTATE 40001, 40P01)
//	DB008   - Value rejected by the column type (SQLSTATE 22xxx)
//	FILE001 - File exceeds the upload size limit ("file too large")
//	FILE002 - File is not a valid CSV ("invalid csv")
//	FILE004 - No file in the request ("no file uploaded")
//	FILE006 - Wrong file type ("only csv files")
//	UPL002  - Ingest slots exhausted ("too many concurrent uploads")
//	UPL004  - Request cancelled ("context canceled")
//	UPL005  - Request timed out ("context deadline exceeded")
//	RATE001 - Rate limited ("rate limit")
//	ERR000  - Anything else; check the server log for the original error
//
// SQLSTATE codes are checked first when the error chain carries a
// *pgconn.PgError, then patterns are matched case-insensitively in order.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicateKey = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Please try again",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced dataset does not exist",
		Action:  "The dataset may have been deleted. Refresh and try again",
		Code:    "DB003",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB006",
	}
	msgConflict = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}
	msgBadValue = UserMessage{
		Message: "A value in the file could not be stored",
		Action:  "Check the file for control characters or out-of-range numbers",
		Code:    "DB008",
	}
)

// sqlStateMessages maps PostgreSQL error codes to user messages.
var sqlStateMessages = map[string]UserMessage{
	"23505": msgDuplicateKey,
	"23503": msgForeignKey,
	"57014": msgTimeout,
	"40001": msgConflict,
	"40P01": msgConflict,
}

// errorPatterns is matched in order; the first hit wins, so specific patterns
// come before general ones.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: msgDuplicateKey},
	{pattern: "violates foreign key", msg: msgForeignKey},
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
		pattern: "conn closed",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "deadlock", msg: msgConflict},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file uploaded",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "only csv files",
		msg: UserMessage{
			Message: "Only CSV files are accepted",
			Action:  "Export the data as .csv and upload again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
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
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A
// *pgconn.PgError in the chain is mapped by SQLSTATE; otherwise the first
// matching pattern wins and ERR000 is the fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStateMessages[pgErr.Code]; ok {
			return msg
		}
		if strings.HasPrefix(pgErr.Code, "22") {
			return msgBadValue
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
