package restore

// # Error Codes Reference
//
// Restore failures are mapped to user-facing messages with codes that
// operators can quote when reporting a problem.
//
// # Restore Errors (RST001-RST099)
//
//	RST001 - Missing component: The archived asset lacks a required part
//	         Action: Re-export the asset with its definition before restoring
//	         Patterns: "missing required component"
//
//	RST002 - Unsupported kind: Restore is not available for this asset kind
//	         Action: Recreate the asset manually on the platform
//	         Patterns: "restore not implemented"
//
//	RST003 - Date serialization: The platform SDK rejected a date value
//	         Action: Re-export the asset or convert the date fields and retry
//	         Patterns: "parsing time", "of type time.time", "to be a date", "expected date"
//
//	RST004 - Already exists: An asset with this id already exists
//	         Action: Enable overwrite or choose a different target id
//	         Patterns: "already exists"
//
//	RST005 - Missing dependency: A referenced asset does not exist
//	         Action: Restore the referenced datasets or datasources first
//	         Patterns: "resource not found"
//
//	RST006 - Access denied: The platform refused the request
//	         Action: Check the service role permissions for this account
//	         Patterns: "access denied", "accessdenied", "not authorized"
//
//	RST007 - Invalid definition: The platform rejected the definition
//	         Action: Review the archived definition for unsupported settings
//	         Patterns: "invalidparametervalue", "invalid parameter"
//
//	RST008 - Throttled: Too many platform requests
//	         Action: Wait a moment and retry, or lower batch parallelism
//	         Patterns: "throttl", "rate exceeded", "limitexceeded"
//
//	RST009 - Archive not found: No archived copy exists for this asset
//	         Action: Verify the asset id and that it was archived
//	         Patterns: "object not found", "e_object_not_found"
//
//	RST010 - Validation failed: Pre-restore validation reported errors
//	         Action: Review the validation results
//	         Patterns: "validation failed"
//
// # Transport Errors (NET001-NET099)
//
//	NET001 - Timeout: The request timed out
//	         Action: Try again later
//	         Patterns: "context deadline exceeded", "timeout"
//
//	NET002 - Cancelled: The request was cancelled
//	         Action: Start the restore again when ready
//	         Patterns: "context canceled"
//
//	NET003 - Unreachable: A backing service could not be reached
//	         Action: Try again in a few moments
//	         Patterns: "connection refused", "no such host"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Check the deployment logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains. The first
// matching pattern wins, so specific patterns precede general ones.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
)

// PreconditionError reports a structurally required component missing from
// an archived asset. It is raised before any platform call.
type PreconditionError struct {
	Kind      asset.Kind
	ID        string
	Component string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s: missing required component %s", e.Kind, e.ID, e.Component)
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgMissingComponent = UserMessage{
		Message: "The archived asset is missing a required component",
		Action:  "Re-export the asset with its definition before restoring",
		Code:    "RST001",
	}
	msgUnsupported = UserMessage{
		Message: "Restore is not available for this asset kind",
		Action:  "Recreate the asset manually on the platform",
		Code:    "RST002",
	}
	msgDateSerialization = UserMessage{
		Message: "The platform SDK rejected a date value in the archived asset",
		Action:  "Re-export the asset or convert the date fields and retry",
		Code:    "RST003",
	}
	msgAlreadyExists = UserMessage{
		Message: "An asset with this id already exists",
		Action:  "Enable overwrite or choose a different target id",
		Code:    "RST004",
	}
	msgMissingDependency = UserMessage{
		Message: "A referenced asset does not exist",
		Action:  "Restore the referenced datasets or datasources first",
		Code:    "RST005",
	}
	msgAccessDenied = UserMessage{
		Message: "The platform refused the request",
		Action:  "Check the service role permissions for this account",
		Code:    "RST006",
	}
	msgInvalidDefinition = UserMessage{
		Message: "The platform rejected the asset definition",
		Action:  "Review the archived definition for unsupported settings",
		Code:    "RST007",
	}
	msgThrottled = UserMessage{
		Message: "Too many platform requests",
		Action:  "Wait a moment and retry, or lower batch parallelism",
		Code:    "RST008",
	}
	msgArchiveNotFound = UserMessage{
		Message: "No archived copy exists for this asset",
		Action:  "Verify the asset id and that it was archived",
		Code:    "RST009",
	}
	msgValidationFailed = UserMessage{
		Message: "Pre-restore validation reported errors",
		Action:  "Review the validation results",
		Code:    "RST010",
	}
	msgTimeout = UserMessage{
		Message: "The request timed out",
		Action:  "Try again later",
		Code:    "NET001",
	}
	msgCancelled = UserMessage{
		Message: "The request was cancelled",
		Action:  "Start the restore again when ready",
		Code:    "NET002",
	}
	msgUnreachable = UserMessage{
		Message: "A backing service could not be reached",
		Action:  "Try again in a few moments",
		Code:    "NET003",
	}
)

// dateDefectPatterns identify the SDK failure where an ISO date string is
// rejected where a date object is expected.
var dateDefectPatterns = []string{
	"parsing time",
	"of type time.time",
	"to be a date",
	"expected date",
}

var errorPatterns = buildPatterns()

func buildPatterns() []errorPattern {
	var out []errorPattern
	add := func(msg UserMessage, patterns ...string) {
		for _, p := range patterns {
			out = append(out, errorPattern{pattern: p, msg: msg})
		}
	}
	add(msgMissingComponent, "missing required component")
	add(msgUnsupported, "restore not implemented")
	add(msgDateSerialization, dateDefectPatterns...)
	add(msgValidationFailed, "validation failed")
	add(msgAlreadyExists, "already exists", "resourceexists")
	add(msgMissingDependency, "resource not found")
	add(msgArchiveNotFound, "object not found", "e_object_not_found")
	add(msgAccessDenied, "access denied", "accessdenied", "not authorized")
	add(msgInvalidDefinition, "invalidparametervalue", "invalid parameter")
	add(msgThrottled, "throttl", "rate exceeded", "limitexceeded")
	add(msgCancelled, "context canceled")
	add(msgTimeout, "context deadline exceeded", "timeout")
	add(msgUnreachable, "connection refused", "no such host")
	return out
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the deployment logs for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when none match.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// IsUserFacing reports whether err matches a known restore or transport
// failure rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError is a restore failure as shown to API and CLI callers: the mapped
// message plus the underlying error for logs and errors.Is.
type UserError struct {
	UserMessage
	Err error
}

// NewUserError maps err; it returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{UserMessage: MapError(err), Err: err}
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// Detail is the technical text, reworded for the SDK date defect.
func (e *UserError) Detail() string { return ClassifyError(e.Err) }

// String renders "CODE: message. action" for terminals.
func (e *UserError) String() string {
	return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Action)
}

// FormatUserError renders err for a terminal; see UserError.String.
func FormatUserError(err error) string {
	ue := NewUserError(err)
	if ue == nil {
		return ""
	}
	return ue.String()
}

// IsDateSerializationError reports whether err matches the SDK date defect.
func IsDateSerializationError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range dateDefectPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ClassifyError returns the operator-facing message recorded on a failed
// deployment or warning. Date serialization failures are re-worded; the
// original error text is kept at the end.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if IsDateSerializationError(err) {
		return "date serialization failed: the platform SDK expects a date object but the archived " +
			"document holds an ISO date string or epoch number; this is a known SDK defect, not a " +
			"problem with the archive (original error: " + err.Error() + ")"
	}
	return err.Error()
}
