package printing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the closed taxonomy every failure is tagged with.
type ErrorCode string

// Error codes.
const (
	CodePrinterNotFound   ErrorCode = "PRINTER_NOT_FOUND"
	CodePrinterOffline    ErrorCode = "PRINTER_OFFLINE"
	CodeAccessDenied      ErrorCode = "ACCESS_DENIED"
	CodeJobNotFound       ErrorCode = "JOB_NOT_FOUND"
	CodeDriverError       ErrorCode = "DRIVER_ERROR"
	CodeInvalidArguments  ErrorCode = "INVALID_ARGUMENTS"
	CodeFileNotFound      ErrorCode = "FILE_NOT_FOUND"
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeUnknown           ErrorCode = "UNKNOWN"
)

// Sentinels for errors.Is; any *Error with the same code matches.
var (
	ErrPrinterNotFound   = &Error{Code: CodePrinterNotFound}
	ErrPrinterOffline    = &Error{Code: CodePrinterOffline}
	ErrAccessDenied      = &Error{Code: CodeAccessDenied}
	ErrJobNotFound       = &Error{Code: CodeJobNotFound}
	ErrDriverError       = &Error{Code: CodeDriverError}
	ErrInvalidArguments  = &Error{Code: CodeInvalidArguments}
	ErrFileNotFound      = &Error{Code: CodeFileNotFound}
	ErrUnsupportedFormat = &Error{Code: CodeUnsupportedFormat}
	ErrUnknown           = &Error{Code: CodeUnknown}
)

// Error is a printing failure tagged with a taxonomy code and, when the
// operating system reported one, its native error number.
type Error struct {
	Code         ErrorCode
	Message      string
	PlatformCode int // 0 when absent
	Err          error
}

// Error renders "message [CODE, platform code: N]".
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.PlatformCode != 0 {
		return fmt.Sprintf("%s [%s, platform code: %d]", msg, e.Code, e.PlatformCode)
	}
	return fmt.Sprintf("%s [%s]", msg, e.Code)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap tags err with code. The message defaults to err's text.
func Wrap(err error, code ErrorCode, message string) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Code: code, Message: message, Err: err}
}

// WithPlatformCode returns a copy of e carrying the native error number.
func (e *Error) WithPlatformCode(code int) *Error {
	c := *e
	c.PlatformCode = code
	return &c
}

// PrinterNotFound reports a missing destination.
func PrinterNotFound(name string) *Error {
	return NewError(CodePrinterNotFound, fmt.Sprintf("Printer '%s' not found", name))
}

// JobNotFound reports a missing job.
func JobNotFound(id int) *Error {
	return NewError(CodeJobNotFound, fmt.Sprintf("Print job %d not found", id))
}

// FileNotFound reports an input file that cannot be opened.
func FileNotFound(path string) *Error {
	return NewError(CodeFileNotFound, fmt.Sprintf("File '%s' not found", path))
}

// AccessDenied reports a permission failure for an operation.
func AccessDenied(operation string) *Error {
	return NewError(CodeAccessDenied, "Access denied for operation: "+operation)
}

// InvalidArguments reports malformed caller input.
func InvalidArguments(details string) *Error {
	return NewError(CodeInvalidArguments, "Invalid arguments: "+details)
}

// Unsupported reports a format or operation the backend cannot honour.
func Unsupported(message string) *Error {
	return NewError(CodeUnsupportedFormat, message)
}

// CodeOf returns the taxonomy code carried by err, UNKNOWN for foreign
// errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// PlatformCodeOf returns the native error number carried by err, or 0.
func PlatformCodeOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.PlatformCode
	}
	return 0
}

// Winspool error numbers used by MapWindowsError.
const (
	winErrorFileNotFound                  = 2
	winErrorPathNotFound                  = 3
	winErrorAccessDenied                  = 5
	winErrorInvalidHandle                 = 6
	winErrorInvalidData                   = 13
	winErrorNotReady                      = 21
	winErrorNotSupported                  = 50
	winErrorInvalidParameter              = 87
	winErrorPrivilegeNotHeld              = 1314
	winErrorPrinterDriverAlreadyInstalled = 1795
	winErrorUnknownPrinterDriver          = 1797
	winErrorInvalidPrinterName            = 1801
	winErrorInvalidDatatype               = 1804
	winErrorPrinterDeleted                = 1905
	winErrorUnknownPrintMonitor           = 3000
	winErrorPrinterDriverInUse            = 3001
	winErrorSpoolFileNotFound             = 3002
	winErrorPrinterNotFound               = 3012
)

// ErrorInvalidParameter is the Winspool code returned for unknown job ids.
const ErrorInvalidParameter = winErrorInvalidParameter

// MapWindowsError classifies a Win32 error number. The context is the
// operation description and decides whether file/path errors refer to an
// input file.
func MapWindowsError(code uint32, context string) ErrorCode {
	switch code {
	case winErrorInvalidPrinterName, winErrorInvalidHandle, winErrorPrinterNotFound, winErrorPrinterDeleted:
		return CodePrinterNotFound
	case winErrorAccessDenied, winErrorPrivilegeNotHeld:
		return CodeAccessDenied
	case winErrorFileNotFound, winErrorPathNotFound:
		if strings.Contains(strings.ToLower(context), "file") {
			return CodeFileNotFound
		}
		return CodeUnknown
	case winErrorPrinterDriverInUse, winErrorSpoolFileNotFound, winErrorNotReady:
		return CodePrinterOffline
	case winErrorInvalidParameter, winErrorInvalidData:
		return CodeInvalidArguments
	case winErrorUnknownPrintMonitor, winErrorUnknownPrinterDriver, winErrorPrinterDriverAlreadyInstalled:
		return CodeDriverError
	case winErrorInvalidDatatype, winErrorNotSupported:
		return CodeUnsupportedFormat
	default:
		return CodeUnknown
	}
}

// FromWindowsError builds a tagged error from a failed Winspool call.
func FromWindowsError(code uint32, context string) *Error {
	return &Error{
		Code:         MapWindowsError(code, context),
		Message:      context,
		PlatformCode: int(code),
	}
}

// MapCupsError classifies a CUPS/IPP error string. Keyword groups are
// checked in a fixed priority order, so a message mentioning both a
// missing printer and a permission problem is PRINTER_NOT_FOUND.
func MapCupsError(text string) ErrorCode {
	s := strings.ToLower(text)

	if containsAny(s, "not found", "no such", "not-found") {
		switch {
		case containsAny(s, "printer", "destination"):
			return CodePrinterNotFound
		case strings.Contains(s, "job"):
			return CodeJobNotFound
		case strings.Contains(s, "file"):
			return CodeFileNotFound
		}
	}
	switch {
	case containsAny(s, "offline", "unavailable", "stopped"):
		return CodePrinterOffline
	case containsAny(s, "permission", "access denied", "unauthorized", "forbidden"):
		return CodeAccessDenied
	case containsAny(s, "driver", "ppd"):
		return CodeDriverError
	case containsAny(s, "invalid", "bad", "malformed"):
		return CodeInvalidArguments
	case containsAny(s, "format", "unsupported"):
		return CodeUnsupportedFormat
	}
	return CodeUnknown
}

// MapGenericError classifies a message of unknown origin.
func MapGenericError(text string) ErrorCode {
	s := strings.ToLower(text)

	if containsAny(s, "not found", "no such") {
		switch {
		case strings.Contains(s, "printer"):
			return CodePrinterNotFound
		case strings.Contains(s, "job"):
			return CodeJobNotFound
		case strings.Contains(s, "file"):
			return CodeFileNotFound
		}
	}
	switch {
	case containsAny(s, "offline", "not available", "unavailable"):
		return CodePrinterOffline
	case containsAny(s, "access denied", "permission", "unauthorized"):
		return CodeAccessDenied
	case strings.Contains(s, "driver"):
		return CodeDriverError
	case containsAny(s, "invalid", "argument"):
		return CodeInvalidArguments
	case containsAny(s, "unsupported", "format"):
		return CodeUnsupportedFormat
	}
	return CodeUnknown
}

// IPP status codes (RFC 8011 section 4.1.6 and CUPS extensions).
const (
	IPPStatusOK                      = 0x0000
	ippClientErrorBadRequest         = 0x0400
	ippClientErrorForbidden          = 0x0401
	ippClientErrorNotAuthenticated   = 0x0402
	ippClientErrorNotAuthorized      = 0x0403
	ippClientErrorNotPossible        = 0x0404
	ippClientErrorNotFound           = 0x0406
	ippClientErrorGone               = 0x0407
	ippClientErrorDocumentFormat     = 0x040A
	ippClientErrorAttributes         = 0x040B
	ippClientErrorCompressionNotSupp = 0x040F
	ippServerErrorInternal           = 0x0500
	ippServerErrorOperationNotSupp   = 0x0501
	ippServerErrorServiceUnavailable = 0x0502
	ippServerErrorNotAcceptingJobs   = 0x0506
	ippServerErrorBusy               = 0x0507
	ippServerErrorPrinterDeactivated = 0x050A
)

// MapIPPStatus classifies an IPP status code. Not-found statuses are
// resolved against subject ("printer", "job" or "file") because the
// protocol does not say which object was missing.
func MapIPPStatus(status int, subject string) ErrorCode {
	switch status {
	case ippClientErrorNotFound, ippClientErrorGone:
		switch subject {
		case "job":
			return CodeJobNotFound
		case "file":
			return CodeFileNotFound
		default:
			return CodePrinterNotFound
		}
	case ippClientErrorForbidden, ippClientErrorNotAuthenticated, ippClientErrorNotAuthorized:
		return CodeAccessDenied
	case ippClientErrorBadRequest, ippClientErrorAttributes:
		return CodeInvalidArguments
	case ippClientErrorDocumentFormat, ippClientErrorCompressionNotSupp, ippServerErrorOperationNotSupp,
		ippClientErrorNotPossible:
		return CodeUnsupportedFormat
	case ippServerErrorServiceUnavailable, ippServerErrorNotAcceptingJobs, ippServerErrorBusy,
		ippServerErrorPrinterDeactivated:
		return CodePrinterOffline
	case ippServerErrorInternal:
		return CodeDriverError
	}
	return CodeUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
