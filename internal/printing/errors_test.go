package printing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	e := &Error{Code: CodePrinterNotFound, Message: "Printer 'X' not found"}
	assert.Equal(t, "Printer 'X' not found [PRINTER_NOT_FOUND]", e.Error())

	e = e.WithPlatformCode(1801)
	assert.Equal(t, "Printer 'X' not found [PRINTER_NOT_FOUND, platform code: 1801]", e.Error())
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("get job: %w", JobNotFound(42))

	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.False(t, errors.Is(err, ErrPrinterNotFound))
	assert.Equal(t, CodeJobNotFound, CodeOf(err))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeUnknown, "")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "disk full [UNKNOWN]", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeAccessDenied, CodeOf(AccessDenied("cancel")))
	assert.Equal(t, 0, PlatformCodeOf(errors.New("plain")))
	assert.Equal(t, 5, PlatformCodeOf(FromWindowsError(5, "open printer")))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		code ErrorCode
		msg  string
	}{
		{PrinterNotFound("HP"), CodePrinterNotFound, "Printer 'HP' not found"},
		{JobNotFound(7), CodeJobNotFound, "Print job 7 not found"},
		{FileNotFound("/tmp/a.pdf"), CodeFileNotFound, "File '/tmp/a.pdf' not found"},
		{AccessDenied("pause"), CodeAccessDenied, "Access denied for operation: pause"},
		{InvalidArguments("copies"), CodeInvalidArguments, "Invalid arguments: copies"},
		{Unsupported("Pause/Resume not supported"), CodeUnsupportedFormat, "Pause/Resume not supported"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.msg, tt.err.Message)
			assert.Zero(t, tt.err.PlatformCode)
		})
	}
}

func TestMapWindowsError(t *testing.T) {
	tests := []struct {
		name    string
		code    uint32
		context string
		want    ErrorCode
	}{
		{"invalid printer name", 1801, "open printer", CodePrinterNotFound},
		{"invalid handle", 6, "", CodePrinterNotFound},
		{"printer not found", 3012, "", CodePrinterNotFound},
		{"access denied", 5, "", CodeAccessDenied},
		{"privilege not held", 1314, "", CodeAccessDenied},
		{"file not found with file context", 2, "open file", CodeFileNotFound},
		{"file not found with FILE context", 3, "Read FILE", CodeFileNotFound},
		{"file not found without file context", 2, "open printer", CodeUnknown},
		{"driver in use", 3001, "", CodePrinterOffline},
		{"spool file not found", 3002, "", CodePrinterOffline},
		{"invalid parameter", 87, "", CodeInvalidArguments},
		{"invalid data", 13, "", CodeInvalidArguments},
		{"unknown print monitor", 3000, "", CodeDriverError},
		{"driver already installed", 1795, "", CodeDriverError},
		{"invalid datatype", 1804, "", CodeUnsupportedFormat},
		{"unmapped", 9999, "", CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapWindowsError(tt.code, tt.context))
		})
	}
}

func TestMapCupsError(t *testing.T) {
	tests := []struct {
		text string
		want ErrorCode
	}{
		{"The printer or class does not exist: not found", CodePrinterNotFound},
		{"Destination not found", CodePrinterNotFound},
		{"No such job", CodeJobNotFound},
		{"job #12 not found", CodeJobNotFound},
		{"File not found", CodeFileNotFound},
		{"Printer is offline", CodePrinterOffline},
		{"Destination unavailable", CodePrinterOffline},
		{"Printer stopped", CodePrinterOffline},
		{"Permission denied", CodeAccessDenied},
		{"Unauthorized", CodeAccessDenied},
		{"PPD file missing", CodeDriverError},
		{"Driver crashed", CodeDriverError},
		{"Bad request", CodeInvalidArguments},
		{"Malformed attributes", CodeInvalidArguments},
		{"Unsupported document-format", CodeUnsupportedFormat},
		{"something else", CodeUnknown},
		// Priority: not-found outranks access-denied.
		{"printer not found: permission denied", CodePrinterNotFound},
		// Priority: offline outranks invalid.
		{"invalid request, printer offline", CodePrinterOffline},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, MapCupsError(tt.text))
		})
	}
}

func TestMapGenericError(t *testing.T) {
	assert.Equal(t, CodePrinterNotFound, MapGenericError("printer not found"))
	assert.Equal(t, CodePrinterOffline, MapGenericError("device not available"))
	assert.Equal(t, CodeInvalidArguments, MapGenericError("bad argument"))
	assert.Equal(t, CodeUnknown, MapGenericError("boom"))
}

func TestMapIPPStatus(t *testing.T) {
	assert.Equal(t, CodePrinterNotFound, MapIPPStatus(0x0406, "printer"))
	assert.Equal(t, CodeJobNotFound, MapIPPStatus(0x0406, "job"))
	assert.Equal(t, CodeAccessDenied, MapIPPStatus(0x0401, "printer"))
	assert.Equal(t, CodeUnsupportedFormat, MapIPPStatus(0x040A, "printer"))
	assert.Equal(t, CodePrinterOffline, MapIPPStatus(0x0506, "printer"))
	assert.Equal(t, CodeUnknown, MapIPPStatus(0x0001, "printer"))
}

func TestErrorCodesAreClosed(t *testing.T) {
	codes := []ErrorCode{
		CodePrinterNotFound, CodePrinterOffline, CodeAccessDenied, CodeJobNotFound, CodeDriverError,
		CodeInvalidArguments, CodeFileNotFound, CodeUnsupportedFormat, CodeUnknown,
	}
	for code := uint32(0); code < 4000; code++ {
		require.Contains(t, codes, MapWindowsError(code, "file"))
	}
}
