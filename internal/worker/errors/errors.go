// Package workererrors turns printing failures into short messages for
// WebSocket clients.
package workererrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adcondev/printbridge/internal/printing"
)

// ExtractUserFriendlyError creates a clean error message for the UI
func ExtractUserFriendlyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, printing.ErrShortWrite) {
		return "PRINTER: Spooler accepted only part of the data"
	}
	errStr := err.Error()

	// Specific causes first; they say more than the code does.
	errorMappings := []struct {
		pattern string
		message string
	}{
		{"worker queue is full", "QUEUE: Server busy, try again shortly"},
		{"worker pool is not running", "QUEUE: Service is shutting down"},
		{"rate limit exceeded", "QUEUE: Too many print jobs, slow down"},
		{"invalid or missing token", "AUTH: Invalid or missing token"},
		{"too many failed attempts", "AUTH: Too many failed attempts, try again later"},
		{"panic recovered", "INTERNAL: Unexpected failure while printing"},
		{"pause/resume not supported", "JOB: Pause and resume are not supported on this platform"},
		{"connection refused", "PRINTER: Print service unreachable - check that the spooler is running"},
		{"failed to create temporary file", "STORAGE: Cannot stage payload on disk"},
		{"failed to write temporary file", "STORAGE: Cannot stage payload on disk"},
	}
	for _, mapping := range errorMappings {
		if strings.Contains(strings.ToLower(errStr), mapping.pattern) {
			return mapping.message
		}
	}

	// Categorize by taxonomy code
	switch printing.CodeOf(err) {
	case printing.CodePrinterNotFound:
		return "PRINTER: Not found - check if printer is installed"
	case printing.CodePrinterOffline:
		return "PRINTER: Offline or not ready"
	case printing.CodeAccessDenied:
		return "ACCESS: Permission denied by the print spooler"
	case printing.CodeJobNotFound:
		return "JOB: Not found in the printer queue"
	case printing.CodeDriverError:
		return "DRIVER: Printer driver error"
	case printing.CodeFileNotFound:
		return "FILE: Cannot open the file to print"
	case printing.CodeUnsupportedFormat:
		return "FORMAT: Data format not supported by the printer"
	case printing.CodeInvalidArguments:
		return fmt.Sprintf("VALIDATION: %s", extractInnerError(cleanErrorMessage(errStr)))
	}

	// Fallback: return cleaned error
	return fmt.Sprintf("ERROR: %s", cleanErrorMessage(errStr))
}

// extractInnerError gets the innermost error message
func extractInnerError(errStr string) string {
	parts := strings.Split(errStr, ": ")
	return parts[len(parts)-1]
}

// cleanErrorMessage removes the taxonomy suffix and verbose prefixes
func cleanErrorMessage(errStr string) string {
	result := errStr
	if i := strings.LastIndex(result, " ["); i > 0 && strings.HasSuffix(result, "]") {
		result = result[:i]
	}
	prefixes := []string{
		"Invalid arguments: ",
		"failed to submit print job: ",
		"failed to list jobs: ",
		"failed to query job: ",
	}
	for _, prefix := range prefixes {
		result = strings.TrimPrefix(result, prefix)
	}
	return result
}
