// Package backend owns the printer and job backends for the current
// platform. The implementation is chosen at build time.
package backend

import (
	"sync"

	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
	"github.com/adcondev/printbridge/internal/printing/cups"
)

// Options configures backend construction.
type Options struct {
	// CUPS is used on non-Windows builds only.
	CUPS cups.Config
	// TempDir receives staged payloads; empty means os.TempDir.
	TempDir string
	Logger  *zap.Logger
}

// Context holds the process-wide backends. It is created once at startup
// and read-only afterwards.
type Context struct {
	Printers printing.PrinterAPI
	Jobs     printing.JobAPI
	// Platform is "winspool" or "cups".
	Platform string

	closeOnce sync.Once
	closeErr  error
	closer    func() error
}

// Close releases platform resources. It is safe to call more than once.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			c.closeErr = c.closer()
		}
	})
	return c.closeErr
}

func logger(opts Options) *zap.Logger {
	if opts.Logger == nil {
		return zap.NewNop()
	}
	return opts.Logger
}
