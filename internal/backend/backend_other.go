//go:build !windows

package backend

import (
	"github.com/adcondev/printbridge/internal/printing/cups"
)

// New builds the CUPS backends around a single shared session.
func New(opts Options) (*Context, error) {
	log := logger(opts)
	cfg := opts.CUPS
	if cfg.TempDir == "" {
		cfg.TempDir = opts.TempDir
	}

	session := cups.NewSession(cups.NewTransport(cfg), cfg, log.Named("cups"))
	return &Context{
		Printers: cups.NewPrinters(session),
		Jobs:     cups.NewJobs(session),
		Platform: "cups",
		closer:   session.Close,
	}, nil
}
