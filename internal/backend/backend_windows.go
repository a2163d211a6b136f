//go:build windows

package backend

import (
	"github.com/adcondev/printbridge/internal/printing/winspool"
)

// New builds the Winspool backends. Spooler calls are not serialized.
func New(opts Options) (*Context, error) {
	log := logger(opts).Named("winspool")
	sp := winspool.New()
	return &Context{
		Printers: winspool.NewPrinters(sp, log),
		Jobs:     winspool.NewJobs(sp, opts.TempDir, log),
		Platform: "winspool",
	}, nil
}
