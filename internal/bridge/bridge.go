// Package bridge is the asynchronous binding surface of printbridge. Every
// operation validates its arguments on the caller's goroutine, runs the
// backend call on the worker pool and hands back a Call that resolves
// with boundary DTOs.
package bridge

import (
	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
	"github.com/adcondev/printbridge/internal/worker"
)

// Bridge binds the printer and job backends to the worker pool.
type Bridge struct {
	printers printing.PrinterAPI
	jobs     printing.JobAPI
	pool     *worker.Pool
	log      *zap.Logger
}

// New creates a Bridge. The pool must be started by the caller.
func New(printers printing.PrinterAPI, jobs printing.JobAPI, pool *worker.Pool, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{printers: printers, jobs: jobs, pool: pool, log: log}
}

// run submits fn to the pool and returns its pending result. A rejected
// submission resolves the call immediately with the pool's error.
func run[T any](b *Bridge, name string, fn func() (T, error)) *Call[T] {
	c := newCall[T]()
	var v T
	err := b.pool.Submit(name, func() error {
		var err error
		v, err = fn()
		return err
	}, func(err error) {
		if err != nil {
			var zero T
			c.resolve(zero, err)
			return
		}
		c.resolve(v, nil)
	})
	if err != nil {
		b.log.Warn("operation not queued", zap.String("operation", name), zap.Error(err))
		var zero T
		c.resolve(zero, err)
	}
	return c
}

// GetPrinters lists every printer.
func (b *Bridge) GetPrinters() *Call[[]PrinterDTO] {
	return run(b, "get_printers", func() ([]PrinterDTO, error) {
		printers, err := b.printers.GetPrinters()
		if err != nil {
			return nil, err
		}
		out := make([]PrinterDTO, 0, len(printers))
		for _, p := range printers {
			out = append(out, NewPrinterDTO(p))
		}
		return out, nil
	})
}

// GetPrinter describes one printer.
func (b *Bridge) GetPrinter(name string) *Call[PrinterDTO] {
	if name == "" {
		return failed[PrinterDTO](printing.InvalidArguments("Printer name is required"))
	}
	return run(b, "get_printer", func() (PrinterDTO, error) {
		p, err := b.printers.GetPrinter(name)
		if err != nil {
			return PrinterDTO{}, err
		}
		return NewPrinterDTO(p), nil
	})
}

// GetDefaultPrinterName resolves to nil when no default is configured.
func (b *Bridge) GetDefaultPrinterName() *Call[*string] {
	return run(b, "get_default_printer", func() (*string, error) {
		name := b.printers.GetDefaultPrinterName()
		if name == "" {
			return nil, nil
		}
		return &name, nil
	})
}

// GetSupportedPrintFormats lists the formats the platform accepts.
func (b *Bridge) GetSupportedPrintFormats() *Call[[]string] {
	return run(b, "get_formats", func() ([]string, error) {
		return nonNil(b.printers.GetSupportedFormats()), nil
	})
}

// GetPrinterCapabilities reports the best-effort feature set of a printer.
func (b *Bridge) GetPrinterCapabilities(name string) *Call[CapabilitiesDTO] {
	if name == "" {
		return failed[CapabilitiesDTO](printing.InvalidArguments("Printer name is required"))
	}
	return run(b, "get_capabilities", func() (CapabilitiesDTO, error) {
		c, err := b.printers.GetCapabilities(name)
		if err != nil {
			return CapabilitiesDTO{}, err
		}
		return NewCapabilitiesDTO(c), nil
	})
}

// GetPrinterDriverOptions returns the driver key/value pairs of a printer.
func (b *Bridge) GetPrinterDriverOptions(name string) *Call[map[string]string] {
	if name == "" {
		return failed[map[string]string](printing.InvalidArguments("Printer name is required"))
	}
	return run(b, "get_driver_options", func() (map[string]string, error) {
		opts, err := b.printers.GetDriverOptions(name)
		if err != nil {
			return nil, err
		}
		if opts == nil {
			opts = map[string]string{}
		}
		return opts, nil
	})
}

// PrintFile submits an existing file.
func (b *Bridge) PrintFile(filename, printer string, options map[string]any) *Call[JobResultDTO] {
	if printer == "" || filename == "" {
		return failed[JobResultDTO](printing.InvalidArguments("Printer name and file path are required"))
	}
	opts, err := OptionsFromMap(options)
	if err != nil {
		return failed[JobResultDTO](err)
	}
	return run(b, "print_file", func() (JobResultDTO, error) {
		id, err := b.jobs.PrintFile(printing.PrintFileRequest{Printer: printer, Path: filename, Options: opts})
		if err != nil {
			return JobResultDTO{}, err
		}
		if id <= 0 {
			return JobResultDTO{}, printing.NewError(printing.CodeUnknown, "Failed to queue print job")
		}
		b.log.Info("file queued", zap.String("printer", printer), zap.String("file", filename), zap.Int("job_id", id))
		return JobResultDTO{ID: id, Printer: printer}, nil
	})
}

// PrintDirect submits an in-memory payload. An empty format means RAW.
func (b *Bridge) PrintDirect(data []byte, printer, format string, options map[string]any) *Call[JobResultDTO] {
	if printer == "" || len(data) == 0 {
		return failed[JobResultDTO](printing.InvalidArguments("Printer name and data are required"))
	}
	opts, err := OptionsFromMap(options)
	if err != nil {
		return failed[JobResultDTO](err)
	}
	if format == "" {
		format = printing.FormatRaw
	}
	return run(b, "print_raw", func() (JobResultDTO, error) {
		id, err := b.jobs.PrintRaw(printing.PrintRawRequest{Printer: printer, Data: data, Format: format, Options: opts})
		if err != nil {
			return JobResultDTO{}, err
		}
		if id <= 0 {
			return JobResultDTO{}, printing.NewError(printing.CodeUnknown, "Failed to queue print job")
		}
		b.log.Info("payload queued",
			zap.String("printer", printer),
			zap.String("format", format),
			zap.Int("bytes", len(data)),
			zap.Int("job_id", id))
		return JobResultDTO{ID: id, Printer: printer}, nil
	})
}

// GetJob describes one job.
func (b *Bridge) GetJob(printer string, id int) *Call[JobDTO] {
	if printer == "" || id <= 0 {
		return failed[JobDTO](printing.InvalidArguments("Valid printer name and job ID are required"))
	}
	return run(b, "get_job", func() (JobDTO, error) {
		j, err := b.jobs.GetJob(printer, id)
		if err != nil {
			return JobDTO{}, err
		}
		return NewJobDTO(j), nil
	})
}

// GetJobs lists the jobs of printer, or of every printer when it is empty.
func (b *Bridge) GetJobs(printer string) *Call[[]JobDTO] {
	return run(b, "get_jobs", func() ([]JobDTO, error) {
		jobs, err := b.jobs.GetJobs(printer)
		if err != nil {
			return nil, err
		}
		out := make([]JobDTO, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, NewJobDTO(j))
		}
		return out, nil
	})
}

// SetJob pauses, resumes or cancels a job. It resolves to true on success.
func (b *Bridge) SetJob(printer string, id int, command string) *Call[bool] {
	if printer == "" || id <= 0 {
		return failed[bool](printing.InvalidArguments("Valid printer name and job ID are required"))
	}
	cmd, err := printing.ParseJobCommand(command)
	if err != nil {
		return failed[bool](err)
	}
	return run(b, "set_job", func() (bool, error) {
		if err := b.jobs.SetJob(printer, id, cmd); err != nil {
			return false, err
		}
		b.log.Info("job command applied", zap.String("printer", printer), zap.Int("job_id", id), zap.Stringer("command", cmd))
		return true, nil
	})
}

// Stats reports the worker pool statistics.
func (b *Bridge) Stats() worker.Statistics {
	return b.pool.Stats()
}
