// Package winspool implements the printer and job backends on top of the
// Windows print spooler. The spooler itself sits behind the Spooler and
// Handle interfaces; the winspool.drv binding lives in spooler_windows.go.
package winspool

import (
	"errors"
	"syscall"
	"time"

	"github.com/adcondev/printbridge/internal/printing"
)

// PrinterRecord mirrors the PRINTER_INFO_2 members the backend reads.
type PrinterRecord struct {
	Name            string
	ShareName       string
	PortName        string
	DriverName      string
	Comment         string
	Location        string
	Datatype        string
	PrintProcessor  string
	Attributes      uint32
	Priority        uint32
	DefaultPriority uint32
	Status          uint32
	Jobs            uint32
}

// JobRecord mirrors the JOB_INFO_2 members the backend reads.
type JobRecord struct {
	ID           uint32
	PrinterName  string
	UserName     string
	Document     string
	Datatype     string
	Status       uint32
	TotalPages   uint32
	PagesPrinted uint32
	Size         uint32
	Submitted    time.Time
}

// DeviceCaps is what DeviceCapabilities reports for a printer.
type DeviceCaps struct {
	PaperNames []string
	Duplex     bool
	Color      bool
}

// DocInfo names a document for StartDoc.
type DocInfo struct {
	Name     string
	Datatype string
}

// Spooler is the process-level view of the print spooler. Failures are
// returned as syscall.Errno values.
type Spooler interface {
	EnumPrinters() ([]PrinterRecord, error)
	DefaultPrinter() (string, error)
	// Open returns a handle scoped to one operation. A non-nil dm becomes
	// the handle's default DEVMODE.
	Open(name string, dm *printing.DevMode) (Handle, error)
	DeviceCapabilities(name, port string) (DeviceCaps, error)
}

// Handle is an open printer. Callers close it before returning.
type Handle interface {
	Printer() (PrinterRecord, error)
	StartDoc(doc DocInfo) (uint32, error)
	StartPage() error
	Write(p []byte) (int, error)
	EndPage() error
	EndDoc() error
	Jobs() ([]JobRecord, error)
	Job(id uint32) (JobRecord, error)
	SetJob(id uint32, command uint32) error
	Close() error
}

// JOB_CONTROL_* commands for SetJob.
const (
	jobControlPause  uint32 = 1
	jobControlResume uint32 = 2
	jobControlCancel uint32 = 3
)

func jobControl(cmd printing.JobCommand) (uint32, bool) {
	switch cmd {
	case printing.JobPause:
		return jobControlPause, true
	case printing.JobResume:
		return jobControlResume, true
	case printing.JobCancel:
		return jobControlCancel, true
	}
	return 0, false
}

// errnoOf extracts the Win32 error number from err.
func errnoOf(err error) (uint32, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno), true
	}
	return 0, false
}

// classify tags a spooler failure. context describes the operation and
// decides how file and path errors are read.
func classify(err error, context string) error {
	var pe *printing.Error
	if errors.As(err, &pe) {
		return err
	}
	if code, ok := errnoOf(err); ok {
		e := printing.FromWindowsError(code, context)
		e.Err = err
		return e
	}
	return printing.Wrap(err, printing.MapGenericError(err.Error()), context+": "+err.Error())
}
