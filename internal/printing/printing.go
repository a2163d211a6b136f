// Package printing defines the platform-neutral printing model: printer and
// job records, the normalized state vocabularies, print options, the error
// taxonomy and the backend contracts implemented per operating system.
package printing

// PrinterInfo describes a spooler destination.
type PrinterInfo struct {
	Name           string
	IsDefault      bool
	State          PrinterState
	Location       string
	Description    string
	Formats        []string
	PaperSizes     []string
	SupportsDuplex bool
	SupportsColor  bool
}

// PrinterCapabilities is the best-effort feature set of a printer.
// Absent fields are empty, never an error.
type PrinterCapabilities struct {
	Formats    []string
	PaperSizes []string
	Duplex     bool
	Color      bool
}

// JobInfo describes a job in a printer queue. The pair (Printer, ID) is
// unique; times are Unix seconds and 0 means not reached or unknown.
type JobInfo struct {
	ID             int
	State          JobState
	Printer        string
	Title          string
	User           string
	CreationTime   int64
	ProcessingTime int64
	CompletedTime  int64
	Pages          int
	Size           int64
}

// PrintFileRequest submits an existing file.
type PrintFileRequest struct {
	Printer  string
	Path     string
	Options  PrintOptions
	Datatype string // format name; empty lets the backend choose
}

// PrintRawRequest submits an in-memory payload.
type PrintRawRequest struct {
	Printer string
	Data    []byte
	Format  string
	Options PrintOptions
}

// PrinterAPI enumerates and inspects printers.
type PrinterAPI interface {
	GetPrinters() ([]PrinterInfo, error)
	GetPrinter(name string) (PrinterInfo, error)
	// GetDefaultPrinterName returns "" when no default is configured.
	GetDefaultPrinterName() string
	GetSupportedFormats() []string
	GetCapabilities(name string) (PrinterCapabilities, error)
	GetDriverOptions(name string) (map[string]string, error)
}

// JobAPI submits and controls print jobs.
type JobAPI interface {
	PrintFile(req PrintFileRequest) (int, error)
	PrintRaw(req PrintRawRequest) (int, error)
	GetJob(printer string, id int) (JobInfo, error)
	// GetJobs lists the jobs of one printer, or of every printer when
	// printer is empty.
	GetJobs(printer string) ([]JobInfo, error)
	SetJob(printer string, id int, cmd JobCommand) error
}

// Canonical format names accepted by PrintRaw.
const (
	FormatRaw        = "RAW"
	FormatText       = "TEXT"
	FormatPDF        = "PDF"
	FormatJPEG       = "JPEG"
	FormatImage      = "IMAGE"
	FormatPostScript = "POSTSCRIPT"
	FormatAuto       = "AUTO"
	FormatCommand    = "COMMAND"
)
