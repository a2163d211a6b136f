package printing

import "strings"

// PrinterState is the normalized printer state.
type PrinterState string

// Printer states.
const (
	PrinterIdle     PrinterState = "idle"
	PrinterPrinting PrinterState = "printing"
	PrinterStopped  PrinterState = "stopped"
	PrinterOffline  PrinterState = "offline"
	PrinterError    PrinterState = "error"
)

// JobState is the normalized job state.
type JobState string

// Job states.
const (
	JobPending   JobState = "pending"
	JobPrinting  JobState = "printing"
	JobCompleted JobState = "completed"
	JobCanceled  JobState = "canceled"
	JobError     JobState = "error"
)

// JobCommand controls a queued job.
type JobCommand int

// Job commands.
const (
	JobPause JobCommand = iota + 1
	JobResume
	JobCancel
)

func (c JobCommand) String() string {
	switch c {
	case JobPause:
		return "pause"
	case JobResume:
		return "resume"
	case JobCancel:
		return "cancel"
	}
	return "unknown"
}

// ParseJobCommand parses "pause", "resume" or "cancel", ignoring case.
func ParseJobCommand(s string) (JobCommand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pause":
		return JobPause, nil
	case "resume":
		return JobResume, nil
	case "cancel":
		return JobCancel, nil
	}
	return 0, InvalidArguments("unknown job command '" + s + "'")
}

// Winspool PRINTER_STATUS_* bits.
const (
	PrinterStatusPaused           uint32 = 0x00000001
	PrinterStatusError            uint32 = 0x00000002
	PrinterStatusPendingDeletion  uint32 = 0x00000004
	PrinterStatusPaperJam         uint32 = 0x00000008
	PrinterStatusPaperOut         uint32 = 0x00000010
	PrinterStatusManualFeed       uint32 = 0x00000020
	PrinterStatusPaperProblem     uint32 = 0x00000040
	PrinterStatusOffline          uint32 = 0x00000080
	PrinterStatusIOActive         uint32 = 0x00000100
	PrinterStatusBusy             uint32 = 0x00000200
	PrinterStatusPrinting         uint32 = 0x00000400
	PrinterStatusOutputBinFull    uint32 = 0x00000800
	PrinterStatusNotAvailable     uint32 = 0x00001000
	PrinterStatusWaiting          uint32 = 0x00002000
	PrinterStatusProcessing       uint32 = 0x00004000
	PrinterStatusInitializing     uint32 = 0x00008000
	PrinterStatusWarmingUp        uint32 = 0x00010000
	PrinterStatusTonerLow         uint32 = 0x00020000
	PrinterStatusNoToner          uint32 = 0x00040000
	PrinterStatusPagePunt         uint32 = 0x00080000
	PrinterStatusUserIntervention uint32 = 0x00100000
	PrinterStatusOutOfMemory      uint32 = 0x00200000
	PrinterStatusDoorOpen         uint32 = 0x00400000
	PrinterStatusServerUnknown    uint32 = 0x00800000
	PrinterStatusPowerSave        uint32 = 0x01000000
)

// Winspool JOB_STATUS_* bits.
const (
	JobStatusPaused           uint32 = 0x00000001
	JobStatusError            uint32 = 0x00000002
	JobStatusDeleting         uint32 = 0x00000004
	JobStatusSpooling         uint32 = 0x00000008
	JobStatusPrinting         uint32 = 0x00000010
	JobStatusOffline          uint32 = 0x00000020
	JobStatusPaperOut         uint32 = 0x00000040
	JobStatusPrinted          uint32 = 0x00000080
	JobStatusDeleted          uint32 = 0x00000100
	JobStatusBlockedDevQ      uint32 = 0x00000200
	JobStatusUserIntervention uint32 = 0x00000400
	JobStatusRestart          uint32 = 0x00000800
	JobStatusComplete         uint32 = 0x00001000
	JobStatusRetained         uint32 = 0x00002000
)

const (
	printerErrorBits = PrinterStatusError | PrinterStatusNoToner | PrinterStatusPaperJam |
		PrinterStatusPaperOut | PrinterStatusPaperProblem | PrinterStatusOutputBinFull
	printerOfflineBits  = PrinterStatusOffline | PrinterStatusNotAvailable | PrinterStatusServerUnknown
	printerPrintingBits = PrinterStatusPrinting | PrinterStatusProcessing | PrinterStatusIOActive | PrinterStatusBusy
	printerStoppedBits  = PrinterStatusPaused | PrinterStatusPendingDeletion

	jobErrorBits    = JobStatusError | JobStatusBlockedDevQ | JobStatusUserIntervention
	jobCanceledBits = JobStatusDeleting | JobStatusDeleted
	jobPrintingBits = JobStatusPrinting | JobStatusSpooling
)

// MapPrinterState normalizes a Winspool printer status word. When several
// bits are set the first matching class wins: error, offline, printing,
// stopped, idle.
func MapPrinterState(status uint32) PrinterState {
	switch {
	case status&printerErrorBits != 0:
		return PrinterError
	case status&printerOfflineBits != 0:
		return PrinterOffline
	case status&printerPrintingBits != 0:
		return PrinterPrinting
	case status&printerStoppedBits != 0:
		return PrinterStopped
	}
	return PrinterIdle
}

// MapJobState normalizes a Winspool job status word. Paused jobs are
// reported as pending.
func MapJobState(status uint32) JobState {
	switch {
	case status&jobErrorBits != 0:
		return JobError
	case status&jobCanceledBits != 0:
		return JobCanceled
	case status&JobStatusPrinted != 0:
		return JobCompleted
	case status&jobPrintingBits != 0:
		return JobPrinting
	}
	return JobPending
}

// IPP printer-state enum values.
const (
	IPPPrinterIdle       = 3
	IPPPrinterProcessing = 4
	IPPPrinterStopped    = 5
)

// IPP job-state enum values.
const (
	IPPJobPending    = 3
	IPPJobHeld       = 4
	IPPJobProcessing = 5
	IPPJobStopped    = 6
	IPPJobCanceled   = 7
	IPPJobAborted    = 8
	IPPJobCompleted  = 9
)

// MapCupsPrinterState normalizes an IPP printer-state value.
func MapCupsPrinterState(state int) PrinterState {
	switch state {
	case IPPPrinterIdle:
		return PrinterIdle
	case IPPPrinterProcessing:
		return PrinterPrinting
	case IPPPrinterStopped:
		return PrinterStopped
	}
	return PrinterOffline
}

// MapCupsJobState normalizes an IPP job-state value. Held jobs are
// reported as pending; values outside the enum are errors.
func MapCupsJobState(state int) JobState {
	switch state {
	case IPPJobPending, IPPJobHeld:
		return JobPending
	case IPPJobProcessing:
		return JobPrinting
	case IPPJobStopped, IPPJobAborted:
		return JobError
	case IPPJobCanceled:
		return JobCanceled
	case IPPJobCompleted:
		return JobCompleted
	}
	return JobError
}

var printerStatusNames = []struct {
	bit  uint32
	name string
}{
	{PrinterStatusBusy, "BUSY"},
	{PrinterStatusDoorOpen, "DOOR-OPEN"},
	{PrinterStatusError, "ERROR"},
	{PrinterStatusInitializing, "INITIALIZING"},
	{PrinterStatusIOActive, "IO-ACTIVE"},
	{PrinterStatusManualFeed, "MANUAL-FEED"},
	{PrinterStatusNoToner, "NO-TONER"},
	{PrinterStatusNotAvailable, "NOT-AVAILABLE"},
	{PrinterStatusOffline, "OFFLINE"},
	{PrinterStatusOutOfMemory, "OUT-OF-MEMORY"},
	{PrinterStatusOutputBinFull, "OUTPUT-BIN-FULL"},
	{PrinterStatusPagePunt, "PAGE-PUNT"},
	{PrinterStatusPaperJam, "PAPER-JAM"},
	{PrinterStatusPaperOut, "PAPER-OUT"},
	{PrinterStatusPaperProblem, "PAPER-PROBLEM"},
	{PrinterStatusPaused, "PAUSED"},
	{PrinterStatusPendingDeletion, "PENDING-DELETION"},
	{PrinterStatusPowerSave, "POWER-SAVE"},
	{PrinterStatusPrinting, "PRINTING"},
	{PrinterStatusProcessing, "PROCESSING"},
	{PrinterStatusServerUnknown, "SERVER-UNKNOWN"},
	{PrinterStatusTonerLow, "TONER-LOW"},
	{PrinterStatusUserIntervention, "USER-INTERVENTION"},
	{PrinterStatusWaiting, "WAITING"},
	{PrinterStatusWarmingUp, "WARMING-UP"},
}

// PrinterStatusFlags lists the names of the Winspool status bits set in
// status, in alphabetical order.
func PrinterStatusFlags(status uint32) []string {
	var names []string
	for _, s := range printerStatusNames {
		if status&s.bit != 0 {
			names = append(names, s.name)
		}
	}
	return names
}
