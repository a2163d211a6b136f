//go:build windows

package winspool

import (
	"errors"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/adcondev/printbridge/internal/printing"
)

var (
	modwinspool = windows.NewLazySystemDLL("winspool.drv")

	procEnumPrintersW       = modwinspool.NewProc("EnumPrintersW")
	procGetDefaultPrinterW  = modwinspool.NewProc("GetDefaultPrinterW")
	procOpenPrinterW        = modwinspool.NewProc("OpenPrinterW")
	procClosePrinter        = modwinspool.NewProc("ClosePrinter")
	procGetPrinterW         = modwinspool.NewProc("GetPrinterW")
	procDocumentPropertiesW = modwinspool.NewProc("DocumentPropertiesW")
	procDeviceCapabilitiesW = modwinspool.NewProc("DeviceCapabilitiesW")
	procStartDocPrinterW    = modwinspool.NewProc("StartDocPrinterW")
	procStartPagePrinter    = modwinspool.NewProc("StartPagePrinter")
	procWritePrinter        = modwinspool.NewProc("WritePrinter")
	procEndPagePrinter      = modwinspool.NewProc("EndPagePrinter")
	procEndDocPrinter       = modwinspool.NewProc("EndDocPrinter")
	procEnumJobsW           = modwinspool.NewProc("EnumJobsW")
	procGetJobW             = modwinspool.NewProc("GetJobW")
	procSetJobW             = modwinspool.NewProc("SetJobW")
)

const (
	printerEnumLocal       = 0x00000002
	printerEnumConnections = 0x00000004
	printerAccessUse       = 0x00000008

	dmOutBuffer = 2
	dmInBuffer  = 8

	dcDuplex      = 7
	dcPaperNames  = 16
	dcColorDevice = 32
	paperNameLen  = 64

	maxJobs = 0xFFFF
)

type printerInfo2 struct {
	ServerName         *uint16
	PrinterName        *uint16
	ShareName          *uint16
	PortName           *uint16
	DriverName         *uint16
	Comment            *uint16
	Location           *uint16
	DevMode            uintptr
	SepFile            *uint16
	PrintProcessor     *uint16
	Datatype           *uint16
	Parameters         *uint16
	SecurityDescriptor uintptr
	Attributes         uint32
	Priority           uint32
	DefaultPriority    uint32
	StartTime          uint32
	UntilTime          uint32
	Status             uint32
	Jobs               uint32
	AveragePPM         uint32
}

type jobInfo2 struct {
	JobID              uint32
	PrinterName        *uint16
	MachineName        *uint16
	UserName           *uint16
	Document           *uint16
	NotifyName         *uint16
	Datatype           *uint16
	PrintProcessor     *uint16
	Parameters         *uint16
	DriverName         *uint16
	DevMode            uintptr
	StatusText         *uint16
	SecurityDescriptor uintptr
	Status             uint32
	Priority           uint32
	Position           uint32
	StartTime          uint32
	UntilTime          uint32
	TotalPages         uint32
	Size               uint32
	Submitted          windows.Systemtime
	Time               uint32
	PagesPrinted       uint32
}

type docInfo1 struct {
	DocName    *uint16
	OutputFile *uint16
	Datatype   *uint16
}

type printerDefaults struct {
	Datatype      *uint16
	DevMode       uintptr
	DesiredAccess uint32
}

// devModeW covers the printer part of DEVMODEW; drivers append private
// bytes after it.
type devModeW struct {
	DeviceName    [32]uint16
	SpecVersion   uint16
	DriverVersion uint16
	Size          uint16
	DriverExtra   uint16
	Fields        uint32
	Orientation   int16
	PaperSize     int16
	PaperLength   int16
	PaperWidth    int16
	Scale         int16
	Copies        int16
	DefaultSource int16
	PrintQuality  int16
	Color         int16
	Duplex        int16
	YResolution   int16
	TTOption      int16
	Collate       int16
	FormName      [32]uint16
}

// lastError turns the error returned by a failed proc call into an Errno.
func lastError(e error, op string) error {
	var errno syscall.Errno
	if errors.As(e, &errno) && errno != 0 {
		return errno
	}
	return errors.New(op + " failed")
}

type spooler struct{}

// New returns the winspool.drv binding.
func New() Spooler {
	return spooler{}
}

func (spooler) EnumPrinters() ([]PrinterRecord, error) {
	var needed, returned uint32
	flags := uintptr(printerEnumLocal | printerEnumConnections)

	r1, _, e1 := procEnumPrintersW.Call(flags, 0, 2, 0, 0,
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r1 == 0 && !errors.Is(e1, windows.ERROR_INSUFFICIENT_BUFFER) {
		return nil, lastError(e1, "EnumPrinters")
	}
	if needed == 0 {
		return []PrinterRecord{}, nil
	}

	buf := make([]byte, needed)
	r1, _, e1 = procEnumPrintersW.Call(flags, 0, 2,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r1 == 0 {
		return nil, lastError(e1, "EnumPrinters")
	}
	if returned == 0 {
		return []PrinterRecord{}, nil
	}

	infos := unsafe.Slice((*printerInfo2)(unsafe.Pointer(&buf[0])), returned)
	out := make([]PrinterRecord, 0, returned)
	for i := range infos {
		out = append(out, printerRecord(&infos[i]))
	}
	return out, nil
}

func (spooler) DefaultPrinter() (string, error) {
	var n uint32
	r1, _, e1 := procGetDefaultPrinterW.Call(0, uintptr(unsafe.Pointer(&n)))
	if r1 == 0 && !errors.Is(e1, windows.ERROR_INSUFFICIENT_BUFFER) {
		return "", lastError(e1, "GetDefaultPrinter")
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]uint16, n)
	r1, _, e1 = procGetDefaultPrinterW.Call(uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&n)))
	if r1 == 0 {
		return "", lastError(e1, "GetDefaultPrinter")
	}
	return windows.UTF16ToString(buf), nil
}

func (spooler) Open(name string, dm *printing.DevMode) (Handle, error) {
	pname, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, windows.ERROR_INVALID_PRINTER_NAME
	}

	h, err := openPrinter(pname, nil)
	if err != nil {
		return nil, err
	}
	if dm == nil {
		return h, nil
	}

	// Reopen with the requested DEVMODE as the handle default. A driver
	// that rejects the merge keeps its own defaults.
	buf, err := mergeDevMode(h.h, pname, dm)
	if err != nil {
		return h, nil
	}
	withDefaults, err := openPrinter(pname, buf)
	if err != nil {
		return h, nil
	}
	_ = h.Close()
	return withDefaults, nil
}

func openPrinter(name *uint16, devmode []byte) (*handle, error) {
	defaults := printerDefaults{DesiredAccess: printerAccessUse}
	if len(devmode) > 0 {
		defaults.DevMode = uintptr(unsafe.Pointer(&devmode[0]))
	}
	var h windows.Handle
	r1, _, e1 := procOpenPrinterW.Call(uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&h)), uintptr(unsafe.Pointer(&defaults)))
	if r1 == 0 {
		return nil, lastError(e1, "OpenPrinter")
	}
	return &handle{h: h, devmode: devmode}, nil
}

// mergeDevMode asks the driver for its DEVMODE, applies dm and lets the
// driver validate the result.
func mergeDevMode(h windows.Handle, name *uint16, dm *printing.DevMode) ([]byte, error) {
	size, _, e1 := procDocumentPropertiesW.Call(0, uintptr(h), uintptr(unsafe.Pointer(name)), 0, 0, 0)
	if int32(size) <= 0 {
		return nil, lastError(e1, "DocumentProperties")
	}
	buf := make([]byte, size)
	r1, _, e1 := procDocumentPropertiesW.Call(0, uintptr(h), uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&buf[0])), 0, dmOutBuffer)
	if int32(r1) < 0 {
		return nil, lastError(e1, "DocumentProperties")
	}

	d := (*devModeW)(unsafe.Pointer(&buf[0]))
	d.Fields |= dm.Fields
	if dm.Fields&printing.DMOrientation != 0 {
		d.Orientation = dm.Orientation
	}
	if dm.Fields&printing.DMPaperSize != 0 {
		d.PaperSize = dm.PaperSize
	}
	if dm.Fields&printing.DMCopies != 0 {
		d.Copies = dm.Copies
	}
	if dm.Fields&printing.DMColor != 0 {
		d.Color = dm.Color
	}
	if dm.Fields&printing.DMDuplex != 0 {
		d.Duplex = dm.Duplex
	}

	r1, _, e1 = procDocumentPropertiesW.Call(0, uintptr(h), uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&buf[0])), dmInBuffer|dmOutBuffer)
	if int32(r1) < 0 {
		return nil, lastError(e1, "DocumentProperties")
	}
	return buf, nil
}

func (spooler) DeviceCapabilities(name, port string) (DeviceCaps, error) {
	pname, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return DeviceCaps{}, windows.ERROR_INVALID_PRINTER_NAME
	}
	pport, err := windows.UTF16PtrFromString(port)
	if err != nil {
		return DeviceCaps{}, windows.ERROR_INVALID_PARAMETER
	}
	call := func(capability, out uintptr) (int32, error) {
		r1, _, e1 := procDeviceCapabilitiesW.Call(uintptr(unsafe.Pointer(pname)), uintptr(unsafe.Pointer(pport)), capability, out, 0)
		if int32(r1) < 0 {
			return 0, lastError(e1, "DeviceCapabilities")
		}
		return int32(r1), nil
	}

	var caps DeviceCaps
	n, err := call(dcPaperNames, 0)
	if err != nil {
		return DeviceCaps{}, err
	}
	if n > 0 {
		names := make([]uint16, int(n)*paperNameLen)
		if _, err := call(dcPaperNames, uintptr(unsafe.Pointer(&names[0]))); err != nil {
			return DeviceCaps{}, err
		}
		for i := 0; i < int(n); i++ {
			if s := windows.UTF16ToString(names[i*paperNameLen : (i+1)*paperNameLen]); s != "" {
				caps.PaperNames = append(caps.PaperNames, s)
			}
		}
	}
	if v, err := call(dcDuplex, 0); err == nil {
		caps.Duplex = v == 1
	}
	if v, err := call(dcColorDevice, 0); err == nil {
		caps.Color = v == 1
	}
	return caps, nil
}

type handle struct {
	h windows.Handle
	// devmode backs the PRINTER_DEFAULTS the handle was opened with.
	devmode []byte
}

func (h *handle) Close() error {
	r1, _, e1 := procClosePrinter.Call(uintptr(h.h))
	if r1 == 0 {
		return lastError(e1, "ClosePrinter")
	}
	return nil
}

func (h *handle) Printer() (PrinterRecord, error) {
	var needed uint32
	r1, _, e1 := procGetPrinterW.Call(uintptr(h.h), 2, 0, 0, uintptr(unsafe.Pointer(&needed)))
	if r1 == 0 && !errors.Is(e1, windows.ERROR_INSUFFICIENT_BUFFER) {
		return PrinterRecord{}, lastError(e1, "GetPrinter")
	}
	if needed == 0 {
		return PrinterRecord{}, lastError(e1, "GetPrinter")
	}
	buf := make([]byte, needed)
	r1, _, e1 = procGetPrinterW.Call(uintptr(h.h), 2, uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)))
	if r1 == 0 {
		return PrinterRecord{}, lastError(e1, "GetPrinter")
	}
	return printerRecord((*printerInfo2)(unsafe.Pointer(&buf[0]))), nil
}

func (h *handle) StartDoc(doc DocInfo) (uint32, error) {
	name, err := windows.UTF16PtrFromString(doc.Name)
	if err != nil {
		return 0, windows.ERROR_INVALID_PARAMETER
	}
	datatype, err := windows.UTF16PtrFromString(doc.Datatype)
	if err != nil {
		return 0, windows.ERROR_INVALID_DATATYPE
	}
	info := docInfo1{DocName: name, Datatype: datatype}
	r1, _, e1 := procStartDocPrinterW.Call(uintptr(h.h), 1, uintptr(unsafe.Pointer(&info)))
	if r1 == 0 {
		return 0, lastError(e1, "StartDocPrinter")
	}
	return uint32(r1), nil
}

func (h *handle) StartPage() error {
	r1, _, e1 := procStartPagePrinter.Call(uintptr(h.h))
	if r1 == 0 {
		return lastError(e1, "StartPagePrinter")
	}
	return nil
}

func (h *handle) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var written uint32
	r1, _, e1 := procWritePrinter.Call(uintptr(h.h), uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)),
		uintptr(unsafe.Pointer(&written)))
	if r1 == 0 {
		return int(written), lastError(e1, "WritePrinter")
	}
	return int(written), nil
}

func (h *handle) EndPage() error {
	r1, _, e1 := procEndPagePrinter.Call(uintptr(h.h))
	if r1 == 0 {
		return lastError(e1, "EndPagePrinter")
	}
	return nil
}

func (h *handle) EndDoc() error {
	r1, _, e1 := procEndDocPrinter.Call(uintptr(h.h))
	if r1 == 0 {
		return lastError(e1, "EndDocPrinter")
	}
	return nil
}

func (h *handle) Jobs() ([]JobRecord, error) {
	var needed, returned uint32
	r1, _, e1 := procEnumJobsW.Call(uintptr(h.h), 0, maxJobs, 2, 0, 0,
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r1 == 0 && !errors.Is(e1, windows.ERROR_INSUFFICIENT_BUFFER) {
		return nil, lastError(e1, "EnumJobs")
	}
	if needed == 0 {
		return []JobRecord{}, nil
	}
	buf := make([]byte, needed)
	r1, _, e1 = procEnumJobsW.Call(uintptr(h.h), 0, maxJobs, 2,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&returned)))
	if r1 == 0 {
		return nil, lastError(e1, "EnumJobs")
	}
	if returned == 0 {
		return []JobRecord{}, nil
	}
	infos := unsafe.Slice((*jobInfo2)(unsafe.Pointer(&buf[0])), returned)
	out := make([]JobRecord, 0, returned)
	for i := range infos {
		out = append(out, jobRecord(&infos[i]))
	}
	return out, nil
}

func (h *handle) Job(id uint32) (JobRecord, error) {
	var needed uint32
	r1, _, e1 := procGetJobW.Call(uintptr(h.h), uintptr(id), 2, 0, 0, uintptr(unsafe.Pointer(&needed)))
	if r1 == 0 && !errors.Is(e1, windows.ERROR_INSUFFICIENT_BUFFER) {
		return JobRecord{}, lastError(e1, "GetJob")
	}
	if needed == 0 {
		return JobRecord{}, lastError(e1, "GetJob")
	}
	buf := make([]byte, needed)
	r1, _, e1 = procGetJobW.Call(uintptr(h.h), uintptr(id), 2, uintptr(unsafe.Pointer(&buf[0])), uintptr(needed),
		uintptr(unsafe.Pointer(&needed)))
	if r1 == 0 {
		return JobRecord{}, lastError(e1, "GetJob")
	}
	return jobRecord((*jobInfo2)(unsafe.Pointer(&buf[0]))), nil
}

func (h *handle) SetJob(id uint32, command uint32) error {
	r1, _, e1 := procSetJobW.Call(uintptr(h.h), uintptr(id), 0, 0, uintptr(command))
	if r1 == 0 {
		return lastError(e1, "SetJob")
	}
	return nil
}

func printerRecord(p *printerInfo2) PrinterRecord {
	return PrinterRecord{
		Name:            windows.UTF16PtrToString(p.PrinterName),
		ShareName:       windows.UTF16PtrToString(p.ShareName),
		PortName:        windows.UTF16PtrToString(p.PortName),
		DriverName:      windows.UTF16PtrToString(p.DriverName),
		Comment:         windows.UTF16PtrToString(p.Comment),
		Location:        windows.UTF16PtrToString(p.Location),
		Datatype:        windows.UTF16PtrToString(p.Datatype),
		PrintProcessor:  windows.UTF16PtrToString(p.PrintProcessor),
		Attributes:      p.Attributes,
		Priority:        p.Priority,
		DefaultPriority: p.DefaultPriority,
		Status:          p.Status,
		Jobs:            p.Jobs,
	}
}

func jobRecord(j *jobInfo2) JobRecord {
	rec := JobRecord{
		ID:           j.JobID,
		PrinterName:  windows.UTF16PtrToString(j.PrinterName),
		UserName:     windows.UTF16PtrToString(j.UserName),
		Document:     windows.UTF16PtrToString(j.Document),
		Datatype:     windows.UTF16PtrToString(j.Datatype),
		Status:       j.Status,
		TotalPages:   j.TotalPages,
		PagesPrinted: j.PagesPrinted,
		Size:         j.Size,
	}
	st := j.Submitted
	if st.Year != 0 {
		rec.Submitted = time.Date(int(st.Year), time.Month(st.Month), int(st.Day),
			int(st.Hour), int(st.Minute), int(st.Second), int(st.Milliseconds)*int(time.Millisecond), time.UTC)
	}
	return rec
}
