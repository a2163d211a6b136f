package winspool

import (
	"sync"
	"syscall"

	"github.com/adcondev/printbridge/internal/printing"
)

// fakeSpooler is an in-memory spooler. Printers are keyed by name; each
// open handle is recorded so tests can assert on call order and cleanup.
type fakeSpooler struct {
	mu         sync.Mutex
	printers   map[string]*fakePrinter
	order      []string
	defaultErr error
	defaultNm  string
	enumErr    error
	capsErr    error
	handles    []*fakeHandle
}

type fakePrinter struct {
	record  PrinterRecord
	caps    DeviceCaps
	jobs    []JobRecord
	openErr error
	infoErr error
	jobsErr error
	jobErr  error

	startDocErr error
	writeErr    error
	shortWrite  bool
	setJobErr   error
	nextJobID   uint32
}

func newFakeSpooler() *fakeSpooler {
	return &fakeSpooler{printers: make(map[string]*fakePrinter)}
}

func (f *fakeSpooler) add(p *fakePrinter) *fakePrinter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.printers[p.record.Name] = p
	f.order = append(f.order, p.record.Name)
	return p
}

func (f *fakeSpooler) EnumPrinters() ([]PrinterRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	out := make([]PrinterRecord, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.printers[name].record)
	}
	return out, nil
}

func (f *fakeSpooler) DefaultPrinter() (string, error) {
	return f.defaultNm, f.defaultErr
}

func (f *fakeSpooler) Open(name string, dm *printing.DevMode) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.printers[name]
	if !ok {
		return nil, syscall.Errno(1801)
	}
	if p.openErr != nil {
		return nil, p.openErr
	}
	h := &fakeHandle{p: p}
	if dm != nil {
		d := *dm
		h.devmode = &d
	}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeSpooler) DeviceCapabilities(name, _ string) (DeviceCaps, error) {
	if f.capsErr != nil {
		return DeviceCaps{}, f.capsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.printers[name].caps, nil
}

func (f *fakeSpooler) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.handles {
		if !h.closed {
			return false
		}
	}
	return true
}

func (f *fakeSpooler) lastHandle() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[len(f.handles)-1]
}

type fakeHandle struct {
	p       *fakePrinter
	devmode *printing.DevMode
	calls   []string
	doc     DocInfo
	data    []byte
	writes  []int
	closed  bool
}

func (h *fakeHandle) Printer() (PrinterRecord, error) {
	h.calls = append(h.calls, "GetPrinter")
	return h.p.record, h.p.infoErr
}

func (h *fakeHandle) StartDoc(doc DocInfo) (uint32, error) {
	h.calls = append(h.calls, "StartDoc")
	if h.p.startDocErr != nil {
		return 0, h.p.startDocErr
	}
	h.doc = doc
	h.p.nextJobID++
	return h.p.nextJobID, nil
}

func (h *fakeHandle) StartPage() error {
	h.calls = append(h.calls, "StartPage")
	return nil
}

func (h *fakeHandle) Write(p []byte) (int, error) {
	h.calls = append(h.calls, "Write")
	h.writes = append(h.writes, len(p))
	if h.p.writeErr != nil {
		return 0, h.p.writeErr
	}
	if h.p.shortWrite {
		n := len(p) / 2
		h.data = append(h.data, p[:n]...)
		return n, nil
	}
	h.data = append(h.data, p...)
	return len(p), nil
}

func (h *fakeHandle) EndPage() error {
	h.calls = append(h.calls, "EndPage")
	return nil
}

func (h *fakeHandle) EndDoc() error {
	h.calls = append(h.calls, "EndDoc")
	return nil
}

func (h *fakeHandle) Jobs() ([]JobRecord, error) {
	h.calls = append(h.calls, "EnumJobs")
	return h.p.jobs, h.p.jobsErr
}

func (h *fakeHandle) Job(id uint32) (JobRecord, error) {
	h.calls = append(h.calls, "GetJob")
	if h.p.jobErr != nil {
		return JobRecord{}, h.p.jobErr
	}
	for _, j := range h.p.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return JobRecord{}, syscall.Errno(87)
}

func (h *fakeHandle) SetJob(id uint32, command uint32) error {
	h.calls = append(h.calls, "SetJob")
	if h.p.setJobErr != nil {
		return h.p.setJobErr
	}
	for i, j := range h.p.jobs {
		if j.ID != id {
			continue
		}
		switch command {
		case jobControlPause:
			h.p.jobs[i].Status |= printing.JobStatusPaused
		case jobControlResume:
			h.p.jobs[i].Status &^= printing.JobStatusPaused
		case jobControlCancel:
			h.p.jobs[i].Status |= printing.JobStatusDeleting
		}
		return nil
	}
	return syscall.Errno(87)
}

func (h *fakeHandle) Close() error {
	h.calls = append(h.calls, "Close")
	h.closed = true
	return nil
}
