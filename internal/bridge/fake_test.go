package bridge

import (
	"sync"
	"testing"

	"github.com/adcondev/printbridge/internal/printing"
	"github.com/adcondev/printbridge/internal/worker"
)

type fakePrinters struct {
	printers    []printing.PrinterInfo
	defaultName string
	caps        printing.PrinterCapabilities
	driver      map[string]string
	err         error
}

func (f *fakePrinters) GetPrinters() ([]printing.PrinterInfo, error) {
	return f.printers, f.err
}

func (f *fakePrinters) GetPrinter(name string) (printing.PrinterInfo, error) {
	if f.err != nil {
		return printing.PrinterInfo{}, f.err
	}
	for _, p := range f.printers {
		if p.Name == name {
			return p, nil
		}
	}
	return printing.PrinterInfo{}, printing.PrinterNotFound(name)
}

func (f *fakePrinters) GetDefaultPrinterName() string { return f.defaultName }

func (f *fakePrinters) GetSupportedFormats() []string {
	return []string{printing.FormatRaw, printing.FormatText}
}

func (f *fakePrinters) GetCapabilities(string) (printing.PrinterCapabilities, error) {
	return f.caps, f.err
}

func (f *fakePrinters) GetDriverOptions(string) (map[string]string, error) {
	return f.driver, f.err
}

type fakeJobs struct {
	mu       sync.Mutex
	nextID   int
	fileReqs []printing.PrintFileRequest
	rawReqs  []printing.PrintRawRequest
	jobs     []printing.JobInfo
	commands []printing.JobCommand
	err      error
	block    chan struct{}
}

func (f *fakeJobs) PrintFile(req printing.PrintFileRequest) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileReqs = append(f.fileReqs, req)
	return f.nextID, f.err
}

func (f *fakeJobs) PrintRaw(req printing.PrintRawRequest) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawReqs = append(f.rawReqs, req)
	return f.nextID, f.err
}

func (f *fakeJobs) GetJob(printer string, id int) (printing.JobInfo, error) {
	if f.err != nil {
		return printing.JobInfo{}, f.err
	}
	for _, j := range f.jobs {
		if j.ID == id && j.Printer == printer {
			return j, nil
		}
	}
	return printing.JobInfo{}, printing.JobNotFound(id)
}

func (f *fakeJobs) GetJobs(string) ([]printing.JobInfo, error) {
	return f.jobs, f.err
}

func (f *fakeJobs) SetJob(_ string, _ int, cmd printing.JobCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.err
}

func newTestBridge(t *testing.T, p *fakePrinters, j *fakeJobs) *Bridge {
	t.Helper()
	pool := worker.NewPool(worker.Config{Workers: 2, QueueSize: 8}, nil)
	pool.Start()
	t.Cleanup(pool.Stop)
	return New(p, j, pool, nil)
}
