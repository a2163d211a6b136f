package winspool

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adcondev/printbridge/internal/printing"
)

// enumWorkers bounds the printers queried at once by GetJobs("").
const enumWorkers = 4

// Jobs implements printing.JobAPI on the Windows spooler.
type Jobs struct {
	sp      Spooler
	tempDir string
	log     *zap.Logger
}

// NewJobs returns the job backend. tempDir receives staged payloads; empty
// means os.TempDir.
func NewJobs(sp Spooler, tempDir string, log *zap.Logger) *Jobs {
	if log == nil {
		log = zap.NewNop()
	}
	return &Jobs{sp: sp, tempDir: tempDir, log: log}
}

// datatypeFor maps a format name to a spooler datatype.
func datatypeFor(format string) string {
	f := strings.ToUpper(strings.TrimSpace(format))
	if f == "" || f == printing.FormatAuto {
		return printing.FormatRaw
	}
	return f
}

// PrintFile opens the file, then streams it to the printer.
func (j *Jobs) PrintFile(req printing.PrintFileRequest) (int, error) {
	opts := req.Options
	if opts.JobName == "" || opts.JobName == printing.DefaultJobName {
		opts.JobName = filepath.Base(req.Path)
	}
	return j.printFile(req.Printer, req.Path, datatypeFor(req.Datatype), opts)
}

// PrintRaw writes an in-memory payload. Payloads above the streaming
// threshold are staged to a temporary file first.
func (j *Jobs) PrintRaw(req printing.PrintRawRequest) (int, error) {
	datatype := datatypeFor(req.Format)
	if printing.ShouldStage(len(req.Data)) {
		staged, err := printing.StageBytes(j.tempDir, req.Data)
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := staged.Close(); err != nil {
				j.log.Warn("failed to remove staged payload", zap.String("path", staged.Path), zap.Error(err))
			}
		}()
		return j.printFile(req.Printer, staged.Path, datatype, req.Options)
	}
	return j.submit(req.Printer, datatype, req.Options, bytes.NewReader(req.Data))
}

func (j *Jobs) printFile(printer, path, datatype string, opts printing.PrintOptions) (int, error) {
	f, _, err := printing.OpenSource(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return j.submit(printer, datatype, opts, f)
}

// submit runs StartDoc, StartPage, the chunked write, EndPage and EndDoc.
// Every stage already entered is closed again on failure.
func (j *Jobs) submit(printer, datatype string, opts printing.PrintOptions, src io.Reader) (int, error) {
	if printer == "" {
		return 0, printing.InvalidArguments("printer name is required")
	}
	dm := printing.DevModeFor(opts)
	h, err := j.sp.Open(printer, &dm)
	if err != nil {
		return 0, openError(err, printer)
	}
	defer closeHandle(h, j.log)

	id, err := h.StartDoc(DocInfo{Name: opts.JobName, Datatype: datatype})
	if err != nil {
		return 0, classify(err, "Failed to start print job")
	}
	if err := h.StartPage(); err != nil {
		j.endDoc(h)
		return 0, classify(err, "Failed to start page")
	}
	if _, err := printing.CopyChunked(h, src); err != nil {
		j.endPage(h)
		j.endDoc(h)
		if errors.Is(err, printing.ErrShortWrite) {
			return 0, printing.Wrap(err, printing.CodeUnknown, "Failed to write all data to printer")
		}
		return 0, classify(err, "Failed to write to printer")
	}
	if err := h.EndPage(); err != nil {
		j.endDoc(h)
		return 0, classify(err, "Failed to end page")
	}
	if err := h.EndDoc(); err != nil {
		return 0, classify(err, "Failed to end print job")
	}
	if id == 0 {
		return 0, printing.NewError(printing.CodeUnknown, "Failed to queue print job")
	}
	return int(id), nil
}

func (j *Jobs) endPage(h Handle) {
	if err := h.EndPage(); err != nil {
		j.log.Debug("EndPage during cleanup failed", zap.Error(err))
	}
}

func (j *Jobs) endDoc(h Handle) {
	if err := h.EndDoc(); err != nil {
		j.log.Debug("EndDoc during cleanup failed", zap.Error(err))
	}
}

// GetJob reads one job from the printer's queue.
func (j *Jobs) GetJob(printer string, id int) (printing.JobInfo, error) {
	if printer == "" {
		return printing.JobInfo{}, printing.InvalidArguments("printer name is required")
	}
	if id <= 0 {
		return printing.JobInfo{}, printing.InvalidArguments("job id must be positive")
	}
	h, err := j.sp.Open(printer, nil)
	if err != nil {
		return printing.JobInfo{}, openError(err, printer)
	}
	defer closeHandle(h, j.log)

	rec, err := h.Job(uint32(id))
	if err != nil {
		return printing.JobInfo{}, jobError(err, id, "Failed to query job")
	}
	return jobInfo(rec, printer), nil
}

// GetJobs lists one printer's queue. With an empty name every enumerated
// printer is queried; printers removed meanwhile are skipped and any other
// failure fails the call.
func (j *Jobs) GetJobs(printer string) ([]printing.JobInfo, error) {
	if printer != "" {
		return j.jobsOf(printer)
	}

	records, err := j.sp.EnumPrinters()
	if err != nil {
		return nil, classify(err, "Failed to enumerate printers")
	}

	var (
		mu  sync.Mutex
		all []printing.JobInfo
	)
	g := new(errgroup.Group)
	g.SetLimit(enumWorkers)
	for _, r := range records {
		if r.Name == "" {
			continue
		}
		name := r.Name
		g.Go(func() error {
			jobs, err := j.jobsOf(name)
			if err != nil {
				if printing.CodeOf(err) == printing.CodePrinterNotFound {
					j.log.Debug("printer vanished during job enumeration", zap.String("printer", name))
					return nil
				}
				return err
			}
			mu.Lock()
			all = append(all, jobs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].Printer != all[b].Printer {
			return all[a].Printer < all[b].Printer
		}
		return all[a].ID < all[b].ID
	})
	if all == nil {
		all = []printing.JobInfo{}
	}
	return all, nil
}

func (j *Jobs) jobsOf(printer string) ([]printing.JobInfo, error) {
	h, err := j.sp.Open(printer, nil)
	if err != nil {
		return nil, openError(err, printer)
	}
	defer closeHandle(h, j.log)

	records, err := h.Jobs()
	if err != nil {
		return nil, classify(err, "Failed to enumerate jobs of '"+printer+"'")
	}
	jobs := make([]printing.JobInfo, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, jobInfo(rec, printer))
	}
	return jobs, nil
}

// SetJob pauses, resumes or cancels a job.
func (j *Jobs) SetJob(printer string, id int, cmd printing.JobCommand) error {
	control, ok := jobControl(cmd)
	if !ok {
		return printing.InvalidArguments("unknown job command")
	}
	if printer == "" {
		return printing.InvalidArguments("printer name is required")
	}
	h, err := j.sp.Open(printer, nil)
	if err != nil {
		return openError(err, printer)
	}
	defer closeHandle(h, j.log)

	if err := h.SetJob(uint32(id), control); err != nil {
		return jobError(err, id, "Failed to "+cmd.String()+" job")
	}
	return nil
}

// jobError reads ERROR_INVALID_PARAMETER as an unknown job id. Other
// failures keep their classified code.
func jobError(err error, id int, context string) error {
	if code, ok := errnoOf(err); ok && code == printing.ErrorInvalidParameter {
		nf := printing.JobNotFound(id)
		nf.PlatformCode = int(code)
		nf.Err = err
		return nf
	}
	return classify(err, context)
}

func jobInfo(rec JobRecord, printer string) printing.JobInfo {
	job := printing.JobInfo{
		ID:      int(rec.ID),
		State:   printing.MapJobState(rec.Status),
		Printer: rec.PrinterName,
		Title:   rec.Document,
		User:    rec.UserName,
		Pages:   int(rec.TotalPages),
		Size:    int64(rec.Size),
	}
	if job.Printer == "" {
		job.Printer = printer
	}
	if !rec.Submitted.IsZero() {
		job.CreationTime = rec.Submitted.Unix()
	}
	return job
}
